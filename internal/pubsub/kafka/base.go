package kafka

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/flexprice/ispledger/internal/config"
)

func GetSaramaConfig(cfg *config.Configuration) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_1_0_0

	saramaConfig.ClientID = cfg.Kafka.ClientID

	// a new consumer group starts from the oldest message so no payment is missed
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = 5000 * time.Millisecond

	saramaConfig.Consumer.Offsets.Retry.Max = 3

	// payments must not be lost on a broker failover
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true

	return saramaConfig
}

package config

import (
	"testing"
	"time"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsUsableWithoutPostgres(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, types.ModeLocal, cfg.Deployment.Mode)
	assert.Equal(t, types.MemoryPubSub, cfg.Event.PubSub)
	assert.Greater(t, cfg.Ledger.BillingRunConcurrency, 0)
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Postgres = PostgresConfig{Host: "localhost", Port: 5432, User: "u", DBName: "db"}
	require.NoError(t, cfg.Validate())

	cfg.Event.PubSub = types.KafkaPubSub
	assert.Error(t, cfg.Validate())

	cfg.Kafka.Brokers = []string{"localhost:29092"}
	assert.NoError(t, cfg.Validate())
}

func TestPostgresConfig(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "ledger", SSLMode: "disable", LockTimeout: "3s"}
	assert.Equal(t, "user=u password=p dbname=ledger host=db port=5433 sslmode=disable", c.GetDSN())
	assert.Equal(t, 3*time.Second, c.GetLockTimeout())

	c.LockTimeout = ""
	assert.Equal(t, time.Duration(0), c.GetLockTimeout())
}

func TestEventRetryPolicy(t *testing.T) {
	retries, interval := EventConfig{MaxRetries: -1}.RetryPolicy()
	assert.Equal(t, 0, retries)
	assert.Equal(t, 500*time.Millisecond, interval)
}

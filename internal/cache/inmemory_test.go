package cache

import (
	"context"
	"testing"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(config.GetDefaultConfig(), logger.NewNopLogger())

	c.Set(ctx, GenerateKey(PrefixSubscription, "sub_1"), "a", 0)
	c.Set(ctx, GenerateKey(PrefixSubscription, "sub_2"), "b", 0)
	c.Set(ctx, GenerateKey(PrefixClientSubscription, "client_1"), "c", 0)

	v, ok := c.Get(ctx, "subscription:v1::sub_1")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	c.DeleteByPrefix(ctx, PrefixSubscription)
	_, ok = c.Get(ctx, GenerateKey(PrefixSubscription, "sub_2"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixClientSubscription, "client_1"))
	assert.True(t, ok)

	c.Flush(ctx)
	_, ok = c.Get(ctx, GenerateKey(PrefixClientSubscription, "client_1"))
	assert.False(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg, logger.NewNopLogger())

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

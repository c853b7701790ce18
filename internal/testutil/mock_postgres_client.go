package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	"github.com/flexprice/ispledger/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTx struct {
	id string
}

// MockPostgresClient runs transactions against in-memory stores. Top level transactions are
// serialised and every transaction level restores the stores when its function fails, so a
// failing nested call behaves like a rolled back savepoint.
type MockPostgresClient struct {
	mu     sync.Mutex
	stores []Snapshotter
	logger *logger.Logger
}

// NewMockPostgresClient creates a new mock postgres client rolling back the given stores
func NewMockPostgresClient(logger *logger.Logger, stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		stores: stores,
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if !c.InTx(ctx) {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx = context.WithValue(ctx, types.CtxDBTransaction, &mockTx{id: types.GenerateUUID()})
	}

	restore := c.snapshot()
	if err := fn(ctx); err != nil {
		c.logger.Debugw("rolling back mock transaction", "error", err)
		restore()
		return err
	}
	return nil
}

// InTx reports whether ctx already carries a transaction
func (c *MockPostgresClient) InTx(ctx context.Context) bool {
	return inMockTx(ctx)
}

func (c *MockPostgresClient) snapshot() func() {
	restores := make([]func(), 0, len(c.stores))
	for _, s := range c.stores {
		restores = append(restores, s.Snapshot())
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

func inMockTx(ctx context.Context) bool {
	_, ok := ctx.Value(types.CtxDBTransaction).(*mockTx)
	return ok
}

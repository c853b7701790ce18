package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/ispledger/internal/publisher"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
)

// InMemoryEventPublisher records ledger notifications for assertions
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*publisher.LedgerEvent
	err    error
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]*publisher.LedgerEvent, 0),
	}
}

// Publish implements publisher.EventPublisher
func (p *InMemoryEventPublisher) Publish(_ context.Context, event *publisher.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// SetError makes every publish fail with err
func (p *InMemoryEventPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// GetEvents returns all published events
func (p *InMemoryEventPublisher) GetEvents() []*publisher.LedgerEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*publisher.LedgerEvent(nil), p.events...)
}

// EventsNamed returns the published events with the given name
func (p *InMemoryEventPublisher) EventsNamed(name types.LedgerEventName) []*publisher.LedgerEvent {
	return lo.Filter(p.GetEvents(), func(e *publisher.LedgerEvent, _ int) bool {
		return e.Name == name
	})
}

// Clear removes all published events
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]*publisher.LedgerEvent, 0)
	p.err = nil
}

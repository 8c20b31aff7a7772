package pipeline

import (
	"context"
	"sync"

	"github.com/sawpanic/allostat/internal/domain"
)

// WeightCache stores WeightState values keyed by window fingerprint
type WeightCache interface {
	Get(ctx context.Context, hash string) (*domain.WeightState, bool, error)
	Put(ctx context.Context, state *domain.WeightState) error
}

// SlotCache keeps only the most recent WeightState in process
type SlotCache struct {
	mu    sync.RWMutex
	hash  string
	state *domain.WeightState
}

// NewSlotCache creates an empty single-slot cache
func NewSlotCache() *SlotCache {
	return &SlotCache{}
}

// Get returns the cached state when hash matches the slot
func (c *SlotCache) Get(_ context.Context, hash string) (*domain.WeightState, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == nil || c.hash != hash {
		return nil, false, nil
	}
	return c.state, true, nil
}

// Put replaces the slot
func (c *SlotCache) Put(_ context.Context, state *domain.WeightState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hash = state.Window.Hash
	c.state = state
	return nil
}

// Reset empties the slot
func (c *SlotCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = ""
	c.state = nil
}

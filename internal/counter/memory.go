package counter

import (
	"context"
	"sync"

	"github.com/gearzhan/shortURL/internal/clock"
)

// MemoryCounter keeps counting cells in process memory. Used by tests and
// when the service runs on the in-memory store.
type MemoryCounter struct {
	mu    sync.Mutex
	cells map[string]Hit
	clock clock.Clock
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter(clk clock.Clock) *MemoryCounter {
	return &MemoryCounter{
		cells: make(map[string]Hit),
		clock: clk,
	}
}

func (c *MemoryCounter) Increment(_ context.Context, code string) (Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell := c.cells[code]
	cell.Count++
	cell.LastAccessed = c.clock.Now().UnixMilli()
	c.cells[code] = cell

	return cell, nil
}

func (c *MemoryCounter) Stats(_ context.Context, code string) (Hit, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell, ok := c.cells[code]
	return cell, ok, nil
}

func (c *MemoryCounter) Reset(_ context.Context, code string) error {
	c.mu.Lock()
	delete(c.cells, code)
	c.mu.Unlock()

	return nil
}

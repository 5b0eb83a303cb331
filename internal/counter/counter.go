// Package counter provides per-short-code counting cells with atomic
// increment semantics. The registry uses a cell instead of folding the
// count into the record value when redirects for one code can be
// concurrent, closing the lost-update window of a plain read-modify-write.
package counter

import "context"

// Hit is the state of one counting cell.
type Hit struct {
	// Count is the number of redirects recorded for the code.
	Count int64
	// LastAccessed is the Unix-millisecond timestamp of the latest redirect.
	LastAccessed int64
}

// Counter owns the count and last-access storage for short codes. Each
// code maps to exactly one cell; cells are independent, so no cross-code
// coordination is needed.
type Counter interface {
	// Increment atomically bumps the cell's count, records a new
	// last-accessed timestamp, and returns both.
	Increment(ctx context.Context, code string) (Hit, error)

	// Stats returns the cell's current state. The boolean is false when
	// the cell has never been incremented and holds no persisted state.
	Stats(ctx context.Context, code string) (Hit, bool, error)

	// Reset clears all state for the cell, so a future reuse of the same
	// code does not inherit a stale count.
	Reset(ctx context.Context, code string) error
}

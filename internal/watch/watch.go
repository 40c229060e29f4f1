// Package watch contains the per-resource polling units. Each watcher
// owns the normalized state for exactly one backend endpoint: it
// fetches on activation and then on every scheduler tick, replaces its
// state wholesale with a fully defaulted value on success, and fails
// open to the documented sentinel on error so rendering code never
// sees a partial object. No two watchers share state; each one is
// written only from its own fetch completion.
package watch

import (
	"context"
	"time"
)

// Status is the bookkeeping every watcher carries alongside its data.
type Status struct {
	Error         string    `json:"error,omitempty"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
}

// runTicks drives a watcher: one immediate fetch, then one per tick,
// until ctx is canceled. Cancellation is the only way a late response
// is prevented from racing a teardown; watchers additionally guard
// with a fetch sequence number so an in-flight response from tick N
// never overwrites the result of tick N+1.
func runTicks(ctx context.Context, ticks <-chan int64, fetch func(context.Context)) {
	fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			fetch(ctx)
		}
	}
}

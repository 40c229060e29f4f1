package watch

import (
	"context"
	"sync"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/sched"
)

// HealthzWatcher probes GET /api/healthz on the shared cadence and
// feeds the result back into the scheduler, which stretches the
// polling interval while the backend is down. It is the one watcher
// with a side effect outside its own state.
type HealthzWatcher struct {
	client *api.Client
	modes  *mode.Manager
	poller *sched.Poller
	met    *metrics.Metrics

	mu      sync.Mutex
	healthy bool
}

func NewHealthzWatcher(client *api.Client, modes *mode.Manager, poller *sched.Poller, met *metrics.Metrics) *HealthzWatcher {
	return &HealthzWatcher{
		client:  client,
		modes:   modes,
		poller:  poller,
		met:     met,
		healthy: true,
	}
}

func (w *HealthzWatcher) Start(ctx context.Context, ticks <-chan int64) {
	go runTicks(ctx, ticks, w.fetchOnce)
}

// Healthy reports the last probe result.
func (w *HealthzWatcher) Healthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.healthy
}

func (w *HealthzWatcher) fetchOnce(ctx context.Context) {
	if !w.modes.IsLive() {
		return
	}
	w.met.PollAttempt("healthz")
	ok := w.client.Healthz(ctx)
	if !ok {
		w.met.PollFailed("healthz")
	}

	w.mu.Lock()
	w.healthy = ok
	w.mu.Unlock()

	w.met.SetUpstreamHealthy(ok)
	w.poller.SetUpstreamHealthy(ok)
}

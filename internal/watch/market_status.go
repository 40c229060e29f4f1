package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
)

// MarketStatusWatcher polls GET /api/ops/market-status on the shared
// cadence. Same fail-open policy as ops status.
type MarketStatusWatcher struct {
	client *api.Client
	modes  *mode.Manager
	met    *metrics.Metrics

	seq atomic.Uint64

	mu     sync.Mutex
	state  api.MarketStatus
	status Status
}

func NewMarketStatusWatcher(client *api.Client, modes *mode.Manager, met *metrics.Metrics) *MarketStatusWatcher {
	w := &MarketStatusWatcher{
		client: client,
		modes:  modes,
		met:    met,
		state:  api.DefaultMarketStatus(),
	}
	modes.OnChange(func(m mode.Mode) {
		if m != mode.Live {
			w.reset()
		}
	})
	return w
}

func (w *MarketStatusWatcher) Start(ctx context.Context, ticks <-chan int64) {
	go runTicks(ctx, ticks, w.fetchOnce)
}

func (w *MarketStatusWatcher) State() (api.MarketStatus, Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.status
}

func (w *MarketStatusWatcher) fetchOnce(ctx context.Context) {
	if !w.modes.IsLive() {
		return
	}
	seq := w.seq.Add(1)
	w.met.PollAttempt("market_status")
	start := time.Now()
	state, err := w.client.MarketStatus(ctx)
	w.met.ObservePollDuration(time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq.Load() {
		return
	}
	if err != nil {
		w.met.PollFailed("market_status")
		w.state = api.DefaultMarketStatus()
		w.status.Error = err.Error()
		return
	}
	w.state = state
	w.status = Status{LastFetchedAt: time.Now()}
}

func (w *MarketStatusWatcher) reset() {
	w.seq.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = api.DefaultMarketStatus()
	w.status = Status{}
}

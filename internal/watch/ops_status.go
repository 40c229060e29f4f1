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

// OpsStatusWatcher polls GET /api/ops/status on the shared cadence.
// Failures reset to the default sentinel and polling continues; the
// endpoint is cheap enough to retry blindly.
type OpsStatusWatcher struct {
	client *api.Client
	modes  *mode.Manager
	met    *metrics.Metrics

	seq atomic.Uint64

	mu     sync.Mutex
	state  api.OpsStatus
	status Status
}

func NewOpsStatusWatcher(client *api.Client, modes *mode.Manager, met *metrics.Metrics) *OpsStatusWatcher {
	w := &OpsStatusWatcher{
		client: client,
		modes:  modes,
		met:    met,
		state:  api.DefaultOpsStatus(),
	}
	modes.OnChange(func(m mode.Mode) {
		if m != mode.Live {
			w.reset()
		}
	})
	return w
}

func (w *OpsStatusWatcher) Start(ctx context.Context, ticks <-chan int64) {
	go runTicks(ctx, ticks, w.fetchOnce)
}

func (w *OpsStatusWatcher) State() (api.OpsStatus, Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.status
}

func (w *OpsStatusWatcher) fetchOnce(ctx context.Context) {
	if !w.modes.IsLive() {
		return
	}
	seq := w.seq.Add(1)
	w.met.PollAttempt("ops_status")
	start := time.Now()
	state, err := w.client.OpsStatus(ctx)
	w.met.ObservePollDuration(time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq.Load() {
		return
	}
	if err != nil {
		w.met.PollFailed("ops_status")
		w.state = api.DefaultOpsStatus()
		w.status.Error = err.Error()
		return
	}
	w.state = state
	w.status = Status{LastFetchedAt: time.Now()}
}

func (w *OpsStatusWatcher) reset() {
	w.seq.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = api.DefaultOpsStatus()
	w.status = Status{}
}

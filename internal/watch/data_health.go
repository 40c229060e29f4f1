package watch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/notify"
	"github.com/swap2you/chakraops/internal/reason"
)

// DataHealthWatcher polls GET /api/ops/data-health on the shared
// cadence. A 404 gets its own diagnosis: the endpoint being absent
// means a deployment or proxy problem, which an operator remediates
// differently than a failing backend process, so the two must not be
// collapsed into one message.
type DataHealthWatcher struct {
	client   *api.Client
	modes    *mode.Manager
	notifier *notify.Bridge
	met      *metrics.Metrics

	seq atomic.Uint64

	mu     sync.Mutex
	state  api.DataHealth
	status Status
}

func NewDataHealthWatcher(client *api.Client, modes *mode.Manager, notifier *notify.Bridge, met *metrics.Metrics) *DataHealthWatcher {
	w := &DataHealthWatcher{
		client:   client,
		modes:    modes,
		notifier: notifier,
		met:      met,
		state:    api.DefaultDataHealth(),
	}
	modes.OnChange(func(m mode.Mode) {
		if m != mode.Live {
			w.reset()
		}
	})
	return w
}

func (w *DataHealthWatcher) Start(ctx context.Context, ticks <-chan int64) {
	go runTicks(ctx, ticks, w.fetchOnce)
}

func (w *DataHealthWatcher) State() (api.DataHealth, Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.status
}

// ErrorSummary renders the provider's last_error_reason codes for
// display, e.g. "ENTITLEMENT_MISSING provider=polygon".
func (w *DataHealthWatcher) ErrorSummary() string {
	w.mu.Lock()
	raw := w.state.LastErrorReason
	w.mu.Unlock()
	return reason.Summarize(raw)
}

func (w *DataHealthWatcher) fetchOnce(ctx context.Context) {
	if !w.modes.IsLive() {
		return
	}
	seq := w.seq.Add(1)
	w.met.PollAttempt("data_health")
	start := time.Now()
	state, err := w.client.DataHealth(ctx)
	w.met.ObservePollDuration(time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq.Load() {
		return
	}
	if err != nil {
		w.met.PollFailed("data_health")
		w.state = api.DefaultDataHealth()
		w.state.Status = "DOWN"
		if api.StatusOf(err) == http.StatusNotFound {
			w.state.LastErrorReason = "data-health endpoint not found; check deployment and proxy config"
			w.status.Error = w.state.LastErrorReason
			w.notifier.Push(notify.Item{
				Source:   notify.SourceSystem,
				Severity: notify.SeverityError,
				Title:    "Data health endpoint not found",
				Message:  "HTTP 404 from " + api.PathDataHealth + "; check deployment and proxy config",
			})
		} else {
			w.state.LastErrorReason = fmt.Sprintf("data-health fetch failed: %v", err)
			w.status.Error = w.state.LastErrorReason
		}
		return
	}
	w.state = state
	w.status = Status{LastFetchedAt: time.Now()}
}

func (w *DataHealthWatcher) reset() {
	w.seq.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = api.DefaultDataHealth()
	w.status = Status{}
}

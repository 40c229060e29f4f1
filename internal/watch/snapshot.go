package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/notify"
)

// DefaultSnapshotInterval is deliberately long: the snapshot endpoint
// is the heaviest read the backend serves, documented side-effect-free
// but expensive, so it stays off the shared 60s cadence.
const DefaultSnapshotInterval = 900 * time.Second

// SnapshotWatcher polls GET /api/ops/snapshot on its own timer.
// Unlike the lighter watchers it does not retry forever: a failure
// latches, automatic polling stops, and only an explicit Refetch
// clears the latch. The asymmetry against the keep-retrying watchers
// is intentional operational policy, not an oversight; treating the
// most expensive endpoint like the cheap ones would mean hammering it
// through a persistent outage.
type SnapshotWatcher struct {
	client   *api.Client
	modes    *mode.Manager
	notifier *notify.Bridge
	met      *metrics.Metrics
	interval time.Duration

	seq  atomic.Uint64
	wake chan struct{}

	mu     sync.Mutex
	state  api.Snapshot
	status Status
	failed bool
}

func NewSnapshotWatcher(client *api.Client, modes *mode.Manager, notifier *notify.Bridge, met *metrics.Metrics, interval time.Duration) *SnapshotWatcher {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	w := &SnapshotWatcher{
		client:   client,
		modes:    modes,
		notifier: notifier,
		met:      met,
		interval: interval,
		wake:     make(chan struct{}, 1),
		state:    api.DefaultSnapshot(),
	}
	modes.OnChange(func(m mode.Mode) {
		if m == mode.Live {
			select {
			case w.wake <- struct{}{}:
			default:
			}
		} else {
			w.reset()
		}
	})
	return w
}

// Start runs the watcher's own polling loop until ctx is canceled.
func (w *SnapshotWatcher) Start(ctx context.Context) {
	go func() {
		w.fetchOnce(ctx)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.Failed() {
					// Latched. Wait for a manual refetch.
					continue
				}
				w.fetchOnce(ctx)
			case <-w.wake:
				// Entering LIVE at runtime starts a fresh session; the
				// long interval must not delay the first fetch.
				w.fetchOnce(ctx)
			}
		}
	}()
}

func (w *SnapshotWatcher) State() (api.Snapshot, Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.status
}

// Failed reports whether the failure latch is set.
func (w *SnapshotWatcher) Failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// Refetch clears the failure latch and fetches immediately. This is
// the only way automatic polling resumes after a failure.
func (w *SnapshotWatcher) Refetch(ctx context.Context) {
	w.mu.Lock()
	w.failed = false
	w.mu.Unlock()
	w.fetchOnce(ctx)
}

func (w *SnapshotWatcher) fetchOnce(ctx context.Context) {
	if !w.modes.IsLive() {
		return
	}
	seq := w.seq.Add(1)
	w.met.PollAttempt("snapshot")
	start := time.Now()
	state, err := w.client.Snapshot(ctx)
	w.met.ObservePollDuration(time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq.Load() {
		return
	}
	if err != nil {
		w.met.PollFailed("snapshot")
		w.state = api.DefaultSnapshot()
		w.status.Error = err.Error()
		w.failed = true
		log.Warn().Err(err).Msg("snapshot fetch failed, polling suspended until manual refetch")
		w.notifier.Push(notify.Item{
			Source:   notify.SourceSystem,
			Severity: notify.SeverityWarning,
			Title:    "Snapshot polling suspended",
			Message:  "snapshot fetch failed: " + err.Error() + "; refresh manually to resume",
		})
		return
	}
	w.state = state
	w.status = Status{LastFetchedAt: time.Now()}
	w.failed = false
}

func (w *SnapshotWatcher) reset() {
	w.seq.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = api.DefaultSnapshot()
	w.status = Status{}
	w.failed = false
}

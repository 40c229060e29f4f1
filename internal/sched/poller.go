// Package sched provides the shared polling clock. One Poller owns the
// repeating timer for every 60-second resource watcher; watchers
// subscribe to tick numbers instead of running timers of their own.
// The effective interval is a pure function of (data mode, upstream
// health): healthy LIVE polls at the normal cadence, a degraded
// upstream stretches it to the backoff cadence, and outside LIVE no
// timer runs at all.
package sched

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
)

const (
	NormalInterval  = 60 * time.Second
	BackoffInterval = 120 * time.Second
)

type Poller struct {
	mu      sync.Mutex
	modes   *mode.Manager
	met     *metrics.Metrics
	normal  time.Duration
	backoff time.Duration

	healthy bool
	tick    int64
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool
	subs    []chan int64
}

// New builds a poller bound to modes. Zero intervals fall back to the
// standard 60s/120s pair. The poller starts and stops itself on mode
// transitions; call Start once after construction if already LIVE.
func New(modes *mode.Manager, met *metrics.Metrics, normal, backoff time.Duration) *Poller {
	if normal <= 0 {
		normal = NormalInterval
	}
	if backoff <= 0 {
		backoff = BackoffInterval
	}
	p := &Poller{
		modes:   modes,
		met:     met,
		normal:  normal,
		backoff: backoff,
		healthy: true,
	}
	modes.OnChange(func(m mode.Mode) {
		if m == mode.Live {
			p.Start()
			// Entering LIVE is an activation: every subscriber owes an
			// immediate fetch, not one deferred to the next timer fire.
			p.Trigger()
		} else {
			p.Stop()
		}
	})
	return p
}

// Start installs the repeating timer at the current effective
// interval. A no-op when already running or when the mode is not LIVE.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || !p.modes.IsLive() {
		return
	}
	interval := p.effectiveIntervalLocked()
	p.ticker = time.NewTicker(interval)
	p.stopCh = make(chan struct{})
	p.running = true
	go p.run(p.ticker, p.stopCh)

	log.Info().Dur("interval", interval).Msg("polling scheduler started")
}

// Stop cancels the timer. Pending subscribers keep their channels;
// they simply stop receiving ticks.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.ticker.Stop()
	close(p.stopCh)
	p.running = false

	log.Info().Msg("polling scheduler stopped")
}

// Trigger bumps the tick immediately, independent of the timer. It is
// the "refresh now" signal and performs no network work itself.
func (p *Poller) Trigger() {
	p.bump()
}

// SetUpstreamHealthy records the latest backend liveness and, when the
// effective interval changes as a result, resets the running timer.
func (p *Poller) SetUpstreamHealthy(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.healthy == ok {
		return
	}
	before := p.effectiveIntervalLocked()
	p.healthy = ok
	after := p.effectiveIntervalLocked()
	if before != after && p.running {
		p.ticker.Reset(after)
		log.Info().Dur("interval", after).Bool("upstream_healthy", ok).Msg("polling interval adjusted")
	}
}

// Interval reports the current effective interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effectiveIntervalLocked()
}

// Tick reports the current tick number.
func (p *Poller) Tick() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tick
}

// Running reports whether the timer is installed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Subscribe returns a channel receiving tick numbers. Delivery is
// lossy: a slow consumer sees only the most recent tick, which is the
// right semantics for "a new poll should occur now".
func (p *Poller) Subscribe() <-chan int64 {
	ch := make(chan int64, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Poller) effectiveIntervalLocked() time.Duration {
	if p.modes.IsLive() && !p.healthy {
		return p.backoff
	}
	return p.normal
}

func (p *Poller) run(ticker *time.Ticker, stopCh chan struct{}) {
	for {
		select {
		case <-ticker.C:
			p.bump()
		case <-stopCh:
			return
		}
	}
}

func (p *Poller) bump() {
	p.mu.Lock()
	p.tick++
	tick := p.tick
	subs := make([]chan int64, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	p.met.TickInc()

	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
			// Drop the stale tick; the subscriber will pick up this
			// one's successor.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- tick:
			default:
			}
		}
	}
}

// Package trigger implements the user-initiated write actions. Unlike
// the background watchers, these surface every failure to the user: an
// inline message on the triggering control plus, for the severe cases,
// a notification-center entry.
package trigger

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/notify"
	"github.com/swap2you/chakraops/internal/sched"
)

const (
	jobPollInterval = 2 * time.Second
	jobPollDeadline = 60 * time.Second
	successTTL      = 3 * time.Second
	cooldownTick    = time.Second
)

// State is what the UI renders next to the evaluate control.
type State struct {
	Loading         bool   `json:"loading"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	Message         string `json:"message,omitempty"`
	MessageIsError  bool   `json:"message_is_error,omitempty"`
}

// Evaluator drives the evaluate-trigger flow: kick off a server-side
// evaluation job, then poll its status sub-resource until a terminal
// state or the deadline. Overlapping invocations are no-ops, not
// queued retries: a call while loading or while a cooldown is counting
// down returns immediately.
type Evaluator struct {
	client   *api.Client
	poller   *sched.Poller
	notifier *notify.Bridge
	met      *metrics.Metrics
	token    string

	pollInterval time.Duration
	pollDeadline time.Duration
	successTTL   time.Duration
	cooldownTick time.Duration

	mu       sync.Mutex
	loading  bool
	cooldown int
	message  string
	isError  bool
	msgGen   uint64
}

func NewEvaluator(client *api.Client, poller *sched.Poller, notifier *notify.Bridge, met *metrics.Metrics, token string) *Evaluator {
	return &Evaluator{
		client:       client,
		poller:       poller,
		notifier:     notifier,
		met:          met,
		token:        token,
		pollInterval: jobPollInterval,
		pollDeadline: jobPollDeadline,
		successTTL:   successTTL,
		cooldownTick: cooldownTick,
	}
}

// State returns the current control state.
func (e *Evaluator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Loading:         e.loading,
		CooldownSeconds: e.cooldown,
		Message:         e.message,
		MessageIsError:  e.isError,
	}
}

// Run kicks off an evaluation and blocks until the flow reaches a
// terminal state. A call while a run is in flight or a cooldown is
// active does nothing.
func (e *Evaluator) Run(ctx context.Context, reason, scope string) {
	e.mu.Lock()
	if e.loading || e.cooldown > 0 {
		e.mu.Unlock()
		return
	}
	e.loading = true
	e.message = ""
	e.isError = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	e.met.TriggerRun("evaluate")
	resp, err := e.client.Evaluate(ctx, reason, scope, e.token)
	if err != nil {
		e.met.TriggerFailed("evaluate")
		e.handleStartError(err)
		return
	}

	if !resp.Accepted {
		e.startCooldown(resp.CooldownSecondsRemaining)
		return
	}
	e.pollJob(ctx, resp.JobID)
}

func (e *Evaluator) handleStartError(err error) {
	switch api.StatusOf(err) {
	case http.StatusForbidden:
		e.setMessage("Unauthorized", true)
	case http.StatusTooManyRequests:
		e.setMessage("Rate limited, try again later", true)
	case http.StatusNotFound:
		// The evaluate endpoint being absent means the deployment or
		// proxy is broken, not that the request was rejected.
		msg := "Evaluate endpoint not found; check deployment and proxy config"
		e.setMessage(msg, true)
		e.notifier.Push(notify.Item{
			Source:   notify.SourceSystem,
			Severity: notify.SeverityError,
			Title:    "Evaluate endpoint not found",
			Message:  "HTTP 404 from " + api.PathEvaluate + "; check deployment and proxy config",
		})
	default:
		e.setMessage(fmt.Sprintf("Evaluate failed: %v", err), true)
	}
}

// pollJob polls the job-status sub-resource until a terminal state or
// the deadline. The endpoint answers HTTP 200 with state "not_found"
// for unknown jobs, so a transport error here is not terminal: it is
// swallowed and polling continues.
func (e *Evaluator) pollJob(ctx context.Context, jobID string) {
	deadline := time.After(e.pollDeadline)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			e.met.TriggerFailed("evaluate")
			e.setMessage("Evaluation timed out waiting for completion", true)
			return
		case <-ticker.C:
			js, err := e.client.EvaluateJob(ctx, jobID)
			if err != nil {
				log.Debug().Err(err).Str("job_id", jobID).Msg("evaluate job poll failed, retrying")
				continue
			}
			switch js.State {
			case api.JobDone:
				e.poller.Trigger()
				e.setTransientMessage("Evaluation complete")
				return
			case api.JobFailed:
				e.met.TriggerFailed("evaluate")
				msg := js.Error
				if msg == "" {
					msg = "evaluation failed"
				}
				e.setMessage("Evaluation failed: "+msg, true)
				return
			case api.JobNotFound:
				e.met.TriggerFailed("evaluate")
				e.setMessage("Job not found", true)
				return
			}
		}
	}
}

// startCooldown counts down from the server-provided remaining seconds
// on a 1s tick. While counting down, Run is a no-op; reaching zero
// clears the message and re-enables the control.
func (e *Evaluator) startCooldown(seconds int) {
	if seconds <= 0 {
		seconds = 1
	}
	e.mu.Lock()
	e.cooldown = seconds
	e.msgGen++
	e.message = fmt.Sprintf("On cooldown, retry in %ds", seconds)
	e.isError = false
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cooldownTick)
		defer ticker.Stop()
		for range ticker.C {
			e.mu.Lock()
			e.cooldown--
			if e.cooldown <= 0 {
				e.cooldown = 0
				e.message = ""
				e.mu.Unlock()
				return
			}
			e.message = fmt.Sprintf("On cooldown, retry in %ds", e.cooldown)
			e.mu.Unlock()
		}
	}()
}

func (e *Evaluator) setMessage(msg string, isErr bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgGen++
	e.message = msg
	e.isError = isErr
}

// setTransientMessage shows a success message that clears itself after
// a short TTL unless a newer message has replaced it in the meantime.
func (e *Evaluator) setTransientMessage(msg string) {
	e.mu.Lock()
	e.msgGen++
	gen := e.msgGen
	e.message = msg
	e.isError = false
	e.mu.Unlock()

	time.AfterFunc(e.successTTL, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.msgGen == gen {
			e.message = ""
		}
	})
}

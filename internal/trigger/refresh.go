package trigger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/notify"
)

// Actions groups the fire-and-forget write operations. None of them
// enforce a client-side cooldown; the outcome is surfaced through the
// notification bridge and the returned error.
type Actions struct {
	client   *api.Client
	notifier *notify.Bridge
	met      *metrics.Metrics
}

func NewActions(client *api.Client, notifier *notify.Bridge, met *metrics.Metrics) *Actions {
	return &Actions{client: client, notifier: notifier, met: met}
}

// RefreshLiveData asks the backend to re-pull provider data. The call
// runs with the longer refresh timeout and is never retried. Failures
// prefer the structured detail.reason from the error body over the raw
// status text.
func (a *Actions) RefreshLiveData(ctx context.Context) (api.RefreshResult, error) {
	a.met.TriggerRun("refresh_live_data")
	res, err := a.client.RefreshLiveData(ctx)
	if err != nil {
		a.met.TriggerFailed("refresh_live_data")
		msg := err.Error()
		if apiErr, ok := api.AsError(err); ok {
			if reason := apiErr.DetailReason(); reason != "" {
				msg = reason
			}
		}
		a.notifier.Push(notify.Item{
			Source:   notify.SourceSystem,
			Severity: notify.SeverityError,
			Title:    "Live data refresh failed",
			Message:  msg,
		})
		return api.RefreshResult{}, err
	}

	log.Info().Int("row_count", res.RowCount).Msg("live data refreshed")
	msg := "Provider data refreshed"
	if res.RowCount > 0 {
		msg = fmt.Sprintf("Provider data refreshed, %d rows", res.RowCount)
	}
	a.notifier.Push(notify.Item{
		Source:   notify.SourceSystem,
		Severity: notify.SeverityInfo,
		Title:    "Live data refreshed",
		Message:  msg,
	})
	return res, nil
}

// SaveRiskProfile persists the risk profile.
func (a *Actions) SaveRiskProfile(ctx context.Context, profile api.RiskProfile) error {
	a.met.TriggerRun("save_risk_profile")
	if err := a.client.SaveRiskProfile(ctx, profile); err != nil {
		a.met.TriggerFailed("save_risk_profile")
		a.notifier.Push(notify.Item{
			Source:   notify.SourceSystem,
			Severity: notify.SeverityError,
			Title:    "Risk profile save failed",
			Message:  err.Error(),
		})
		return err
	}
	a.notifier.Push(notify.Item{
		Source:   notify.SourceSystem,
		Severity: notify.SeverityInfo,
		Title:    "Risk profile saved",
		Message:  "Risk profile updated",
	})
	return nil
}

// ClosePosition marks a tracked position closed.
func (a *Actions) ClosePosition(ctx context.Context, req api.ClosePositionRequest) error {
	a.met.TriggerRun("close_position")
	if err := a.client.ClosePosition(ctx, req); err != nil {
		a.met.TriggerFailed("close_position")
		a.notifier.Push(notify.Item{
			Source:   notify.SourceSystem,
			Severity: notify.SeverityError,
			Title:    "Close position failed",
			Message:  fmt.Sprintf("%s: %v", req.Symbol, err),
			Symbol:   req.Symbol,
		})
		return err
	}
	a.notifier.Push(notify.Item{
		Source:   notify.SourceSystem,
		Severity: notify.SeverityInfo,
		Title:    "Position closed",
		Message:  req.Symbol + " closed",
		Symbol:   req.Symbol,
	})
	return nil
}

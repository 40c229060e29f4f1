package api

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Endpoint paths of the backend contract. The healthcheck CLI probes
// the same set.
const (
	PathHealthz           = "/api/healthz"
	PathUniverse          = "/api/view/universe"
	PathDailyOverview     = "/api/view/daily-overview"
	PathPositions         = "/api/view/positions"
	PathAlerts            = "/api/view/alerts"
	PathDecisionHistory   = "/api/view/decision-history"
	PathSymbolDiagnostics = "/api/view/symbol-diagnostics"
	PathOpsStatus         = "/api/ops/status"
	PathMarketStatus      = "/api/ops/market-status"
	PathDataHealth        = "/api/ops/data-health"
	PathSnapshot          = "/api/ops/snapshot"
	PathRefreshLiveData   = "/api/ops/refresh-live-data"
	PathEvaluate          = "/api/ops/evaluate"
	PathRiskProfile       = "/api/risk-profile"
	PathClosePosition     = "/api/positions/close"
)

// refreshTimeout is longer than the default because the provider
// refresh call does real work upstream.
const refreshTimeout = 20 * time.Second

// Healthz reports backend liveness. Any HTTP answer below 500 counts
// as alive; only transport failures and server errors do not.
func (c *Client) Healthz(ctx context.Context) bool {
	var out map[string]any
	err := c.Get(ctx, PathHealthz, &out)
	if err == nil {
		return true
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Status >= 400 && apiErr.Status < 500
	}
	return false
}

func (c *Client) OpsStatus(ctx context.Context) (OpsStatus, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathOpsStatus, &raw); err != nil {
		return DefaultOpsStatus(), err
	}
	return OpsStatusFromJSON(raw), nil
}

func (c *Client) MarketStatus(ctx context.Context) (MarketStatus, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathMarketStatus, &raw); err != nil {
		return DefaultMarketStatus(), err
	}
	return MarketStatusFromJSON(raw), nil
}

func (c *Client) DataHealth(ctx context.Context) (DataHealth, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathDataHealth, &raw); err != nil {
		return DefaultDataHealth(), err
	}
	return DataHealthFromJSON(raw), nil
}

func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathSnapshot, &raw); err != nil {
		return DefaultSnapshot(), err
	}
	return SnapshotFromJSON(raw), nil
}

func (c *Client) Universe(ctx context.Context) (Universe, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathUniverse, &raw); err != nil {
		return DefaultUniverse(), err
	}
	return UniverseFromJSON(raw), nil
}

func (c *Client) DailyOverview(ctx context.Context) (DailyOverview, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathDailyOverview, &raw); err != nil {
		return DefaultDailyOverview(), err
	}
	return DailyOverviewFromJSON(raw), nil
}

// Positions returns the raw position rows. The endpoint answers a
// bare JSON array, possibly empty; an empty body normalizes to [].
func (c *Client) Positions(ctx context.Context) ([]map[string]any, error) {
	var raw []map[string]any
	if err := c.Get(ctx, PathPositions, &raw); err != nil {
		return []map[string]any{}, err
	}
	if raw == nil {
		raw = []map[string]any{}
	}
	return raw, nil
}

func (c *Client) Alerts(ctx context.Context) (Alerts, error) {
	var raw map[string]any
	if err := c.Get(ctx, PathAlerts, &raw); err != nil {
		return DefaultAlerts(), err
	}
	return AlertsFromJSON(raw), nil
}

func (c *Client) DecisionHistory(ctx context.Context) ([]map[string]any, error) {
	var raw []map[string]any
	if err := c.Get(ctx, PathDecisionHistory, &raw); err != nil {
		return []map[string]any{}, err
	}
	if raw == nil {
		raw = []map[string]any{}
	}
	return raw, nil
}

func (c *Client) SymbolDiagnostics(ctx context.Context, symbol string) (SymbolDiagnostics, error) {
	path := fmt.Sprintf("%s?symbol=%s", PathSymbolDiagnostics, url.QueryEscape(symbol))
	var raw map[string]any
	if err := c.Get(ctx, path, &raw); err != nil {
		return DefaultSymbolDiagnostics(symbol), err
	}
	diag := SymbolDiagnosticsFromJSON(raw)
	if diag.Symbol == "" {
		diag.Symbol = symbol
	}
	return diag, nil
}

func (c *Client) RefreshLiveData(ctx context.Context) (RefreshResult, error) {
	var out RefreshResult
	err := c.Do(ctx, "POST", PathRefreshLiveData, map[string]any{}, &out, ReqOpt{Timeout: refreshTimeout})
	return out, err
}

// Evaluate kicks off a backend evaluation run. token, when set, is
// forwarded as X-Trigger-Token.
func (c *Client) Evaluate(ctx context.Context, reason, scope, token string) (EvaluateResponse, error) {
	opt := ReqOpt{}
	if token != "" {
		opt.Headers = map[string]string{"X-Trigger-Token": token}
	}
	body := map[string]string{"reason": reason, "scope": scope}
	var out EvaluateResponse
	err := c.Do(ctx, "POST", PathEvaluate, body, &out, opt)
	return out, err
}

func (c *Client) EvaluateJob(ctx context.Context, jobID string) (JobStatus, error) {
	var out JobStatus
	err := c.Get(ctx, PathEvaluate+"/"+url.PathEscape(jobID), &out)
	return out, err
}

func (c *Client) SaveRiskProfile(ctx context.Context, profile RiskProfile) error {
	var out map[string]any
	return c.Put(ctx, PathRiskProfile, profile, &out)
}

func (c *Client) ClosePosition(ctx context.Context, req ClosePositionRequest) error {
	var out map[string]any
	return c.Post(ctx, PathClosePosition, req, &out)
}

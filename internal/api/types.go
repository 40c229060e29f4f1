package api

// Normalized backend shapes. Each type has a Default constructor (the
// documented sentinel state) and a FromJSON constructor that fills
// every field from a raw decoded object, defaulting anything missing
// or wrongly typed. Rendering code downstream never null-checks.

// OpsStatus mirrors GET /api/ops/status.
type OpsStatus struct {
	LastRunAt        string         `json:"last_run_at"`
	NextRunAt        string         `json:"next_run_at"`
	CadenceMinutes   int            `json:"cadence_minutes"`
	BlockersSummary  map[string]int `json:"blockers_summary"`
	SymbolsEvaluated int            `json:"symbols_evaluated"`
	TradesFound      int            `json:"trades_found"`
	MarketPhase      string         `json:"market_phase"`
}

func DefaultOpsStatus() OpsStatus {
	return OpsStatus{BlockersSummary: map[string]int{}}
}

func OpsStatusFromJSON(m map[string]any) OpsStatus {
	return OpsStatus{
		LastRunAt:        jsonStr(m, "last_run_at"),
		NextRunAt:        jsonStr(m, "next_run_at"),
		CadenceMinutes:   jsonInt(m, "cadence_minutes"),
		BlockersSummary:  jsonIntMap(m, "blockers_summary"),
		SymbolsEvaluated: jsonInt(m, "symbols_evaluated"),
		TradesFound:      jsonInt(m, "trades_found"),
		MarketPhase:      jsonStr(m, "market_phase"),
	}
}

// MarketStatus mirrors GET /api/ops/market-status.
type MarketStatus struct {
	Phase       string `json:"phase"`
	IsOpen      bool   `json:"is_open"`
	AsOf        string `json:"as_of"`
	NextOpenAt  string `json:"next_open_at"`
	NextCloseAt string `json:"next_close_at"`
}

func DefaultMarketStatus() MarketStatus {
	return MarketStatus{Phase: "UNKNOWN"}
}

func MarketStatusFromJSON(m map[string]any) MarketStatus {
	status := MarketStatus{
		Phase:       jsonStr(m, "phase"),
		IsOpen:      jsonBool(m, "is_open"),
		AsOf:        jsonStr(m, "as_of"),
		NextOpenAt:  jsonStr(m, "next_open_at"),
		NextCloseAt: jsonStr(m, "next_close_at"),
	}
	if status.Phase == "" {
		status.Phase = "UNKNOWN"
	}
	return status
}

// DataHealth mirrors GET /api/ops/data-health.
type DataHealth struct {
	Provider          string  `json:"provider"`
	Status            string  `json:"status"`
	LastSuccessAt     string  `json:"last_success_at"`
	LastErrorReason   string  `json:"last_error_reason"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
	Entitlement       string  `json:"entitlement"`
}

func DefaultDataHealth() DataHealth {
	return DataHealth{Status: "UNKNOWN"}
}

func DataHealthFromJSON(m map[string]any) DataHealth {
	health := DataHealth{
		Provider:          jsonStr(m, "provider"),
		Status:            jsonStr(m, "status"),
		LastSuccessAt:     jsonStr(m, "last_success_at"),
		LastErrorReason:   jsonStr(m, "last_error_reason"),
		AvgLatencySeconds: jsonNum(m, "avg_latency_seconds"),
		Entitlement:       jsonStr(m, "entitlement"),
	}
	if health.Status == "" {
		health.Status = "UNKNOWN"
	}
	return health
}

// UniverseCounts is the universe block inside a snapshot.
type UniverseCounts struct {
	Total     int `json:"total"`
	Evaluated int `json:"evaluated"`
	Eligible  int `json:"eligible"`
}

// Snapshot mirrors GET /api/ops/snapshot, the heaviest backend read.
// SnapshotOK false with HasRun false is the normal "no run yet" state,
// not an error; callers must check it before reading the other fields.
type Snapshot struct {
	SnapshotOK    bool             `json:"snapshot_ok"`
	HasRun        bool             `json:"has_run"`
	SnapshotPhase string           `json:"snapshot_phase"`
	Universe      UniverseCounts   `json:"universe"`
	Warnings      []string         `json:"warnings"`
	Errors        []string         `json:"errors"`
	FinalTrade    map[string]any   `json:"final_trade"`
	PipelineSteps []map[string]any `json:"pipeline_steps"`
}

func DefaultSnapshot() Snapshot {
	return Snapshot{
		Warnings:      []string{},
		Errors:        []string{},
		FinalTrade:    map[string]any{},
		PipelineSteps: []map[string]any{},
	}
}

func SnapshotFromJSON(m map[string]any) Snapshot {
	universe := jsonMap(m, "universe")
	return Snapshot{
		SnapshotOK:    jsonBool(m, "snapshot_ok"),
		HasRun:        jsonBool(m, "has_run"),
		SnapshotPhase: jsonStr(m, "snapshot_phase"),
		Universe: UniverseCounts{
			Total:     jsonInt(universe, "total"),
			Evaluated: jsonInt(universe, "evaluated"),
			Eligible:  jsonInt(universe, "eligible"),
		},
		Warnings:      jsonStrSlice(m, "warnings"),
		Errors:        jsonStrSlice(m, "errors"),
		FinalTrade:    jsonMap(m, "final_trade"),
		PipelineSteps: jsonMapSlice(m, "pipeline_steps"),
	}
}

// Universe mirrors GET /api/view/universe.
type Universe struct {
	Symbols   []map[string]any `json:"symbols"`
	UpdatedAt string           `json:"updated_at"`
}

func DefaultUniverse() Universe {
	return Universe{Symbols: []map[string]any{}}
}

func UniverseFromJSON(m map[string]any) Universe {
	return Universe{
		Symbols:   jsonMapSlice(m, "symbols"),
		UpdatedAt: jsonStr(m, "updated_at"),
	}
}

// DailyOverview mirrors GET /api/view/daily-overview.
type DailyOverview struct {
	Date                       string           `json:"date"`
	RunMode                    string           `json:"run_mode"`
	SymbolsEvaluated           int              `json:"symbols_evaluated"`
	WhySummary                 string           `json:"why_summary"`
	Links                      map[string]any   `json:"links"`
	FreezeViolationChangedKeys []string         `json:"freeze_violation_changed_keys"`
	TopBlockers                []map[string]any `json:"top_blockers"`
}

func DefaultDailyOverview() DailyOverview {
	return DailyOverview{
		Links:                      map[string]any{},
		FreezeViolationChangedKeys: []string{},
		TopBlockers:                []map[string]any{},
	}
}

func DailyOverviewFromJSON(m map[string]any) DailyOverview {
	return DailyOverview{
		Date:                       jsonStr(m, "date"),
		RunMode:                    jsonStr(m, "run_mode"),
		SymbolsEvaluated:           jsonInt(m, "symbols_evaluated"),
		WhySummary:                 jsonStr(m, "why_summary"),
		Links:                      jsonMap(m, "links"),
		FreezeViolationChangedKeys: jsonStrSlice(m, "freeze_violation_changed_keys"),
		TopBlockers:                jsonMapSlice(m, "top_blockers"),
	}
}

// Alerts mirrors GET /api/view/alerts.
type Alerts struct {
	AsOf  string           `json:"as_of"`
	Items []map[string]any `json:"items"`
}

func DefaultAlerts() Alerts {
	return Alerts{Items: []map[string]any{}}
}

func AlertsFromJSON(m map[string]any) Alerts {
	return Alerts{
		AsOf:  jsonStr(m, "as_of"),
		Items: jsonMapSlice(m, "items"),
	}
}

// SymbolDiagnostics mirrors GET /api/view/symbol-diagnostics.
type SymbolDiagnostics struct {
	Symbol         string           `json:"symbol"`
	FetchedAt      string           `json:"fetched_at"`
	Recommendation string           `json:"recommendation"`
	Gates          []map[string]any `json:"gates"`
	Blockers       []map[string]any `json:"blockers"`
}

func DefaultSymbolDiagnostics(symbol string) SymbolDiagnostics {
	return SymbolDiagnostics{
		Symbol:   symbol,
		Gates:    []map[string]any{},
		Blockers: []map[string]any{},
	}
}

func SymbolDiagnosticsFromJSON(m map[string]any) SymbolDiagnostics {
	return SymbolDiagnostics{
		Symbol:         jsonStr(m, "symbol"),
		FetchedAt:      jsonStr(m, "fetched_at"),
		Recommendation: jsonStr(m, "recommendation"),
		Gates:          jsonMapSlice(m, "gates"),
		Blockers:       jsonMapSlice(m, "blockers"),
	}
}

// RefreshResult mirrors POST /api/ops/refresh-live-data.
type RefreshResult struct {
	OK         bool `json:"ok"`
	RowCount   int  `json:"row_count"`
	HTTPStatus int  `json:"http_status"`
}

// EvaluateResponse mirrors POST /api/ops/evaluate.
type EvaluateResponse struct {
	Accepted                 bool   `json:"accepted"`
	JobID                    string `json:"job_id"`
	CooldownSecondsRemaining int    `json:"cooldown_seconds_remaining"`
}

// Evaluate job states returned by GET /api/ops/evaluate/{job_id}.
// The endpoint is contracted to answer HTTP 200 even for unknown jobs.
const (
	JobRunning  = "running"
	JobDone     = "done"
	JobFailed   = "failed"
	JobNotFound = "not_found"
)

// JobStatus mirrors GET /api/ops/evaluate/{job_id}.
type JobStatus struct {
	State string `json:"state"`
	Error string `json:"error"`
}

// RiskProfile is the payload for PUT /api/risk-profile.
type RiskProfile struct {
	MaxPositions    int     `json:"max_positions"`
	MaxAllocPct     float64 `json:"max_alloc_pct"`
	MaxLossPerTrade float64 `json:"max_loss_per_trade"`
	Notes           string  `json:"notes"`
}

// ClosePositionRequest is the payload for POST /api/positions/close.
type ClosePositionRequest struct {
	Symbol   string  `json:"symbol"`
	ClosedAt string  `json:"closed_at"`
	ExitSpot float64 `json:"exit_spot"`
	Reason   string  `json:"reason"`
}

// Package fixtures serves the MOCK dataset. Every shape the live
// backend produces has a deterministic local counterpart here, so MOCK
// mode is fully offline: the session phase is derived from the local
// exchange calendar instead of being fetched.
package fixtures

import (
	"time"

	"github.com/swap2you/chakraops/internal/api"
)

var mockSymbols = []string{"NVDA", "AAPL", "MSFT", "AMD", "TSLA", "META"}

// Dataset produces the mock payloads. The clock is injectable so tests
// can pin the derived phase and timestamps.
type Dataset struct {
	now func() time.Time
}

func New() *Dataset {
	return &Dataset{now: time.Now}
}

func NewWithClock(now func() time.Time) *Dataset {
	return &Dataset{now: now}
}

func (d *Dataset) OpsStatus() api.OpsStatus {
	now := d.now()
	return api.OpsStatus{
		LastRunAt:      now.Add(-12 * time.Minute).UTC().Format(time.RFC3339),
		NextRunAt:      now.Add(18 * time.Minute).UTC().Format(time.RFC3339),
		CadenceMinutes: 30,
		BlockersSummary: map[string]int{
			"IV_RANK_LOW":     2,
			"EARNINGS_SOON":   1,
			"SPREAD_TOO_WIDE": 3,
		},
		SymbolsEvaluated: len(mockSymbols),
		TradesFound:      1,
		MarketPhase:      PhaseAt(now),
	}
}

func (d *Dataset) MarketStatus() api.MarketStatus {
	now := d.now()
	phase := PhaseAt(now)
	return api.MarketStatus{
		Phase:       phase,
		IsOpen:      phase == PhaseRTH,
		AsOf:        now.UTC().Format(time.RFC3339),
		NextOpenAt:  nextSessionOpen(now).UTC().Format(time.RFC3339),
		NextCloseAt: nextSessionClose(now).UTC().Format(time.RFC3339),
	}
}

func (d *Dataset) DataHealth() api.DataHealth {
	return api.DataHealth{
		Provider:          "mock",
		Status:            "OK",
		LastSuccessAt:     d.now().Add(-time.Minute).UTC().Format(time.RFC3339),
		AvgLatencySeconds: 0.42,
		Entitlement:       "delayed",
	}
}

func (d *Dataset) Snapshot() api.Snapshot {
	return api.Snapshot{
		SnapshotOK:    true,
		HasRun:        true,
		SnapshotPhase: "COMPLETE",
		Universe:      api.UniverseCounts{Total: len(mockSymbols), Evaluated: len(mockSymbols), Eligible: 2},
		Warnings:      []string{"TSLA quote older than 15m"},
		Errors:        []string{},
		FinalTrade: map[string]any{
			"symbol":   "NVDA",
			"strategy": "put_credit_spread",
			"credit":   1.35,
			"max_loss": 3.65,
		},
		PipelineSteps: []map[string]any{
			{"step": "universe_load", "status": "ok"},
			{"step": "quote_fetch", "status": "ok"},
			{"step": "gate_evaluation", "status": "ok"},
			{"step": "trade_selection", "status": "ok"},
		},
	}
}

func (d *Dataset) Universe() api.Universe {
	symbols := make([]map[string]any, 0, len(mockSymbols))
	for i, sym := range mockSymbols {
		symbols = append(symbols, map[string]any{
			"symbol":   sym,
			"spot":     100.0 + float64(i)*25.5,
			"iv_rank":  35 + i*7,
			"eligible": i%3 == 0,
		})
	}
	return api.Universe{
		Symbols:   symbols,
		UpdatedAt: d.now().UTC().Format(time.RFC3339),
	}
}

func (d *Dataset) DailyOverview() api.DailyOverview {
	return api.DailyOverview{
		Date:                       d.now().UTC().Format("2006-01-02"),
		RunMode:                    "mock",
		SymbolsEvaluated:           len(mockSymbols),
		WhySummary:                 "1 candidate passed all gates; 5 blocked",
		Links:                      map[string]any{"run_log": "/logs/mock-run"},
		FreezeViolationChangedKeys: []string{},
		TopBlockers: []map[string]any{
			{"code": "SPREAD_TOO_WIDE", "count": 3},
			{"code": "IV_RANK_LOW", "count": 2},
		},
	}
}

func (d *Dataset) Positions() []map[string]any {
	return []map[string]any{
		{
			"symbol":    "NVDA",
			"strategy":  "put_credit_spread",
			"opened_at": d.now().AddDate(0, 0, -3).UTC().Format(time.RFC3339),
			"credit":    1.35,
			"status":    "open",
			"expiry":    d.now().AddDate(0, 0, 18).UTC().Format("2006-01-02"),
		},
	}
}

func (d *Dataset) Alerts() api.Alerts {
	return api.Alerts{
		AsOf: d.now().UTC().Format(time.RFC3339),
		Items: []map[string]any{
			{
				"symbol":   "NVDA",
				"severity": "info",
				"title":    "Trade candidate found",
				"message":  "put_credit_spread candidate passed all gates",
			},
		},
	}
}

func (d *Dataset) DecisionHistory() []map[string]any {
	history := make([]map[string]any, 0, 3)
	for i := 1; i <= 3; i++ {
		history = append(history, map[string]any{
			"run_at":   d.now().AddDate(0, 0, -i).UTC().Format(time.RFC3339),
			"decision": "no_trade",
			"reason":   "code=IV_RANK_LOW; threshold=40",
		})
	}
	return history
}

func (d *Dataset) SymbolDiagnostics(symbol string) api.SymbolDiagnostics {
	return api.SymbolDiagnostics{
		Symbol:         symbol,
		FetchedAt:      d.now().UTC().Format(time.RFC3339),
		Recommendation: "HOLD",
		Gates: []map[string]any{
			{"gate": "iv_rank", "passed": true, "value": 42},
			{"gate": "earnings_window", "passed": true},
			{"gate": "spread_width", "passed": false, "value": 0.18},
		},
		Blockers: []map[string]any{
			{"code": "SPREAD_TOO_WIDE", "detail": "bid/ask spread 18% of mid"},
		},
	}
}

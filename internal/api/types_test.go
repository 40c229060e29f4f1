package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpsStatusFromJSONDefaults(t *testing.T) {
	// Entirely empty payload yields the documented sentinel object.
	got := OpsStatusFromJSON(map[string]any{})
	assert.Equal(t, DefaultOpsStatus(), got)

	// Missing and wrongly typed fields fall back individually.
	got = OpsStatusFromJSON(map[string]any{
		"last_run_at":      "2026-08-31T12:00:00Z",
		"cadence_minutes":  float64(15),
		"trades_found":     "three", // wrong type
		"blockers_summary": map[string]any{"iv_too_low": float64(4)},
	})
	assert.Equal(t, "2026-08-31T12:00:00Z", got.LastRunAt)
	assert.Equal(t, 15, got.CadenceMinutes)
	assert.Equal(t, 0, got.TradesFound)
	assert.Equal(t, map[string]int{"iv_too_low": 4}, got.BlockersSummary)
	assert.NotNil(t, got.BlockersSummary)
}

func TestSnapshotFromJSONDefaults(t *testing.T) {
	got := SnapshotFromJSON(map[string]any{})
	assert.False(t, got.SnapshotOK)
	assert.False(t, got.HasRun)
	assert.NotNil(t, got.Warnings)
	assert.NotNil(t, got.Errors)
	assert.NotNil(t, got.FinalTrade)
	assert.NotNil(t, got.PipelineSteps)
	assert.Equal(t, 0, got.Universe.Total)

	got = SnapshotFromJSON(map[string]any{
		"snapshot_ok":    true,
		"has_run":        true,
		"snapshot_phase": "COMPLETE",
		"universe":       map[string]any{"total": float64(120), "evaluated": float64(100), "eligible": float64(12)},
		"warnings":       []any{"stale quotes", 42}, // non-strings dropped
	})
	assert.True(t, got.SnapshotOK)
	assert.Equal(t, 120, got.Universe.Total)
	assert.Equal(t, 12, got.Universe.Eligible)
	assert.Equal(t, []string{"stale quotes"}, got.Warnings)
}

func TestDataHealthFromJSONStatusSentinel(t *testing.T) {
	got := DataHealthFromJSON(map[string]any{"provider": "polygon"})
	assert.Equal(t, "UNKNOWN", got.Status)

	got = DataHealthFromJSON(map[string]any{"status": "UP", "avg_latency_seconds": 0.42})
	assert.Equal(t, "UP", got.Status)
	assert.InDelta(t, 0.42, got.AvgLatencySeconds, 1e-9)
}

func TestMarketStatusFromJSONPhaseSentinel(t *testing.T) {
	got := MarketStatusFromJSON(map[string]any{})
	assert.Equal(t, "UNKNOWN", got.Phase)
	assert.False(t, got.IsOpen)

	got = MarketStatusFromJSON(map[string]any{"phase": "RTH", "is_open": true})
	assert.Equal(t, "RTH", got.Phase)
	assert.True(t, got.IsOpen)
}

func TestDailyOverviewFromJSONArraysNeverNil(t *testing.T) {
	got := DailyOverviewFromJSON(map[string]any{"date": "2026-09-01"})
	assert.Equal(t, "2026-09-01", got.Date)
	assert.NotNil(t, got.Links)
	assert.NotNil(t, got.FreezeViolationChangedKeys)
	assert.NotNil(t, got.TopBlockers)
}

func TestSymbolDiagnosticsFromJSONKeepsRequestedSymbol(t *testing.T) {
	got := DefaultSymbolDiagnostics("SPY")
	assert.Equal(t, "SPY", got.Symbol)
	assert.NotNil(t, got.Gates)
	assert.NotNil(t, got.Blockers)
}

func TestIdempotentDefaultFill(t *testing.T) {
	// A full response followed by an empty one lands exactly on the
	// documented default object.
	full := OpsStatusFromJSON(map[string]any{
		"last_run_at":       "x",
		"symbols_evaluated": float64(9),
	})
	assert.Equal(t, 9, full.SymbolsEvaluated)

	empty := OpsStatusFromJSON(map[string]any{})
	assert.Equal(t, DefaultOpsStatus(), empty)
}

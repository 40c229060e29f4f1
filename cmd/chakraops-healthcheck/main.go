// chakraops-healthcheck probes the backend endpoint set once and
// writes a timestamped JSON report. It exits non-zero when any probe
// produced a warning, which makes it usable as a deploy gate.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
)

const probeTimeout = 15 * time.Second

type probeResult struct {
	Endpoint   string   `json:"endpoint"`
	OK         bool     `json:"ok"`
	DurationMs int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

type report struct {
	GeneratedAt string        `json:"generated_at"`
	BaseURL     string        `json:"base_url"`
	MarketPhase string        `json:"market_phase,omitempty"`
	Results     []probeResult `json:"results"`
	WarningsN   int           `json:"warnings_total"`
}

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("LIVE_API_BASE_URL")
	if baseURL == "" {
		baseURL = os.Getenv("VITE_API_BASE_URL")
	}
	if baseURL == "" {
		log.Fatal().Msg("LIVE_API_BASE_URL or VITE_API_BASE_URL must be set")
	}

	client := api.New(baseURL, os.Getenv("VITE_API_KEY"), probeTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rep := report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		BaseURL:     baseURL,
		MarketPhase: os.Getenv("MARKET_PHASE"),
	}
	rep.Results = runProbes(ctx, client, rep.MarketPhase)
	for _, r := range rep.Results {
		rep.WarningsN += len(r.Warnings)
		if !r.OK {
			rep.WarningsN++
		}
	}

	path, err := writeReport(rep)
	if err != nil {
		log.Fatal().Err(err).Msg("report write failed")
	}
	log.Info().Str("report", path).Int("warnings", rep.WarningsN).Msg("healthcheck complete")

	if rep.WarningsN > 0 {
		os.Exit(1)
	}
}

func runProbes(ctx context.Context, client *api.Client, expectedPhase string) []probeResult {
	probes := []struct {
		endpoint string
		run      func(context.Context) []string
	}{
		{api.PathHealthz, func(ctx context.Context) []string {
			if !client.Healthz(ctx) {
				return []string{"healthz probe did not get a response"}
			}
			return nil
		}},
		{api.PathOpsStatus, func(ctx context.Context) []string {
			ops, err := client.OpsStatus(ctx)
			if err != nil {
				return []string{err.Error()}
			}
			var warns []string
			if ops.LastRunAt == "" {
				warns = append(warns, "last_run_at missing")
			}
			if expectedPhase != "" && ops.MarketPhase != expectedPhase {
				warns = append(warns, fmt.Sprintf("market_phase %q, expected %q", ops.MarketPhase, expectedPhase))
			}
			return warns
		}},
		{api.PathDataHealth, func(ctx context.Context) []string {
			health, err := client.DataHealth(ctx)
			if err != nil {
				return []string{err.Error()}
			}
			if health.Status != "OK" {
				return []string{fmt.Sprintf("data health status %q", health.Status)}
			}
			return nil
		}},
		{api.PathSnapshot, func(ctx context.Context) []string {
			snap, err := client.Snapshot(ctx)
			if err != nil {
				return []string{err.Error()}
			}
			var warns []string
			if snap.HasRun && !snap.SnapshotOK {
				warns = append(warns, "snapshot ran but snapshot_ok is false")
			}
			for _, e := range snap.Errors {
				warns = append(warns, "snapshot error: "+e)
			}
			return warns
		}},
		{api.PathUniverse, func(ctx context.Context) []string {
			uni, err := client.Universe(ctx)
			if err != nil {
				return []string{err.Error()}
			}
			if len(uni.Symbols) == 0 {
				return []string{"universe is empty"}
			}
			return nil
		}},
		{api.PathDailyOverview, func(ctx context.Context) []string {
			if _, err := client.DailyOverview(ctx); err != nil {
				return []string{err.Error()}
			}
			return nil
		}},
		{api.PathPositions, func(ctx context.Context) []string {
			if _, err := client.Positions(ctx); err != nil {
				return []string{err.Error()}
			}
			return nil
		}},
		{api.PathAlerts, func(ctx context.Context) []string {
			if _, err := client.Alerts(ctx); err != nil {
				return []string{err.Error()}
			}
			return nil
		}},
	}

	results := make([]probeResult, 0, len(probes))
	for _, p := range probes {
		start := time.Now()
		warns := p.run(ctx)
		results = append(results, probeResult{
			Endpoint:   p.endpoint,
			OK:         len(warns) == 0,
			DurationMs: time.Since(start).Milliseconds(),
			Warnings:   warns,
		})
	}
	return results
}

func writeReport(rep report) (string, error) {
	dir := os.Getenv("HEALTHCHECK_ARTIFACTS_DIR")
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	name := fmt.Sprintf("healthcheck-%s.json", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

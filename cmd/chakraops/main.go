package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/cfg"
	"github.com/swap2you/chakraops/internal/fixtures"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/notify"
	"github.com/swap2you/chakraops/internal/sched"
	"github.com/swap2you/chakraops/internal/server"
	"github.com/swap2you/chakraops/internal/trigger"
	"github.com/swap2you/chakraops/internal/views"
	"github.com/swap2you/chakraops/internal/watch"
)

func main() {
	// Optional; a missing .env is not an error.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	met := metrics.New()
	modes := mode.NewManager(mode.FromString(c.DataMode))
	met.SetLiveMode(modes.IsLive())

	client := api.New(c.BaseURL, c.APIKey, c.RESTTimeout)
	bridge := notify.Open(c.DataPath, met)
	defer bridge.Close()

	poller := sched.New(modes, met, c.PollInterval, c.BackoffPoll)
	defer poller.Stop()

	ops := watch.NewOpsStatusWatcher(client, modes, met)
	market := watch.NewMarketStatusWatcher(client, modes, met)
	health := watch.NewDataHealthWatcher(client, modes, bridge, met)
	snapshot := watch.NewSnapshotWatcher(client, modes, bridge, met, c.SnapshotPoll)
	upstream := watch.NewHealthzWatcher(client, modes, poller, met)

	startWatchers(ctx, poller, ops, market, health, snapshot, upstream)
	if modes.IsLive() {
		poller.Start()
	}

	startMetricsServer(ctx, c)

	srv := server.New(server.Deps{
		Settings:  c,
		Modes:     modes,
		Poller:    poller,
		Ops:       ops,
		Market:    market,
		Health:    health,
		Snapshot:  snapshot,
		Upstream:  upstream,
		Views:     views.New(client, modes, fixtures.New()),
		Bridge:    bridge,
		Evaluator: trigger.NewEvaluator(client, poller, bridge, met, c.TriggerToken),
		Actions:   trigger.NewActions(client, bridge, met),
		Metrics:   met,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			log.Error().Err(err).Msg("dashboard server failed")
			cancel()
		}
	}()

	log.Info().
		Str("mode", string(modes.Current())).
		Str("base_url", c.BaseURL).
		Int("port", c.ListenPort).
		Msg("chakraops started")

	waitForShutdown(ctx, cancel, &wg)
}

// startWatchers subscribes each shared-cadence watcher to its own tick
// channel and starts the snapshot watcher's independent timer.
func startWatchers(ctx context.Context, poller *sched.Poller,
	ops *watch.OpsStatusWatcher, market *watch.MarketStatusWatcher,
	health *watch.DataHealthWatcher, snapshot *watch.SnapshotWatcher,
	upstream *watch.HealthzWatcher,
) {
	ops.Start(ctx, poller.Subscribe())
	market.Start(ctx, poller.Subscribe())
	health.Start(ctx, poller.Subscribe())
	upstream.Start(ctx, poller.Subscribe())
	snapshot.Start(ctx)
}

// startMetricsServer serves Prometheus metrics on its own port.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown blocks on a signal, cancels the root context and
// gives the servers a bounded window to drain.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}

// Package server exposes the dashboard HTTP surface: JSON endpoints
// over the watcher state, views, notifications and trigger actions,
// plus a websocket stream pushing notification and mode events to
// connected browsers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/cfg"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/notify"
	"github.com/swap2you/chakraops/internal/sched"
	"github.com/swap2you/chakraops/internal/trigger"
	"github.com/swap2you/chakraops/internal/views"
	"github.com/swap2you/chakraops/internal/watch"
)

// Deps is everything the HTTP surface renders or drives. The server
// owns none of it; lifecycle belongs to the composition root.
type Deps struct {
	Settings  cfg.Settings
	Modes     *mode.Manager
	Poller    *sched.Poller
	Ops       *watch.OpsStatusWatcher
	Market    *watch.MarketStatusWatcher
	Health    *watch.DataHealthWatcher
	Snapshot  *watch.SnapshotWatcher
	Upstream  *watch.HealthzWatcher
	Views     *views.Service
	Bridge    *notify.Bridge
	Evaluator *trigger.Evaluator
	Actions   *trigger.Actions
	Metrics   *metrics.Metrics
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	hub    *Hub
	http   *http.Server
}

func New(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		deps:   deps,
		engine: engine,
		hub:    NewHub(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.getHealthz)

	ui := s.engine.Group("/ui")
	ui.GET("/state", s.getState)
	ui.GET("/notifications", s.getNotifications)
	ui.POST("/notifications/read", s.postNotificationsRead)
	ui.GET("/view/universe", s.getUniverse)
	ui.GET("/view/daily-overview", s.getDailyOverview)
	ui.GET("/view/positions", s.getPositions)
	ui.GET("/view/alerts", s.getAlerts)
	ui.GET("/view/decision-history", s.getDecisionHistory)
	ui.GET("/view/symbol-diagnostics", s.getSymbolDiagnostics)
	ui.POST("/actions/evaluate", s.postEvaluate)
	ui.POST("/actions/refresh", s.postRefresh)
	ui.POST("/actions/refetch-snapshot", s.postRefetchSnapshot)
	ui.POST("/actions/close-position", s.postClosePosition)
	ui.PUT("/risk-profile", s.putRiskProfile)
	ui.POST("/mode", s.postMode)
	ui.GET("/stream", s.getStream)
}

// Start begins serving and wires the notification and mode feeds into
// the websocket hub. It blocks until ctx is canceled, then drains with
// a shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	go func() {
		for item := range s.deps.Bridge.Subscribe() {
			s.hub.Publish(Event{Type: "notification", Payload: item})
		}
	}()
	s.deps.Modes.OnChange(func(m mode.Mode) {
		s.hub.Publish(Event{Type: "mode", Payload: string(m)})
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.deps.Settings.ListenPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("dashboard server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the gin engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) getHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"mode":             s.deps.Modes.Current(),
		"upstream_healthy": s.deps.Upstream.Healthy(),
	})
}

// getState is the one-shot render payload: every watcher's current
// state plus scheduler and trigger bookkeeping. In MOCK mode the ops
// resources come from fixtures since the watchers are gated.
func (s *Server) getState(c *gin.Context) {
	live := s.deps.Modes.IsLive()

	var ops views.OpsState
	statuses := gin.H{}
	if live {
		var st watch.Status
		ops.OpsStatus, st = s.deps.Ops.State()
		statuses["ops_status"] = st
		ops.MarketStatus, st = s.deps.Market.State()
		statuses["market_status"] = st
		ops.DataHealth, st = s.deps.Health.State()
		statuses["data_health"] = st
		ops.Snapshot, st = s.deps.Snapshot.State()
		statuses["snapshot"] = st
	} else {
		ops = s.deps.Views.MockOpsState()
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":              s.deps.Modes.Current(),
		"ops":               ops,
		"statuses":          statuses,
		"snapshot_failed":   s.deps.Snapshot.Failed(),
		"data_error":        s.deps.Health.ErrorSummary(),
		"upstream_healthy":  s.deps.Upstream.Healthy(),
		"tick":              s.deps.Poller.Tick(),
		"poll_interval_sec": int(s.deps.Poller.Interval().Seconds()),
		"evaluate":          s.deps.Evaluator.State(),
		"unread":            s.deps.Bridge.UnreadCount(),
	})
}

func (s *Server) getNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"groups": s.deps.Bridge.Groups(),
		"alerts": s.deps.Bridge.Alerts(),
		"unread": s.deps.Bridge.UnreadCount(),
	})
}

func (s *Server) postNotificationsRead(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
		All bool     `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.All {
		s.deps.Bridge.MarkAllRead()
	} else {
		s.deps.Bridge.MarkRead(req.IDs...)
	}
	c.JSON(http.StatusOK, gin.H{"unread": s.deps.Bridge.UnreadCount()})
}

// view handlers: background-read failures degrade to the default
// sentinel plus an error string rather than an HTTP error, so the UI
// can always render something.

func (s *Server) getUniverse(c *gin.Context) {
	v, err := s.deps.Views.Universe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": api.DefaultUniverse(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) getDailyOverview(c *gin.Context) {
	v, err := s.deps.Views.DailyOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": api.DefaultDailyOverview(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) getPositions(c *gin.Context) {
	v, err := s.deps.Views.Positions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": []map[string]any{}, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) getAlerts(c *gin.Context) {
	v, err := s.deps.Views.Alerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": api.DefaultAlerts(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) getDecisionHistory(c *gin.Context) {
	v, err := s.deps.Views.DecisionHistory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": []map[string]any{}, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) getSymbolDiagnostics(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter required"})
		return
	}
	v, err := s.deps.Views.SymbolDiagnostics(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": api.DefaultSymbolDiagnostics(symbol), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

// postEvaluate kicks the evaluation off in the background and answers
// with the current control state; the UI follows progress via /state
// or the stream.
func (s *Server) postEvaluate(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
		Scope  string `json:"scope"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	go s.deps.Evaluator.Run(context.Background(), req.Reason, req.Scope)
	c.JSON(http.StatusAccepted, s.deps.Evaluator.State())
}

func (s *Server) postRefresh(c *gin.Context) {
	res, err := s.deps.Actions.RefreshLiveData(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) postRefetchSnapshot(c *gin.Context) {
	s.deps.Snapshot.Refetch(c.Request.Context())
	snap, status := s.deps.Snapshot.State()
	c.JSON(http.StatusOK, gin.H{"snapshot": snap, "status": status, "failed": s.deps.Snapshot.Failed()})
}

func (s *Server) postClosePosition(c *gin.Context) {
	var req api.ClosePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	if err := s.deps.Actions.ClosePosition(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) putRiskProfile(c *gin.Context) {
	var profile api.RiskProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Actions.SaveRiskProfile(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) postMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next := mode.FromString(req.Mode)
	s.deps.Modes.Set(next)
	s.deps.Metrics.SetLiveMode(next == mode.Live)
	c.JSON(http.StatusOK, gin.H{"mode": next})
}

func (s *Server) getStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ui stream upgrade failed")
		return
	}
	client := &wsClient{hub: s.hub, conn: conn, send: make(chan Event, 16)}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

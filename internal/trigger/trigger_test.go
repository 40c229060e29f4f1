package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/metrics"
	"github.com/swap2you/chakraops/internal/mode"
	"github.com/swap2you/chakraops/internal/notify"
	"github.com/swap2you/chakraops/internal/sched"
)

func newEvaluator(t *testing.T, srvURL string) (*Evaluator, *notify.Bridge, *sched.Poller) {
	t.Helper()
	client := api.New(srvURL, "", 2*time.Second)
	modes := mode.NewManager(mode.Live)
	poller := sched.New(modes, nil, 0, 0)
	t.Cleanup(poller.Stop)
	bridge := notify.Open("", nil)
	t.Cleanup(func() { bridge.Close() })
	met := metrics.NewWithRegistry(prometheus.NewRegistry())

	e := NewEvaluator(client, poller, bridge, met, "tok")
	e.pollInterval = 10 * time.Millisecond
	e.pollDeadline = 500 * time.Millisecond
	e.successTTL = 50 * time.Millisecond
	e.cooldownTick = 10 * time.Millisecond
	return e, bridge, poller
}

func TestEvaluateDoneTriggersRefetchAndTransientMessage(t *testing.T) {
	var jobPolls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "tok", r.Header.Get("X-Trigger-Token"))
			json.NewEncoder(w).Encode(map[string]any{"accepted": true, "job_id": "j1"})
		case strings.HasSuffix(r.URL.Path, "/j1"):
			if jobPolls.Add(1) < 3 {
				json.NewEncoder(w).Encode(map[string]string{"state": "running"})
			} else {
				json.NewEncoder(w).Encode(map[string]string{"state": "done"})
			}
		}
	}))
	defer srv.Close()

	e, _, poller := newEvaluator(t, srv.URL)
	before := poller.Tick()
	e.Run(context.Background(), "manual", "all")

	assert.Equal(t, before+1, poller.Tick())
	st := e.State()
	assert.Equal(t, "Evaluation complete", st.Message)
	assert.False(t, st.MessageIsError)

	// The success message clears itself.
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, e.State().Message)
}

func TestEvaluateJobFailedSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"accepted": true, "job_id": "j1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"state": "failed", "error": "universe empty"})
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	st := e.State()
	assert.Contains(t, st.Message, "universe empty")
	assert.True(t, st.MessageIsError)
}

func TestEvaluateJobNotFoundStopsPolling(t *testing.T) {
	var jobPolls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"accepted": true, "job_id": "j1"})
			return
		}
		jobPolls.Add(1)
		// Contracted HTTP 200 even for unknown jobs.
		json.NewEncoder(w).Encode(map[string]string{"state": "not_found"})
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	assert.Equal(t, "Job not found", e.State().Message)
	polled := jobPolls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polled, jobPolls.Load(), "no polls after terminal state")
}

func TestEvaluateTransportErrorDuringPollingIsSwallowed(t *testing.T) {
	var jobPolls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"accepted": true, "job_id": "j1"})
			return
		}
		switch jobPolls.Add(1) {
		case 1:
			w.Write([]byte("not json at all")) // parse failure, status 0
		default:
			json.NewEncoder(w).Encode(map[string]string{"state": "done"})
		}
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	assert.Equal(t, "Evaluation complete", e.State().Message)
	assert.GreaterOrEqual(t, jobPolls.Load(), int64(2))
}

func TestEvaluatePollingDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"accepted": true, "job_id": "j1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"state": "running"})
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	st := e.State()
	assert.Contains(t, st.Message, "timed out")
	assert.True(t, st.MessageIsError)
}

func TestEvaluateCooldownBlocksAndExpires(t *testing.T) {
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"accepted": false, "cooldown_seconds_remaining": 3})
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	st := e.State()
	require.Equal(t, 3, st.CooldownSeconds)
	assert.Contains(t, st.Message, "cooldown")

	// A second trigger during the countdown is a no-op.
	e.Run(context.Background(), "manual", "all")
	assert.EqualValues(t, 1, posts.Load())

	// After the countdown (10ms ticks) the control is usable again.
	deadline := time.After(time.Second)
	for e.State().CooldownSeconds > 0 {
		select {
		case <-deadline:
			t.Fatal("cooldown never expired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Empty(t, e.State().Message)
	e.Run(context.Background(), "manual", "all")
	assert.EqualValues(t, 2, posts.Load())
}

func TestEvaluate403IsUnauthorizedWithoutPolling(t *testing.T) {
	var jobPolls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		jobPolls.Add(1)
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	assert.Equal(t, "Unauthorized", e.State().Message)
	assert.EqualValues(t, 0, jobPolls.Load())
}

func TestEvaluate429IsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, _, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	assert.Contains(t, e.State().Message, "Rate limited")
}

func TestEvaluate404IsMisconfigurationWithNotification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e, bridge, _ := newEvaluator(t, srv.URL)
	e.Run(context.Background(), "manual", "all")

	assert.Contains(t, e.State().Message, "endpoint not found")
	items := bridge.All()
	require.Len(t, items, 1)
	assert.Equal(t, notify.SeverityError, items[0].Severity)
}

func TestRefreshLiveDataSuccessNotifiesRowCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "row_count": 1234})
	}))
	defer srv.Close()

	bridge := notify.Open("", nil)
	defer bridge.Close()
	a := NewActions(api.New(srv.URL, "", time.Second), bridge, metrics.NewWithRegistry(prometheus.NewRegistry()))

	res, err := a.RefreshLiveData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, res.RowCount)

	items := bridge.All()
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Message, "1234 rows")
	assert.Equal(t, notify.SeverityInfo, items[0].Severity)
}

func TestRefreshLiveDataFailurePrefersDetailReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":{"reason":"provider entitlement expired"}}`))
	}))
	defer srv.Close()

	bridge := notify.Open("", nil)
	defer bridge.Close()
	a := NewActions(api.New(srv.URL, "", time.Second), bridge, metrics.NewWithRegistry(prometheus.NewRegistry()))

	_, err := a.RefreshLiveData(context.Background())
	require.Error(t, err)

	items := bridge.All()
	require.Len(t, items, 1)
	assert.Equal(t, "provider entitlement expired", items[0].Message)
	assert.Equal(t, notify.SeverityError, items[0].Severity)
}

func TestClosePositionNotifiesPerSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.PathClosePosition, r.URL.Path)
		var req api.ClosePositionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "NVDA", req.Symbol)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	bridge := notify.Open("", nil)
	defer bridge.Close()
	a := NewActions(api.New(srv.URL, "", time.Second), bridge, metrics.NewWithRegistry(prometheus.NewRegistry()))

	err := a.ClosePosition(context.Background(), api.ClosePositionRequest{Symbol: "NVDA", Reason: "manual"})
	require.NoError(t, err)

	items := bridge.All()
	require.Len(t, items, 1)
	assert.Equal(t, "NVDA", items[0].Symbol)
}

func TestSaveRiskProfileFailureNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"max_alloc_pct out of range"}`))
	}))
	defer srv.Close()

	bridge := notify.Open("", nil)
	defer bridge.Close()
	a := NewActions(api.New(srv.URL, "", time.Second), bridge, metrics.NewWithRegistry(prometheus.NewRegistry()))

	err := a.SaveRiskProfile(context.Background(), api.RiskProfile{MaxPositions: 5})
	require.Error(t, err)
	require.Len(t, bridge.All(), 1)
}

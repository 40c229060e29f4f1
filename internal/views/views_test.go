package views

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/fixtures"
	"github.com/swap2you/chakraops/internal/mode"
)

func TestMockModeServesFixturesWithoutNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := New(api.New(srv.URL, "", time.Second), mode.NewManager(mode.Mock), fixtures.New())
	ctx := context.Background()

	uni, err := s.Universe(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, uni.Symbols)

	pos, err := s.Positions(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, pos)

	_, err = s.DailyOverview(ctx)
	require.NoError(t, err)
	_, err = s.Alerts(ctx)
	require.NoError(t, err)
	_, err = s.DecisionHistory(ctx)
	require.NoError(t, err)

	diag, err := s.SymbolDiagnostics(ctx, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", diag.Symbol)

	ops := s.MockOpsState()
	assert.NotNil(t, ops.OpsStatus.BlockersSummary)
	assert.True(t, ops.Snapshot.HasRun)

	assert.EqualValues(t, 0, calls.Load())
}

func TestLiveModeFetchesAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.PathUniverse:
			w.Write([]byte(`{"symbols":[{"symbol":"SPY"}],"updated_at":"2026-09-01T13:00:00Z"}`))
		case api.PathPositions:
			w.Write([]byte(`[]`))
		case api.PathAlerts:
			// Missing items array gets defaulted, not left nil.
			w.Write([]byte(`{"as_of":"2026-09-01T13:00:00Z"}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	s := New(api.New(srv.URL, "", time.Second), mode.NewManager(mode.Live), fixtures.New())
	ctx := context.Background()

	uni, err := s.Universe(ctx)
	require.NoError(t, err)
	require.Len(t, uni.Symbols, 1)
	assert.Equal(t, "SPY", uni.Symbols[0]["symbol"])

	pos, err := s.Positions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pos)
	assert.Empty(t, pos)

	alerts, err := s.Alerts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, alerts.Items)
}

func TestLiveModeErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(api.New(srv.URL, "", time.Second), mode.NewManager(mode.Live), fixtures.New())
	_, err := s.Universe(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusOf(err))
}

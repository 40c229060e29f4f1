package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"provider":"polygon","status":"UP"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/data-health", &out)
	require.NoError(t, err)
	assert.Equal(t, "polygon", out["provider"])
}

func TestGetAttachesAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", time.Second)
	var out map[string]any
	require.NoError(t, c.Get(context.Background(), "/api/healthz", &out))
	assert.Equal(t, "secret-key", gotKey)
}

func TestGetEmptyBodyKeepsZeroValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	out := map[string]any{}
	err := c.Get(context.Background(), "/api/ops/status", &out)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGetEmptyArrayIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	rows, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Len(t, rows, 0)
}

func TestHTTPErrorCarriesStatusAndSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":{"reason":"provider_down"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/data-health", &out)
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.False(t, apiErr.IsTransport())
	assert.Contains(t, apiErr.BodySnippet, "provider_down")
	assert.Equal(t, "provider_down", apiErr.DetailReason())
}

func TestHTTPErrorSnippetTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/status", &out)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Len(t, apiErr.BodySnippet, snippetLen)
}

func TestSnippetNeverSplitsARune(t *testing.T) {
	// Multi-byte runes straddling the cap must be dropped whole.
	body := strings.Repeat("x", snippetLen-1) + "日本語"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/status", &out)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(apiErr.BodySnippet))
	assert.LessOrEqual(t, len(apiErr.BodySnippet), snippetLen)
}

func TestParseFailureOn2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/status", &out)
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Contains(t, apiErr.Message, "/api/ops/status")
	assert.Contains(t, apiErr.BodySnippet, "not json")
}

func TestTimeoutRejectsWithStatusZero(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, "", 50*time.Millisecond)
	start := time.Now()
	var out map[string]any
	err := c.Get(context.Background(), "/api/ops/snapshot", &out)
	elapsed := time.Since(start)

	require.Error(t, err)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.True(t, apiErr.Timeout)
	assert.False(t, apiErr.Canceled)
	assert.Less(t, elapsed, time.Second)
}

func TestTimeoutMessageReportsEffectiveTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	// Client default is long; the per-call override is what fires and
	// what the message must name.
	c := New(srv.URL, "", 30*time.Second)
	var out map[string]any
	err := c.Do(context.Background(), http.MethodGet, "/api/ops/snapshot", nil, &out, ReqOpt{Timeout: 80 * time.Millisecond})

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Timeout)
	assert.Contains(t, apiErr.Message, "80ms")
	assert.NotContains(t, apiErr.Message, "30s")
}

func TestExternalCancelWinsOverTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var out map[string]any
	err := c.Get(ctx, "/api/ops/snapshot", &out)
	require.Error(t, err)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Canceled)
	assert.False(t, apiErr.Timeout)
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", "", 200*time.Millisecond)
	var out map[string]any
	err := c.Get(context.Background(), "/api/healthz", &out)
	require.Error(t, err)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsTransport())
}

func TestPostSetsContentType(t *testing.T) {
	var contentType, triggerToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		triggerToken = r.Header.Get("X-Trigger-Token")
		w.Write([]byte(`{"accepted":true,"job_id":"j1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	resp, err := c.Evaluate(context.Background(), "manual", "all", "tok-123")
	require.NoError(t, err)
	assert.Contains(t, contentType, "application/json")
	assert.Equal(t, "tok-123", triggerToken)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "j1", resp.JobID)
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		status int
		alive  bool
	}{
		{"200", http.StatusOK, true},
		{"404", http.StatusNotFound, true},
		{"500", http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := New(srv.URL, "", time.Second)
			assert.Equal(t, tc.alive, c.Healthz(context.Background()))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		c := New("http://127.0.0.1:1", "", 100*time.Millisecond)
		assert.False(t, c.Healthz(context.Background()))
	})
}

func TestResolveRelativeWithoutBase(t *testing.T) {
	c := New("", "", time.Second)
	assert.Equal(t, "/api/healthz", c.resolve("/api/healthz"))

	c = New("http://host:8000/", "", time.Second)
	assert.Equal(t, "http://host:8000/api/healthz", c.resolve("/api/healthz"))
	assert.Equal(t, "http://host:8000/api/healthz", c.resolve("api/healthz"))
}

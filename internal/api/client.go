// Package api implements the typed HTTP client the dashboard uses to
// talk to the ChakraOps backend. Every call gets a deterministic
// timeout, failures are normalized into a single *Error taxonomy, and
// response bodies are decoded defensively so callers never see a
// half-parsed value.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds every request unless the caller overrides it.
	DefaultTimeout = 15 * time.Second

	// snippetLen caps how much of a body is kept for diagnostics.
	snippetLen = 200
)

type Client struct {
	base    string
	apiKey  string
	rest    *resty.Client
	timeout time.Duration
}

// ReqOpt carries per-call overrides. The zero value means client
// defaults.
type ReqOpt struct {
	Timeout time.Duration
	Headers map[string]string
}

// New builds a client against baseURL. An empty baseURL resolves paths
// relative to the process (dev proxy setups). apiKey, when set, is
// attached to every request as X-API-Key.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := resty.New()
	r.SetHeader("Accept", "application/json")
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		rest:    r,
		timeout: timeout,
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, ReqOpt{})
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out, ReqOpt{})
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out, ReqOpt{})
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, ReqOpt{})
}

// Do executes one request. The effective deadline is the earlier of
// the caller's context and the per-call timeout; a caller cancellation
// is reported as Canceled, the internal deadline as Timeout, so only
// one cancellation source is ever attributed.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opt ReqOpt) error {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.resolve(path)
	log.Debug().Str("method", method).Str("url", url).Msg("api request")

	req := c.rest.R().SetContext(callCtx)
	if c.apiKey != "" {
		req.SetHeader("X-API-Key", c.apiKey)
	}
	for k, v := range opt.Headers {
		req.SetHeader(k, v)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return transportError(ctx, callCtx, url, timeout, err)
	}

	raw := resp.Body()
	if resp.IsError() {
		return httpError(resp.StatusCode(), resp.Status(), raw)
	}

	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		// Empty 2xx body: callers keep their zero value.
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &Error{
			Status:      0,
			Message:     fmt.Sprintf("invalid JSON from %s: %v", path, err),
			BodySnippet: snippet(raw),
		}
	}
	return nil
}

func (c *Client) resolve(path string) string {
	if c.base == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

func transportError(callerCtx, callCtx context.Context, url string, timeout time.Duration, cause error) *Error {
	apiErr := &Error{Status: 0}
	switch {
	case callerCtx.Err() != nil:
		apiErr.Canceled = true
		apiErr.Message = fmt.Sprintf("request to %s canceled", url)
	case callCtx.Err() == context.DeadlineExceeded:
		apiErr.Timeout = true
		apiErr.Message = fmt.Sprintf("request to %s timed out after %v", url, timeout)
	default:
		apiErr.Message = fmt.Sprintf("request to %s failed: %v", url, cause)
	}
	return apiErr
}

func httpError(status int, statusText string, raw []byte) *Error {
	apiErr := &Error{
		Status:      status,
		BodySnippet: snippet(raw),
	}
	var parsed map[string]any
	if json.Unmarshal(raw, &parsed) == nil {
		apiErr.ParsedBody = parsed
	}
	msg := statusText
	if len(apiErr.BodySnippet) > 0 {
		msg = fmt.Sprintf("%s: %s", statusText, apiErr.BodySnippet)
	}
	apiErr.Message = msg
	return apiErr
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) <= snippetLen {
		return s
	}
	// Cut on a rune boundary so a multi-byte character is never split.
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

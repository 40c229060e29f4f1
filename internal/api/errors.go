package api

import (
	"errors"
	"fmt"
)

// Error is the single failure type surfaced by the client. Status 0
// means the request never produced an HTTP response (DNS, connection,
// timeout, cancellation) or a 2xx body failed to decode; any other
// value is the server's status code.
type Error struct {
	Status      int
	Message     string
	BodySnippet string
	ParsedBody  map[string]any
	Timeout     bool
	Canceled    bool
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s", e.Message)
}

// IsTransport reports whether the failure happened below the HTTP
// layer. Transport failures are retryable by background pollers.
func (e *Error) IsTransport() bool {
	return e.Status == 0
}

// DetailReason digs a structured reason out of an error body of the
// form {"detail": {"reason": "..."}} or {"detail": "..."}. Returns ""
// when the body carries neither.
func (e *Error) DetailReason() string {
	if e.ParsedBody == nil {
		return ""
	}
	switch d := e.ParsedBody["detail"].(type) {
	case string:
		return d
	case map[string]any:
		if r, ok := d["reason"].(string); ok {
			return r
		}
	}
	return ""
}

// AsError unwraps err into *Error when possible.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, or -1 when err is
// not an api error at all.
func StatusOf(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Status
	}
	return -1
}

// IsTimeout reports whether err is the client's own deadline firing.
func IsTimeout(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Timeout
}

package logger

import (
	"net/http"
	"time"

	apperrors "github.com/courseforge/uploadtracker/internal/errors"
	"github.com/courseforge/uploadtracker/internal/metrics"
)

// Transport is an http.RoundTripper that logs outbound platform
// requests and stamps each one with a request ID.
type Transport struct {
	Base http.RoundTripper
	Log  *Logger
}

// NewTransport wraps base with request logging. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{
		Base: base,
		Log:  Default().WithComponent("platform"),
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	requestID := apperrors.RequestIDOrGenerate(ctx)
	ctx = apperrors.WithRequestID(ctx, requestID)

	// RoundTrippers must not mutate the caller's request
	req = req.Clone(ctx)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	fields := map[string]interface{}{
		"method":      req.Method,
		"path":        req.URL.Path,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		metrics.Default().IncrCounter("platform_request_errors_total")
		t.Log.Warn(ctx, "platform request failed", mergeFields(fields, map[string]interface{}{
			"error": err.Error(),
		}))
		return nil, err
	}

	metrics.Default().RecordRequest(req.Method, req.URL.Path, resp.StatusCode, duration)

	fields["status"] = resp.StatusCode
	if resp.StatusCode >= 400 {
		t.Log.Warn(ctx, "platform request completed", fields)
	} else {
		t.Log.Debug(ctx, "platform request completed", fields)
	}

	return resp, nil
}

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Package middleware provides the HTTP middleware chain for the Aroosi API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// TraceParentHeader is the W3C trace context header set by the load balancer.
	TraceParentHeader = "traceparent"
)

const maxRequestIDLength = 128

type requestIDKey struct{}

type traceIDKey struct{}

// RequestID tags every request with an id. A client supplied X-Request-ID is
// kept when it is printable and at most 128 bytes; otherwise a UUID is minted.
// The trace id from a valid traceparent header is stored alongside for logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		if traceID := parseTraceParent(r.Header.Get(TraceParentHeader)); traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey{}, traceID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetTraceID returns the W3C trace id of the request, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// parseTraceParent extracts the trace id from "00-<32 hex>-<16 hex>-<2 hex>".
// All-zero ids are invalid trace ids under W3C Trace Context.
func parseTraceParent(v string) string {
	parts := strings.Split(v, "-")
	if len(parts) != 4 || len(parts[0]) != 2 || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if strings.Trim(traceID, "0") == "" {
		return ""
	}
	for _, c := range traceID {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return ""
		}
	}
	return traceID
}

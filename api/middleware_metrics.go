package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsMiddleware tracks request timing and metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip tracking metrics endpoints themselves to avoid polluting metrics
		path := r.URL.Path
		if path == "/debug/metrics" || path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()

		trace := &RequestTrace{
			RequestID: uuid.New().String(),
			Method:    r.Method,
			Path:      path,
			StartTime: startTime,
		}

		r = r.WithContext(WithRequestTrace(r.Context(), trace))

		// Wrap response writer to capture status code
		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrappedWriter, r)

		trace.EndTime = time.Now()
		trace.TotalDuration = time.Since(startTime)
		trace.Status = wrappedWriter.statusCode
		if wrappedWriter.statusCode >= 400 {
			trace.Error = http.StatusText(wrappedWriter.statusCode)
		}

		// Record trace asynchronously (non-blocking) - never impacts request flow
		GetMetrics().RecordTrace(*trace)

		if trace.TotalDuration > 1*time.Second {
			zap.S().Warnw("Slow request detected",
				"requestId", trace.RequestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", trace.TotalDuration,
				"status", wrappedWriter.statusCode,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
// It implements http.Hijacker to support WebSocket upgrades.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

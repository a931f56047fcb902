package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestLoggerKey struct{}

type requestIDKey struct{}

// requestLogger returns the request-scoped logger carrying the request id.
// Outside a request it falls back to the process logger.
func requestLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(requestLoggerKey{}).(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// requestIDMiddleware assigns every request an id, echoes it in the response
// header, and seeds the request context with a logger bound to it. Inbound
// ids are trusted so multi-hop traces line up.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, requestLoggerKey{}, slog.Default().With("request_id", requestID))
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(capture, r)

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logger := requestLogger(r.Context())
		logAttrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", capture.status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", capture.bytes,
			"remote_addr", remoteAddr,
		}

		switch {
		case capture.status >= 500:
			logger.Error("http_request", logAttrs...)
		case capture.status >= 400:
			logger.Warn("http_request", logAttrs...)
		default:
			logger.Info("http_request", logAttrs...)
		}
	})
}

// responseCapture records the status and body size of a JSON response for
// the access log. The API never streams or upgrades connections.
type responseCapture struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseCapture) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

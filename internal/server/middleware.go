package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/notifyrelay/relay/internal/httputil"
)

// NotifyKeyHeader carries the shared API key on /notify.
const NotifyKeyHeader = "X-Notify-Key"

// requestLogger returns middleware that logs each request as structured JSON.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
					"bytes", ww.BytesWritten(),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requireNotifyKey rejects requests whose X-Notify-Key is not exactly key.
// It runs before the body is read, so a bad key always yields 401.
func requireNotifyKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, ok := r.Header[http.CanonicalHeaderKey(NotifyKeyHeader)]
			if !ok || len(values) == 0 || subtle.ConstantTimeCompare([]byte(values[0]), want) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid notify key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

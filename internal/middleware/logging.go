package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/zonegate/zonegate/internal/logging"
)

// AccessLog logs one line per completed request: method, path, status,
// duration, and the request ID. At debug level it also logs the masked
// request headers.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			attrs := []any{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if logger.Enabled(r.Context(), slog.LevelDebug) {
				attrs = append(attrs, "headers", maskHeaders(r.Header))
			}
			logger.Info("http request", attrs...)
		})
	}
}

// maskHeaders masks sensitive header values for logging.
func maskHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = logging.MaskHeader(k, v[0])
		}
	}
	return result
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

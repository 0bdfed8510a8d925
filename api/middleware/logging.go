package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// responseMeter captures the first status written and the body size.
type responseMeter struct {
	http.ResponseWriter
	status  int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

func (m *responseMeter) code() int {
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}

// Logging emits one request.complete line per request. 5xx responses log at
// warn; the handler that failed has already logged the error itself.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			meter := &responseMeter{ResponseWriter: w}
			began := time.Now()
			next.ServeHTTP(meter, r.WithContext(ctx))

			fields := map[string]any{
				"status":      meter.code(),
				"bytes":       meter.written,
				"duration_ms": time.Since(began).Milliseconds(),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					fields["route"] = pattern
				}
			}
			ctx = logg.WithFields(ctx, fields)
			if meter.code() >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.complete")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/ltv-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR envelope. Aborted
// handlers keep propagating so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				switch rec := recover(); rec {
				case nil:
				case http.ErrAbortHandler:
					panic(rec)
				default:
					ctx := logg.WithFields(r.Context(), map[string]any{
						"event": "panic.recovered",
						"panic": fmt.Sprint(rec),
					})
					cause := fmt.Errorf("panic: %v", rec)
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "handler panicked"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/logging"
)

// Recovery turns a handler panic into a logged 500 response.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic":  rec,
					"stack":  string(debug.Stack()),
					"path":   r.URL.Path,
					"method": r.Method,
				}).Error("handler panic")
				httputil.WriteErrorResponse(w, r, http.StatusInternalServerError,
					string(errors.CodeInternal), errors.InternalMessage, nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

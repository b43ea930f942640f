// internal/middleware/logging.go
//
// Request logging middleware.
//
// RequestLog derives a per-request child of the base logger carrying the
// chi request id, method, and path, stores it in the request context (see
// logger.FromContext), and writes one INFO line when the response is done.
// Query strings are not logged; the intake form never uses them, and a
// misbehaving client could put patient data there.

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/logger"
)

// RequestLog returns the logging middleware bound to base.
func RequestLog(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.With(
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

			l.Infow("request served",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// internal/server/timeouts.go
//
// HTTP server helper with hardened timeouts.
//
//   • ReadHeaderTimeout – abort slow-loris headers (5 s)
//   • ReadTimeout       – cap request body upload (config, default 10 s)
//   • WriteTimeout      – cap total response time (config, default 30 s); must
//                         exceed api.timeout because POST /patients/new waits
//                         for the creation call
//   • IdleTimeout       – close keep-alives on idle clients (config, 60 s)
//
// Run drives ListenAndServe until ctx is cancelled, then shuts down
// gracefully so in-flight submissions settle before the process exits.

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/config"
)

const shutdownGrace = 20 * time.Second

// New constructs an *http.Server from the http section of the config.
func New(c config.HTTP, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              c.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       orDefault(c.ReadTimeout, 10*time.Second),
		WriteTimeout:      orDefault(c.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(c.IdleTimeout, 60*time.Second),
	}
}

// Run serves srv until ctx is done, then shuts it down.
func Run(ctx context.Context, srv *http.Server, log *zap.SugaredLogger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down", "grace", shutdownGrace)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

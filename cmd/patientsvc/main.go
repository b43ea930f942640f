// cmd/patientsvc/main.go
//
// Reference patient creation endpoint for development.
//
// Serves POST /patients backed by MySQL, plus /healthz and /metrics.  The
// database password may be a vault:mount/path#key reference.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/intake/internal/config"
	"github.com/yanizio/intake/internal/database"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/middleware"
	"github.com/yanizio/intake/internal/patientsvc"
	"github.com/yanizio/intake/internal/server"
	"github.com/yanizio/intake/internal/vault"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}

	logOut, err := logger.New(cfg.Paths.Root, false, cfg.Log.Level)
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	logOut = logOut.Named("patientsvc")
	defer func() { _ = logOut.Sync() }()

	password := cfg.Database.Password
	if vault.IsRef(password) {
		vc, err := vault.New(ctx, logOut.Named("vault"))
		if err != nil {
			logOut.Fatalw("vault client", "err", err)
		}
		if password, err = vc.Resolve(ctx, password); err != nil {
			logOut.Fatalw("resolve database.password", "err", err)
		}
	}

	db, err := database.Open(ctx, cfg.Database, password)
	if err != nil {
		logOut.Fatalw("connect database", "err", err)
	}
	defer db.Close()
	logOut.Infow("database online")

	repo := patientsvc.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		logOut.Fatalw("migrate", "err", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog(logOut))
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	patientsvc.NewHandler(repo).Mount(r)

	if err := server.Run(ctx, server.New(cfg.HTTP, r), logOut); err != nil {
		logOut.Errorw("server stopped", "err", err)
		os.Exit(1)
	}
}

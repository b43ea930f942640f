// cmd/web/main.go
//
// Intake – HTTP entry point for the patient intake form.
//
// Start-up
// --------
//
//  1. Load config (defaults → conf/.env → conf/intake.yaml → INTAKE_ env).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Resolve vault: references in api.token and csrf.secret.
//
//  4. Build the creation client, CSRF signer, and form definition.
//
//  5. Serve the chi router until SIGINT or SIGTERM, then drain.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/yanizio/intake/internal/config"
	"github.com/yanizio/intake/internal/form"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/patientapi"
	"github.com/yanizio/intake/internal/server"
	"github.com/yanizio/intake/internal/vault"
	"github.com/yanizio/intake/internal/web"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.RequireAPI(); err != nil {
		log.Fatal(err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	apiToken, csrfSecret := cfg.API.Token, cfg.CSRF.Secret
	if vault.IsRef(apiToken) || vault.IsRef(csrfSecret) {
		vc, err := vault.New(ctx, logOut.Named("vault"))
		if err != nil {
			logOut.Fatalw("vault client", "err", err)
		}
		if apiToken, err = vc.Resolve(ctx, apiToken); err != nil {
			logOut.Fatalw("resolve api.token", "err", err)
		}
		if csrfSecret, err = vc.Resolve(ctx, csrfSecret); err != nil {
			logOut.Fatalw("resolve csrf.secret", "err", err)
		}
	}

	//
	// ── 2.  Collaborators ───────────────────────────────────────────────
	//
	apiOpts := []patientapi.Option{patientapi.WithTimeout(cfg.API.Timeout)}
	if apiToken != "" {
		apiOpts = append(apiOpts, patientapi.WithHeader("Authorization", "Bearer "+apiToken))
	}
	client := patientapi.New(cfg.API.BaseURL, apiOpts...)

	signer, generated, err := form.NewSigner([]byte(csrfSecret), cfg.CSRF.MaxAge)
	if err != nil {
		logOut.Fatalw("csrf signer", "err", err)
	}
	if generated {
		logOut.Warnw("csrf.secret not set; using a per-process secret, tokens will not survive restarts")
	}

	fd := form.Default()
	if cfg.Form.Definition != "" {
		path := cfg.Form.Definition
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Paths.Root, path)
		}
		if fd, err = form.LoadFormDef(path); err != nil {
			logOut.Fatalw("form definition", "path", path, "err", err)
		}
	}

	h, err := web.New(web.Options{
		Form:       fd,
		Signer:     signer,
		Creator:    client,
		Logger:     logOut,
		ForceHTTPS: cfg.HTTP.ForceHTTPS,
	})
	if err != nil {
		logOut.Fatalw("web handler", "err", err)
	}

	//
	// ── 3.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP, h.Routes())
	if err := server.Run(ctx, srv, logOut); err != nil {
		logOut.Errorw("server stopped", "err", err)
		os.Exit(1)
	}
}

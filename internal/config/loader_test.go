// internal/config/loader_test.go
//
// Unit-tests for the layered config loader.
//
// Run: go test ./internal/config -v

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, yamlName), []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
}

func TestLoadFrom_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.HTTP.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.HTTP.ListenAddr)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("api.timeout = %v", cfg.API.Timeout)
	}
	if cfg.CSRF.MaxAge != 2*time.Hour {
		t.Errorf("csrf.max_age = %v", cfg.CSRF.MaxAge)
	}
	if err := cfg.RequireAPI(); err == nil {
		t.Error("RequireAPI passed without base_url")
	}
	if Get() != cfg {
		t.Error("Get did not return the cached config")
	}
}

func TestLoadFrom_YAMLThenEnv(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, `
http:
  listen_addr: "127.0.0.1:9000"
api:
  base_url: "http://patients.internal/v1"
  timeout: 5s
database:
  dsn: "intake@tcp(db:3306)/intake"
`)
	t.Setenv("INTAKE_API__BASE_URL", "https://patients.example.com/v2")

	cfg, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.HTTP.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen_addr = %q", cfg.HTTP.ListenAddr)
	}
	if cfg.API.BaseURL != "https://patients.example.com/v2" {
		t.Errorf("env override lost: %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("api.timeout = %v", cfg.API.Timeout)
	}
	if err := cfg.RequireDatabase(); err != nil {
		t.Errorf("RequireDatabase: %v", err)
	}
	if cfg.Paths.Root != root {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
}

func TestLoadFrom_ValidationFails(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, `
csrf:
  secret: "short"
`)
	if _, err := LoadFrom(root); err == nil {
		t.Fatal("expected validation error for short csrf secret")
	}
}

func TestLoadFrom_BadYAML(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "http: [unclosed")
	if _, err := LoadFrom(root); err == nil {
		t.Fatal("expected parse error")
	}
}

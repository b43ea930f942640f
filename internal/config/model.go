// internal/config/model.go
//
// Typed configuration model for the intake binaries.
//
// Context
// -------
// These structs define the shape of the tree that `loader.go` builds from
// three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/intake.yaml`                       – primary static file,
//   • `INTAKE_`-prefixed environment overrides – highest precedence.
//
// Validation happens immediately after unmarshal; a binary fails fast if a
// required value is missing.  Sections a binary does not use may stay empty,
// which is why only the always-needed fields carry `required`.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • `Database.Password` may hold a `vault:mount/path#key` reference that the
//     caller resolves through internal/vault.
//   • `Paths` is filled at runtime; YAML must not try to set it.

package config

import "time"

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
	ForceHTTPS   bool          `koanf:"force_https"`
}

// Form optionally overrides the embedded intake form definition.
type Form struct {
	Definition string `koanf:"definition"` // path relative to the root
}

// API points the intake form at the creation endpoint.
type API struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=0"`
	Token   string        `koanf:"token"`
}

// CSRF configures form token signing.  An empty secret means the process
// generates a random one at startup.  A vault: reference is resolved by the
// binary before use.
type CSRF struct {
	Secret string        `koanf:"secret"  validate:"omitempty,min=32|startswith=vault:"`
	MaxAge time.Duration `koanf:"max_age" validate:"gte=0"`
}

// Log selects where and how verbosely the zap logger writes.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Database is used by the reference creation endpoint only.
type Database struct {
	DSN      string `koanf:"dsn"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

// Paths is resolved at runtime.
type Paths struct {
	Root string // INTAKE_ROOT or discovered parent
}

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	API      API      `koanf:"api"`
	Form     Form     `koanf:"form"`
	CSRF     CSRF     `koanf:"csrf"`
	Log      Log      `koanf:"log"`
	Database Database `koanf:"database"`
	Paths    Paths    `koanf:"-"`
}

// defaults are loaded before the YAML layer.
var defaults = map[string]any{
	"http.listen_addr":   ":8080",
	"http.read_timeout":  "10s",
	"http.write_timeout": "30s",
	"http.idle_timeout":  "60s",
	"api.timeout":        "15s",
	"csrf.max_age":       "2h",
	"log.level":          "info",
	"database.max_open":  15,
	"database.max_idle":  5,
}

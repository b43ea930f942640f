// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `loader.go` calls `validateStruct` right after it unmarshals the merged
// Koanf tree.  Any failure aborts startup, so a binary never runs with a
// malformed listen address, API URL, or CSRF secret.
//
// Binary-specific requirements (the web form needs `api.base_url`, the
// reference endpoint needs `database.dsn`) are checked by the `Require*`
// helpers below so one Config type serves both binaries.

package config

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}

// RequireAPI reports a missing creation endpoint URL.
func (c *Config) RequireAPI() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	return nil
}

// RequireDatabase reports a missing DSN.
func (c *Config) RequireDatabase() error {
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	return nil
}

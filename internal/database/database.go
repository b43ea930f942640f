// Package database centralises sqlx connection helpers for the reference
// creation endpoint.  The driver is go-sql-driver/mysql, which also works
// with MariaDB.
//
//	Open(ctx, cfg, password) – pool sized from config, pinged before return.
//
// Callers should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/intake/internal/config"
)

// Open parses cfg.DSN, substitutes password when non-empty (a value
// resolved from Vault, for example), and returns a pinged pool.
func Open(ctx context.Context, cfg config.Database, password string) (*sqlx.DB, error) {
	dsn, err := BuildDSN(cfg.DSN, password)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return db, nil
}

// BuildDSN normalises dsn with parseTime enabled and an optional password
// override.
func BuildDSN(dsn, password string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database dsn: %w", err)
	}
	if password != "" {
		mc.Passwd = password
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// Package database persists uploads, products and users.
//
// Two engines implement Store: PostgreSQL through a pgx pool and SQLite
// through database/sql with the pure-Go modernc driver. Both create their
// schema on open. Products are append-only; each row keeps the ID of the
// upload that inserted it.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/config"
	"github.com/JonMunkholm/salesreport/internal/core"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = auth.ErrNotFound

// ErrDuplicateUser is returned by CreateUser for a taken username.
var ErrDuplicateUser = auth.ErrUserExists

// Store is the full persistence surface used by the service and auth layers.
// Implementations are safe for concurrent use.
type Store interface {
	core.Store
	auth.UserStore

	Ping(ctx context.Context) error
	Close()
}

// Open connects to the engine named by cfg.Driver and migrates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// limitOrDefault returns defaultListLimit for non-positive limits and caps
// the rest at maxListLimit.
func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// errNilUpload guards InsertUpload against an upload without an ID.
var errNilUpload = errors.New("upload has no id")

package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/config"
	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id         UUID PRIMARY KEY,
		file_name  TEXT NOT NULL,
		source     TEXT NOT NULL,
		checksum   TEXT NOT NULL,
		row_count  INTEGER NOT NULL,
		username   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_checksum ON uploads (checksum)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            BIGSERIAL PRIMARY KEY,
		product_id    TEXT NOT NULL,
		product_name  TEXT NOT NULL,
		category      TEXT NOT NULL,
		price         DOUBLE PRECISION NOT NULL,
		quantity_sold DOUBLE PRECISION NOT NULL,
		rating        DOUBLE PRECISION,
		review_count  BIGINT,
		upload_id     UUID NOT NULL REFERENCES uploads (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
}

var productColumns = []string{
	"product_id", "product_name", "category",
	"price", "quantity_sold", "rating", "review_count", "upload_id",
}

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pool from cfg, pings it and migrates the schema.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("connected to database", "driver", config.DriverPostgres, "database", poolConfig.ConnConfig.Database)
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases all pool connections.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// InsertUpload records the upload and bulk-loads its products with COPY in one transaction.
func (s *PostgresStore) InsertUpload(ctx context.Context, upload core.Upload, products []core.Product) error {
	if !upload.ID.Valid {
		return errNilUpload
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("rollback failed", "error", err)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO uploads (id, file_name, source, checksum, row_count, username, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		upload.ID, upload.FileName, string(upload.Source), upload.Checksum, upload.Rows, upload.Username, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"products"}, productColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{
				p.ProductID, p.ProductName, p.Category,
				p.Price, p.QuantitySold, p.Rating, p.ReviewCount, upload.ID,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy products: %w", err)
	}
	if int(copied) != len(products) {
		return fmt.Errorf("copy products: wrote %d of %d rows", copied, len(products))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}

// ListProducts returns every stored product in insertion order.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_name, category, price, quantity_sold, rating, review_count, upload_id
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Product, error) {
		var p core.Product
		err := row.Scan(&p.ProductID, &p.ProductName, &p.Category,
			&p.Price, &p.QuantitySold, &p.Rating, &p.ReviewCount, &p.UploadID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}

// ListUploads returns up to limit uploads, newest first.
func (s *PostgresStore) ListUploads(ctx context.Context, limit int) ([]core.Upload, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, source, checksum, row_count, username, created_at
		 FROM uploads ORDER BY created_at DESC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}

	uploads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Upload, error) {
		var u core.Upload
		var source string
		err := row.Scan(&u.ID, &u.FileName, &source, &u.Checksum, &u.Rows, &u.Username, &u.CreatedAt)
		u.Source = core.UploadSource(source)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan uploads: %w", err)
	}
	return uploads, nil
}

// UploadExists reports whether an upload with this checksum was stored before.
func (s *PostgresStore) UploadExists(ctx context.Context, checksum string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM uploads WHERE checksum = $1)`, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check upload checksum: %w", err)
	}
	return exists, nil
}

// CreateUser inserts a user. A taken username returns ErrDuplicateUser.
func (s *PostgresStore) CreateUser(ctx context.Context, user auth.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		core.ToPgUUID(user.ID), user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser loads a user by username. An unknown username returns ErrNotFound.
func (s *PostgresStore) GetUser(ctx context.Context, username string) (auth.User, error) {
	var (
		u  auth.User
		id pgtype.UUID
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&id, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, ErrNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID = core.PgUUIDToString(id)
	return u, nil
}

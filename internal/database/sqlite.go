package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/config"
	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id         TEXT PRIMARY KEY,
		file_name  TEXT NOT NULL,
		source     TEXT NOT NULL,
		checksum   TEXT NOT NULL,
		row_count  INTEGER NOT NULL,
		username   TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_checksum ON uploads (checksum)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id    TEXT NOT NULL,
		product_name  TEXT NOT NULL,
		category      TEXT NOT NULL,
		price         REAL NOT NULL,
		quantity_sold REAL NOT NULL,
		rating        REAL,
		review_count  INTEGER,
		upload_id     TEXT NOT NULL REFERENCES uploads (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
}

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema. File databases run in WAL mode with a busy timeout.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	dsn := path
	if path != MemoryDSN {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryDSN {
		// every connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("connected to database", "driver", config.DriverSQLite, "path", path)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		slog.Warn("close sqlite", "error", err)
	}
}

// InsertUpload records the upload and inserts its products with a prepared
// statement in one transaction.
func (s *SQLiteStore) InsertUpload(ctx context.Context, upload core.Upload, products []core.Product) error {
	if !upload.ID.Valid {
		return errNilUpload
	}
	uploadID := core.PgUUIDToString(upload.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("rollback failed", "error", err)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO uploads (id, file_name, source, checksum, row_count, username, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uploadID, upload.FileName, string(upload.Source), upload.Checksum, upload.Rows, upload.Username,
		formatTime(upload.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(productColumns)), ",")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products (`+strings.Join(productColumns, ", ")+`) VALUES (`+ph+`)`)
	if err != nil {
		return fmt.Errorf("prepare product insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range products {
		_, err := stmt.ExecContext(ctx,
			p.ProductID, p.ProductName, p.Category,
			nullFloat(p.Price), nullFloat(p.QuantitySold), nullFloat(p.Rating), nullInt(p.ReviewCount),
			uploadID,
		)
		if err != nil {
			return fmt.Errorf("insert product row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}

// ListProducts returns every stored product in insertion order.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, category, price, quantity_sold, rating, review_count, upload_id
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		var (
			p                  core.Product
			price, qty, rating sql.NullFloat64
			reviews            sql.NullInt64
			uploadID           string
		)
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Category,
			&price, &qty, &rating, &reviews, &uploadID); err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		p.Price = pgtype.Float8{Float64: price.Float64, Valid: price.Valid}
		p.QuantitySold = pgtype.Float8{Float64: qty.Float64, Valid: qty.Valid}
		p.Rating = pgtype.Float8{Float64: rating.Float64, Valid: rating.Valid}
		p.ReviewCount = pgtype.Int8{Int64: reviews.Int64, Valid: reviews.Valid}
		p.UploadID = core.ToPgUUID(uploadID)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ListUploads returns up to limit uploads, newest first.
func (s *SQLiteStore) ListUploads(ctx context.Context, limit int) ([]core.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, source, checksum, row_count, username, created_at
		 FROM uploads ORDER BY created_at DESC, rowid DESC LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []core.Upload
	for rows.Next() {
		var (
			u                   core.Upload
			id, source, created string
		)
		if err := rows.Scan(&id, &u.FileName, &source, &u.Checksum, &u.Rows, &u.Username, &created); err != nil {
			return nil, fmt.Errorf("scan uploads: %w", err)
		}
		u.ID = core.ToPgUUID(id)
		u.Source = core.UploadSource(source)
		if u.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("upload %s created_at: %w", id, err)
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return uploads, nil
}

// UploadExists reports whether an upload with this checksum was stored before.
func (s *SQLiteStore) UploadExists(ctx context.Context, checksum string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM uploads WHERE checksum = ?`, checksum).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check upload checksum: %w", err)
	}
	return n > 0, nil
}

// CreateUser inserts a user. A taken username returns ErrDuplicateUser.
func (s *SQLiteStore) CreateUser(ctx context.Context, user auth.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// isConstraintViolation reports whether err is a UNIQUE or PRIMARY KEY
// violation. The driver enables extended result codes on every connection.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// GetUser loads a user by username. An unknown username returns ErrNotFound.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (auth.User, error) {
	var (
		u       auth.User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, ErrNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("query user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return auth.User{}, fmt.Errorf("user %s created_at: %w", username, err)
	}
	return u, nil
}

func nullFloat(f pgtype.Float8) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Float64, Valid: f.Valid}
}

func nullInt(i pgtype.Int8) sql.NullInt64 {
	return sql.NullInt64{Int64: i.Int64, Valid: i.Valid}
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

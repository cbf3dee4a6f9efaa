package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/salesreport/internal/config"
	"github.com/JonMunkholm/salesreport/internal/logging"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNoSource is returned when an upload carries no file and no source path is configured.
var ErrNoSource = errors.New("no file provided and no source path configured")

// Store is the persistence the service needs. Implementations must be safe
// for concurrent use; InsertUpload must store the upload row and all its
// products atomically.
type Store interface {
	InsertUpload(ctx context.Context, upload Upload, products []Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	ListUploads(ctx context.Context, limit int) ([]Upload, error)
	UploadExists(ctx context.Context, checksum string) (bool, error)
}

// Service provides upload and report operations over a Store.
type Service struct {
	store      Store
	limiter    *UploadLimiter
	clean      CleanOptions
	topProduct TopProductPolicy
	sourcePath string
	timeout    time.Duration
}

// NewService creates a Service from the upload, clean and report settings in cfg.
func NewService(store Store, cfg *config.Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}

	emptyColumn, err := ParseColumnPolicy(cfg.Clean.EmptyColumn)
	if err != nil {
		return nil, err
	}
	emptyGroup, err := ParseGroupPolicy(cfg.Clean.EmptyGroup)
	if err != nil {
		return nil, err
	}
	top, err := ParseTopProductPolicy(cfg.Report.TopProduct)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:      store,
		limiter:    NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		clean:      CleanOptions{EmptyColumn: emptyColumn, EmptyGroup: emptyGroup},
		topProduct: top,
		sourcePath: cfg.Upload.SourcePath,
		timeout:    cfg.Upload.Timeout,
	}, nil
}

// UploadRequest describes one upload. A nil Body means "read the configured source path".
type UploadRequest struct {
	FileName string
	Body     io.Reader
	Username string
}

// Upload reads, cleans and stores one product file. Every call appends;
// the same file uploaded twice is stored twice.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return UploadResult{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Body == nil {
		if s.sourcePath == "" {
			return UploadResult{}, ErrNoSource
		}
		return s.ingestFile(ctx, s.sourcePath, SourceFile, req.Username, false)
	}

	return s.ingest(ctx, req.Body, req.FileName, SourceRequest, req.Username, false)
}

// ImportFile reads a product file from disk. With skipIfSeen set, a file whose
// checksum matches an earlier upload is not stored again.
func (s *Service) ImportFile(ctx context.Context, path string, source UploadSource, skipIfSeen bool) (UploadResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return UploadResult{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.ingestFile(ctx, path, source, "", skipIfSeen)
}

// Report loads every stored product and summarizes it per category.
func (s *Service) Report(ctx context.Context) ([]CategorySummary, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	summary := Summarize(products, s.topProduct)
	logging.FromContext(ctx).Debug("report generated",
		"products", len(products),
		"categories", len(summary),
		"top_product_policy", s.topProduct,
	)
	return summary, nil
}

// Uploads returns the most recent uploads, newest first.
func (s *Service) Uploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	uploads, err := s.store.ListUploads(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

// UploadLimiterStatus returns the current upload slot usage.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight uploads finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// SourcePath returns the configured source file path.
func (s *Service) SourcePath() string {
	return s.sourcePath
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) ingestFile(ctx context.Context, path string, source UploadSource, username string, skipIfSeen bool) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	return s.ingest(ctx, f, filepath.Base(path), source, username, skipIfSeen)
}

// ingest runs read -> clean -> store for one file.
func (s *Service) ingest(ctx context.Context, r io.Reader, fileName string, source UploadSource, username string, skipIfSeen bool) (UploadResult, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "file", fileName, "source", source)

	hasher := xxhash.New()
	counter := NewCountingReader(r)
	raw, err := ReadProducts(io.TeeReader(counter, hasher))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read %s: %w", fileName, err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	if skipIfSeen {
		seen, err := s.store.UploadExists(ctx, checksum)
		if err != nil {
			return UploadResult{}, fmt.Errorf("check checksum: %w", err)
		}
		if seen {
			logger.Info("file already imported, skipping", "checksum", checksum)
			return UploadResult{FileName: fileName, Skipped: true, Duration: time.Since(start)}, nil
		}
	}

	products, repaired, err := Clean(raw, s.clean)
	if err != nil {
		return UploadResult{}, fmt.Errorf("clean %s: %w", fileName, err)
	}

	id := uuid.New()
	uploadID := pgtype.UUID{Bytes: id, Valid: true}
	for i := range products {
		products[i].UploadID = uploadID
	}

	upload := Upload{
		ID:        uploadID,
		FileName:  fileName,
		Source:    source,
		Checksum:  checksum,
		Rows:      len(products),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertUpload(ctx, upload, products); err != nil {
		return UploadResult{}, fmt.Errorf("store upload: %w", err)
	}

	result := UploadResult{
		UploadID: id.String(),
		FileName: fileName,
		Rows:     len(products),
		Repaired: repaired,
		Duration: time.Since(start),
	}
	logger.Info("upload stored",
		"upload_id", result.UploadID,
		"rows", result.Rows,
		"bytes", counter.BytesRead,
		"repaired_price", repaired.Price,
		"repaired_quantity", repaired.QuantitySold,
		"repaired_rating", repaired.Rating,
		"rating_missing", repaired.RatingMissing,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

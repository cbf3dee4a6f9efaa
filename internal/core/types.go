// Package core provides the business logic for product data ingestion and reporting.
// This package has no HTTP dependencies and can be used by any frontend.
package core

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Column names of the product dataset. The source CSV must carry all of them.
const (
	ColProductID    = "product_id"
	ColProductName  = "product_name"
	ColCategory     = "category"
	ColPrice        = "price"
	ColQuantitySold = "quantity_sold"
	ColRating       = "rating"
	ColReviewCount  = "review_count"
)

// RequiredColumns lists the header columns a product CSV must contain.
var RequiredColumns = []string{
	ColProductID,
	ColProductName,
	ColCategory,
	ColPrice,
	ColQuantitySold,
	ColRating,
	ColReviewCount,
}

// SummaryHeader is the header row of the summary report CSV.
var SummaryHeader = []string{"category", "total_revenue", "top_product", "top_product_quantity_sold"}

// RawProduct is one row of the source file before cleaning.
// Numeric fields hold the cell text exactly as read.
type RawProduct struct {
	ProductID    string
	ProductName  string
	Category     string
	Price        string
	QuantitySold string
	Rating       string
	ReviewCount  string

	// Line is the 1-based source line the record starts on; 0 when not read from a file.
	Line int
}

// Product is a cleaned product row.
//
// Price and QuantitySold are always Valid after Clean. Rating is Valid unless
// every rating in the product's category was missing and the group policy is
// GroupKeep. ReviewCount is coerced but never repaired.
type Product struct {
	ProductID    string
	ProductName  string
	Category     string
	Price        pgtype.Float8
	QuantitySold pgtype.Float8
	Rating       pgtype.Float8
	ReviewCount  pgtype.Int8
	UploadID     pgtype.UUID // set by the service before persisting
}

// CategorySummary is one row of the summary report.
type CategorySummary struct {
	Category               string          `json:"category"`
	TotalRevenue           decimal.Decimal `json:"total_revenue"`
	TopProduct             string          `json:"top_product"`
	TopProductQuantitySold float64         `json:"top_product_quantity_sold"`
}

// UploadSource records how an upload entered the system.
type UploadSource string

const (
	SourceRequest  UploadSource = "request"  // file sent with the HTTP request
	SourceFile     UploadSource = "file"     // configured source path, triggered by a request
	SourceSchedule UploadSource = "schedule" // configured source path, triggered by cron
)

// Upload is the persisted record of one ingestion.
type Upload struct {
	ID        pgtype.UUID  `json:"-"`
	FileName  string       `json:"file_name"`
	Source    UploadSource `json:"source"`
	Checksum  string       `json:"checksum"`
	Rows      int          `json:"rows"`
	Username  string       `json:"username,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// UploadResult contains the outcome of an upload operation.
type UploadResult struct {
	UploadID string        `json:"upload_id"`
	FileName string        `json:"file_name"`
	Rows     int           `json:"rows"`
	Repaired RepairCounts  `json:"repaired"`
	Skipped  bool          `json:"skipped,omitempty"` // true when a scheduled import saw a known checksum
	Duration time.Duration `json:"duration_ns"`
}

// RepairCounts reports how many cells the Cleaner filled in per column.
type RepairCounts struct {
	Price        int `json:"price"`
	QuantitySold int `json:"quantity_sold"`
	Rating       int `json:"rating"`
	// RatingMissing counts ratings left missing because their category had no valid value.
	RatingMissing int `json:"rating_missing"`
}

package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// PreviewSummary contains the counts of a preview run.
type PreviewSummary struct {
	TotalRows       int          `json:"total_rows"`
	RepairedRows    int          `json:"repaired_rows"`
	Repaired        RepairCounts `json:"repaired"`
	DuplicateInFile int          `json:"duplicate_in_file"`
}

// RepairPreview shows one row whose cells the Cleaner filled in.
type RepairPreview struct {
	LineNumber int               `json:"line_number"`
	ProductID  string            `json:"product_id"`
	Raw        map[string]string `json:"raw"`
	Cleaned    map[string]string `json:"cleaned"`
	Changed    []string          `json:"changed"`
}

// DuplicatePreview lists the lines sharing one product_id.
type DuplicatePreview struct {
	ProductID   string `json:"product_id"`
	LineNumbers []int  `json:"line_numbers"`
}

// PreviewResponse is the outcome of a dry run: what an upload of the file
// would store and report, without touching the store.
type PreviewResponse struct {
	FileName         string             `json:"file_name"`
	Summary          PreviewSummary     `json:"summary"`
	RepairSamples    []RepairPreview    `json:"repair_samples"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples"`
	Report           []CategorySummary  `json:"report"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxRepairSamples    = 20
	maxDuplicateSamples = 10
)

// Preview reads and cleans a file like Upload does and reports the repairs
// and the summary of the file alone. Nothing is stored.
func (s *Service) Preview(ctx context.Context, r io.Reader, fileName string) (*PreviewResponse, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()

	raw, err := ReadProducts(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	products, repaired, err := Clean(raw, s.clean)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", fileName, err)
	}

	resp := &PreviewResponse{
		FileName: fileName,
		Summary: PreviewSummary{
			TotalRows: len(raw),
			Repaired:  repaired,
		},
		RepairSamples:    []RepairPreview{},
		DuplicateSamples: []DuplicatePreview{},
		Report:           Summarize(products, s.topProduct),
	}

	seenIDs := make(map[string][]int)
	for i := range raw {
		lineNum := raw[i].Line

		if id := raw[i].ProductID; id != "" {
			seenIDs[id] = append(seenIDs[id], lineNum)
		}

		changed := changedColumns(raw[i], products[i])
		if len(changed) == 0 {
			continue
		}
		resp.Summary.RepairedRows++
		if len(resp.RepairSamples) < maxRepairSamples {
			resp.RepairSamples = append(resp.RepairSamples, RepairPreview{
				LineNumber: lineNum,
				ProductID:  raw[i].ProductID,
				Raw:        rawValues(raw[i]),
				Cleaned:    cleanedValues(products[i]),
				Changed:    changed,
			})
		}
	}

	for id, lines := range seenIDs {
		if len(lines) < 2 {
			continue
		}
		resp.Summary.DuplicateInFile += len(lines) - 1
		resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{ProductID: id, LineNumbers: lines})
	}
	sort.Slice(resp.DuplicateSamples, func(i, j int) bool {
		return resp.DuplicateSamples[i].LineNumbers[0] < resp.DuplicateSamples[j].LineNumbers[0]
	})
	if len(resp.DuplicateSamples) > maxDuplicateSamples {
		resp.DuplicateSamples = resp.DuplicateSamples[:maxDuplicateSamples]
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// changedColumns lists the numeric columns Clean filled in for one row.
func changedColumns(raw RawProduct, p Product) []string {
	var changed []string
	if !ToFloat8(raw.Price).Valid && p.Price.Valid {
		changed = append(changed, ColPrice)
	}
	if !ToFloat8(raw.QuantitySold).Valid && p.QuantitySold.Valid {
		changed = append(changed, ColQuantitySold)
	}
	if !ToFloat8(raw.Rating).Valid && p.Rating.Valid {
		changed = append(changed, ColRating)
	}
	return changed
}

func rawValues(r RawProduct) map[string]string {
	return map[string]string{
		ColProductName:  r.ProductName,
		ColCategory:     r.Category,
		ColPrice:        r.Price,
		ColQuantitySold: r.QuantitySold,
		ColRating:       r.Rating,
		ColReviewCount:  r.ReviewCount,
	}
}

func cleanedValues(p Product) map[string]string {
	return map[string]string{
		ColProductName:  p.ProductName,
		ColCategory:     p.Category,
		ColPrice:        formatFloat8(p.Price),
		ColQuantitySold: formatFloat8(p.QuantitySold),
		ColRating:       formatFloat8(p.Rating),
		ColReviewCount:  formatInt8(p.ReviewCount),
	}
}

func formatFloat8(f pgtype.Float8) string {
	if !f.Valid {
		return ""
	}
	return FormatFloat(f.Float64)
}

func formatInt8(i pgtype.Int8) string {
	if !i.Valid {
		return ""
	}
	return fmt.Sprintf("%d", i.Int64)
}

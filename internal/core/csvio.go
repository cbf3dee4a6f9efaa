package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Errors returned by ReadProducts. Messages match the patterns in MapError.
var (
	ErrEmptyFile     = errors.New("empty file: no header row")
	ErrInvalidCSV    = errors.New("invalid csv")
	ErrMissingColumn = errors.New("missing required column")
)

// ReadProducts parses a product CSV. The header row is matched
// case-insensitively and may list columns in any order or carry extra ones.
// Rows shorter than the header read as empty (missing) cells. Blank lines are
// skipped; each row records the line it starts on.
func ReadProducts(r io.Reader) ([]RawProduct, error) {
	reader := csv.NewReader(WrapForParsing(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}

	idx := MakeHeaderIndex(header)
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	var rows []RawProduct
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, RawProduct{
			ProductID:    getCell(record, idx, ColProductID),
			ProductName:  getCell(record, idx, ColProductName),
			Category:     getCell(record, idx, ColCategory),
			Price:        getCell(record, idx, ColPrice),
			QuantitySold: getCell(record, idx, ColQuantitySold),
			Rating:       getCell(record, idx, ColRating),
			ReviewCount:  getCell(record, idx, ColReviewCount),
			Line:         line,
		})
	}

	return rows, nil
}

// WriteSummaryCSV writes the summary report with its header row.
func WriteSummaryCSV(w io.Writer, rows []CategorySummary) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, s := range rows {
		record := []string{
			s.Category,
			s.TotalRevenue.String(),
			s.TopProduct,
			FormatFloat(s.TopProductQuantitySold),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write summary row %q: %w", s.Category, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

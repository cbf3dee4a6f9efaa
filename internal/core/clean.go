package core

// clean.go implements the dataset cleaning rules.
//
// Cleaning works on the whole input at once:
//
//  1. price, quantity_sold and rating are coerced to floats; bad cells become missing
//  2. missing prices take the global median of the valid prices
//  3. missing quantities take the global median of the valid quantities
//  4. missing ratings take the mean of the valid ratings in the same category
//
// All statistics are computed from the coerced values before any repair, so a
// repaired cell never feeds back into another statistic.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/montanaflynn/stats"
)

// ErrUndefinedStatistic is returned when a repair needs a median or mean
// but the column or category has no valid values and the policy is to fail.
var ErrUndefinedStatistic = errors.New("undefined statistic")

// ColumnPolicy decides what fills missing cells of a column with no valid values.
type ColumnPolicy string

const (
	ColumnFail ColumnPolicy = "fail" // return ErrUndefinedStatistic
	ColumnZero ColumnPolicy = "zero" // fill with 0
)

// GroupPolicy decides what fills missing ratings of a category with no valid rating.
type GroupPolicy string

const (
	GroupKeep GroupPolicy = "keep" // leave the rating missing
	GroupZero GroupPolicy = "zero" // fill with 0
	GroupFail GroupPolicy = "fail" // return ErrUndefinedStatistic
)

// CleanOptions selects the undefined-statistic policies.
// The zero value behaves like DefaultCleanOptions.
type CleanOptions struct {
	EmptyColumn ColumnPolicy
	EmptyGroup  GroupPolicy
}

// DefaultCleanOptions fails on an empty price or quantity column and keeps
// ratings missing for categories that have none.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{EmptyColumn: ColumnFail, EmptyGroup: GroupKeep}
}

// ParseColumnPolicy converts a config value to a ColumnPolicy.
func ParseColumnPolicy(s string) (ColumnPolicy, error) {
	switch p := ColumnPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ColumnFail, ColumnZero:
		return p, nil
	case "":
		return ColumnFail, nil
	default:
		return "", fmt.Errorf("unknown column policy %q (want fail or zero)", s)
	}
}

// ParseGroupPolicy converts a config value to a GroupPolicy.
func ParseGroupPolicy(s string) (GroupPolicy, error) {
	switch p := GroupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case GroupKeep, GroupZero, GroupFail:
		return p, nil
	case "":
		return GroupKeep, nil
	default:
		return "", fmt.Errorf("unknown group policy %q (want keep, zero or fail)", s)
	}
}

// Clean coerces and repairs raw rows. It never fails because of a malformed
// cell; it fails only when a statistic is undefined and the policy says so.
// The input is not modified. Rows keep their input order.
func Clean(rows []RawProduct, opts CleanOptions) ([]Product, RepairCounts, error) {
	var counts RepairCounts

	out := make([]Product, len(rows))
	for i, r := range rows {
		out[i] = Product{
			ProductID:    r.ProductID,
			ProductName:  r.ProductName,
			Category:     r.Category,
			Price:        ToFloat8(r.Price),
			QuantitySold: ToFloat8(r.QuantitySold),
			Rating:       ToFloat8(r.Rating),
			ReviewCount:  ToInt8(r.ReviewCount),
		}
	}

	n, err := fillColumnMedian(out, ColPrice, func(p *Product) *pgtype.Float8 { return &p.Price }, opts.EmptyColumn)
	if err != nil {
		return nil, counts, err
	}
	counts.Price = n

	n, err = fillColumnMedian(out, ColQuantitySold, func(p *Product) *pgtype.Float8 { return &p.QuantitySold }, opts.EmptyColumn)
	if err != nil {
		return nil, counts, err
	}
	counts.QuantitySold = n

	filled, left, err := fillRatingByCategory(out, opts.EmptyGroup)
	if err != nil {
		return nil, counts, err
	}
	counts.Rating = filled
	counts.RatingMissing = left

	return out, counts, nil
}

// fillColumnMedian replaces every missing value of one column with the median
// of the column's valid values. Returns the number of cells filled.
func fillColumnMedian(products []Product, col string, field func(*Product) *pgtype.Float8, policy ColumnPolicy) (int, error) {
	valid := make(stats.Float64Data, 0, len(products))
	missing := 0
	for i := range products {
		f := field(&products[i])
		if f.Valid {
			valid = append(valid, f.Float64)
		} else {
			missing++
		}
	}
	if missing == 0 {
		return 0, nil
	}

	var fill float64
	if len(valid) == 0 {
		if policy != ColumnZero {
			return 0, fmt.Errorf("%w: %s median has no valid values", ErrUndefinedStatistic, col)
		}
	} else {
		m, err := stats.Median(valid)
		if err != nil {
			return 0, fmt.Errorf("%s median: %w", col, err)
		}
		fill = m
	}

	for i := range products {
		f := field(&products[i])
		if !f.Valid {
			*f = pgtype.Float8{Float64: fill, Valid: true}
		}
	}
	return missing, nil
}

// fillRatingByCategory replaces missing ratings with their category mean.
// Returns how many ratings were filled and how many stay missing.
func fillRatingByCategory(products []Product, policy GroupPolicy) (filled, left int, err error) {
	valid := make(map[string]stats.Float64Data)
	missing := make(map[string]int)
	for _, p := range products {
		if p.Rating.Valid {
			valid[p.Category] = append(valid[p.Category], p.Rating.Float64)
		} else {
			missing[p.Category]++
		}
	}
	if len(missing) == 0 {
		return 0, 0, nil
	}

	means := make(map[string]pgtype.Float8, len(missing))
	for category := range missing {
		vals := valid[category]
		if len(vals) == 0 {
			switch policy {
			case GroupZero:
				means[category] = pgtype.Float8{Float64: 0, Valid: true}
			case GroupFail:
				return 0, 0, fmt.Errorf("%w: rating mean for category %q has no valid values", ErrUndefinedStatistic, category)
			default:
				means[category] = pgtype.Float8{Valid: false}
			}
			continue
		}
		m, err := stats.Mean(vals)
		if err != nil {
			return 0, 0, fmt.Errorf("rating mean for category %q: %w", category, err)
		}
		means[category] = pgtype.Float8{Float64: m, Valid: true}
	}

	for i := range products {
		if products[i].Rating.Valid {
			continue
		}
		fill := means[products[i].Category]
		if fill.Valid {
			products[i].Rating = fill
			filled++
		} else {
			left++
		}
	}
	return filled, left, nil
}

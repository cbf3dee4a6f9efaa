package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TopProductPolicy selects how the top product of a category is chosen.
type TopProductPolicy string

const (
	// TopProductRow reports the name of the row with the highest quantity_sold.
	// Ties go to the lexicographically smallest name.
	TopProductRow TopProductPolicy = "row"

	// TopProductLegacy reports the lexicographically greatest product name in
	// the category, independent of quantity_sold. The name and the quantity in
	// the summary row may then come from different products.
	TopProductLegacy TopProductPolicy = "legacy"
)

// ParseTopProductPolicy converts a config value to a TopProductPolicy.
func ParseTopProductPolicy(s string) (TopProductPolicy, error) {
	switch p := TopProductPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case TopProductRow, TopProductLegacy:
		return p, nil
	case "":
		return TopProductRow, nil
	default:
		return "", fmt.Errorf("unknown top product policy %q (want row or legacy)", s)
	}
}

type categoryAcc struct {
	revenue  decimal.Decimal
	maxQty   float64
	hasQty   bool
	rowTop   string // name on the max-quantity row
	maxName  string // greatest name seen
	hasNames bool
}

// Summarize groups cleaned products by category and returns one summary per
// category, sorted by category. Rows with a missing price or quantity add
// nothing to revenue; Clean never produces such rows.
func Summarize(rows []Product, policy TopProductPolicy) []CategorySummary {
	groups := make(map[string]*categoryAcc)

	for _, p := range rows {
		acc, ok := groups[p.Category]
		if !ok {
			acc = &categoryAcc{revenue: decimal.Zero}
			groups[p.Category] = acc
		}

		if p.Price.Valid && p.QuantitySold.Valid {
			line := decimal.NewFromFloat(p.Price.Float64).Mul(decimal.NewFromFloat(p.QuantitySold.Float64))
			acc.revenue = acc.revenue.Add(line)
		}

		if p.QuantitySold.Valid {
			q := p.QuantitySold.Float64
			if !acc.hasQty || q > acc.maxQty || (q == acc.maxQty && p.ProductName < acc.rowTop) {
				acc.maxQty = q
				acc.rowTop = p.ProductName
				acc.hasQty = true
			}
		}

		if !acc.hasNames || p.ProductName > acc.maxName {
			acc.maxName = p.ProductName
			acc.hasNames = true
		}
	}

	out := make([]CategorySummary, 0, len(groups))
	for category, acc := range groups {
		top := acc.rowTop
		if policy == TopProductLegacy {
			top = acc.maxName
		}
		out = append(out, CategorySummary{
			Category:               category,
			TotalRevenue:           acc.revenue,
			TopProduct:             top,
			TopProductQuantitySold: acc.maxQty,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Package templates renders the HTML views of the sales report.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}` +
	`table{border-collapse:collapse;min-width:40rem}` +
	`th,td{border:1px solid #d1d5db;padding:.4rem .8rem;text-align:left}` +
	`th{background:#f3f4f6}td.num{text-align:right;font-variant-numeric:tabular-nums}`

// SummaryPage renders the summary report as a standalone HTML page.
func SummaryPage(rows []core.CategorySummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>Summary report</title><style>`+pageStyle+`</style></head><body>`+
			`<h1>Summary report</h1>`); err != nil {
			return err
		}
		if err := SummaryTable(rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// SummaryTable renders only the report table, one row per category.
func SummaryTable(rows []core.CategorySummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(rows) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No products uploaded yet.</p>`)
			return err
		}

		if _, err := io.WriteString(w, `<table><thead><tr>`+
			`<th>Category</th><th>Total revenue</th><th>Top product</th><th>Top product quantity sold</th>`+
			`</tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td class="num">%s</td><td>%s</td><td class="num">%s</td></tr>`,
				templ.EscapeString(row.Category),
				templ.EscapeString(row.TotalRevenue.StringFixed(2)),
				templ.EscapeString(row.TopProduct),
				templ.EscapeString(core.FormatFloat(row.TopProductQuantitySold)),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

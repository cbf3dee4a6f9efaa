package core

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

// benchRows builds n raw rows across 10 categories, with every 7th price,
// every 11th quantity and every 5th rating missing.
func benchRows(n int) []RawProduct {
	rows := make([]RawProduct, n)
	for i := range rows {
		r := RawProduct{
			ProductID:    fmt.Sprint(i),
			ProductName:  fmt.Sprintf("Product %d", i),
			Category:     fmt.Sprintf("Category %d", i%10),
			Price:        fmt.Sprintf("%d.99", i%500),
			QuantitySold: fmt.Sprint(i % 300),
			Rating:       fmt.Sprintf("%.1f", float64(i%50)/10),
			ReviewCount:  fmt.Sprint(i % 1000),
		}
		if i%7 == 0 {
			r.Price = ""
		}
		if i%11 == 0 {
			r.QuantitySold = "n/a"
		}
		if i%5 == 0 {
			r.Rating = ""
		}
		rows[i] = r
	}
	return rows
}

func benchCSV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(RequiredColumns, ",") + "\n")
	for _, r := range benchRows(n) {
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s,%s\n",
			r.ProductID, r.ProductName, r.Category, r.Price, r.QuantitySold, r.Rating, r.ReviewCount)
	}
	return buf.Bytes()
}

// BenchmarkToFloat8 benchmarks cell coercion, the per-cell hot path of Clean.
func BenchmarkToFloat8(b *testing.B) {
	cells := []string{"123", "-456.78", "  999.99  ", "", "abc", "NaN", "1e3"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			ToFloat8(c)
		}
	}
}

func BenchmarkClean(b *testing.B) {
	for _, n := range []int{1_000, 100_000} {
		rows := benchRows(n)
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := Clean(rows, DefaultCleanOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSummarize(b *testing.B) {
	cleaned, _, err := Clean(benchRows(100_000), DefaultCleanOptions())
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Summarize(cleaned, TopProductRow)
	}
}

func BenchmarkReadProducts(b *testing.B) {
	data := benchCSV(100_000)

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadProducts(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// Package core provides the business logic for product sales reporting.
//
// It has no HTTP dependencies and can be used by web handlers, the
// scheduler or tests without modification.
//
// # Pipeline
//
// An upload flows through three stages:
//
//  1. [ReadProducts] parses the CSV into [RawProduct] rows, matching the
//     header case-insensitively and stripping a UTF-8 BOM.
//  2. [Clean] coerces price, quantity_sold and rating to nullable floats and
//     repairs missing cells: global medians for price and quantity, the
//     category mean for rating.
//  3. The [Service] stamps the rows with an upload ID and hands them to a
//     [Store] in one atomic insert.
//
// [Summarize] turns every stored product into one [CategorySummary] per
// category: total revenue as an exact decimal, plus the top product by
// quantity sold.
//
// [Service.Preview] runs the first two stages and reports what an upload
// would repair without storing anything. [Service.StartImportScheduler]
// re-imports the configured source file on a cron schedule and skips files
// it has already seen.
//
// # Undefined statistics
//
// A median or mean over zero values is undefined. [CleanOptions] decides
// what happens then: fail with [ErrUndefinedStatistic], fill with zero, or
// (for ratings) leave the value missing.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Each category has its own code prefix:
//
//   - AUTH001-AUTH005: token and credential errors
//   - STAT001: undefined statistic
//   - DB001-DB007: database errors
//   - VAL001, VAL004, FILE001-FILE005: request, file and header errors
//   - UPL002-UPL005: upload slot and cancellation errors
package core

package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "missing token",
			err:         errors.New("token is missing"),
			wantCode:    "AUTH001",
			wantMessage: "Token is missing!",
		},
		{
			name:        "invalid token wraps jwt error",
			err:         fmt.Errorf("token is invalid: %w", errors.New("token is expired")),
			wantCode:    "AUTH002",
			wantMessage: "Token is invalid!",
		},
		{
			name:        "bad credentials",
			err:         errors.New("invalid credentials"),
			wantCode:    "AUTH003",
			wantMessage: "Invalid credentials",
		},
		{
			name:        "undefined statistic",
			err:         fmt.Errorf("clean x.csv: %w: price median has no valid values", ErrUndefinedStatistic),
			wantCode:    "STAT001",
			wantMessage: "A column has no valid values to repair missing cells from",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "sqlite busy",
			err:         errors.New("insert upload: database is locked (5) (SQLITE_BUSY)"),
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "missing column",
			err:         errors.New("read x.csv: missing required column: rating"),
			wantCode:    "VAL004",
			wantMessage: "Required column is missing from CSV",
		},
		{
			name:        "request body too large",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "empty file",
			err:         errors.New("read x.csv: empty file: no header row"),
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "too many uploads",
			err:         ErrTooManyUploads,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other uploads",
		},
		{
			name:        "cancelled",
			err:         fmt.Errorf("store upload: %w", context.Canceled),
			wantCode:    "UPL004",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "missing column in a file named like another error",
			err:         fmt.Errorf("read timeout.csv: %w", fmt.Errorf("%w: price", ErrMissingColumn)),
			wantCode:    "VAL004",
			wantMessage: "Required column is missing from CSV",
		},
		{
			name:        "undefined statistic wins over file name",
			err:         fmt.Errorf("clean deadlock_report.csv: %w", ErrUndefinedStatistic),
			wantCode:    "STAT001",
			wantMessage: "A column has no valid values to repair missing cells from",
		},
		{
			name:        "empty file wins over file name",
			err:         fmt.Errorf("read invalid credentials.csv: %w", ErrEmptyFile),
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "deadline wins over generic timeout",
			err:         fmt.Errorf("store upload: %w", context.DeadlineExceeded),
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestSentinelPatternsHaveMessages(t *testing.T) {
	for _, sp := range sentinelPatterns {
		if messageFor(sp.pattern).Code == defaultMessage.Code {
			t.Errorf("sentinel %v maps to pattern %q with no message", sp.target, sp.pattern)
		}
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(errors.New("invalid csv: record on line 3: wrong number of fields"))

	expected := "File is not a valid CSV (Code: FILE002). Ensure file is comma-separated with consistent quoting"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  errors.New("duplicate key"),
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

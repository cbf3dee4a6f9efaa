package core

// error_messages.go maps technical errors to user-facing messages with codes
// that users can quote to support.
//
// # Codes
//
//	AUTH001 - Token is missing                    ("token is missing")
//	AUTH002 - Token is invalid or expired         ("token is invalid")
//	AUTH003 - Username or password is wrong       ("invalid credentials")
//	AUTH004 - Username is taken                   ("user already exists")
//	AUTH005 - Username and password are required  ("invalid input")
//
//	STAT001 - A column or category has no valid values to repair from ("undefined statistic")
//
//	DB001   - Duplicate key                       ("duplicate key")
//	DB004   - Connection refused                  ("connection refused")
//	DB005   - Connection reset                    ("connection reset")
//	DB006   - Timeout                             ("timeout")
//	DB007   - Deadlock or busy database           ("deadlock", "database is locked")
//
//	VAL001  - Bad query parameter                 ("invalid query parameter")
//	VAL004  - Required column missing from CSV    ("missing required column")
//
//	FILE001 - File too large                      ("file too large", "request body too large")
//	FILE002 - Not a valid CSV                     ("invalid csv")
//	FILE003 - Source file unreadable              ("open source file")
//	FILE004 - No file and no source configured    ("no file provided")
//	FILE005 - Empty file                          ("empty file")
//
//	UPL002  - Too many uploads in progress        ("too many uploads")
//	UPL004  - Request cancelled                   ("context canceled")
//	UPL005  - Request timed out                   ("context deadline exceeded")
//
//	RATE001 - Too many requests                   ("rate limit")
//
//	ERR000  - Anything else; check the server log for the technical error.
//
// Known sentinel errors are matched with errors.Is first, so file names or
// other text in a wrapped message cannot change the code. Everything else is
// matched case-insensitively with strings.Contains and the first match wins,
// so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Authentication
	{
		pattern: "token is missing",
		msg:     UserMessage{Message: "Token is missing!", Action: "Log in and send the token in the x-access-token header", Code: "AUTH001"},
	},
	{
		pattern: "token is invalid",
		msg:     UserMessage{Message: "Token is invalid!", Action: "Log in again to get a fresh token", Code: "AUTH002"},
	},
	{
		pattern: "invalid credentials",
		msg:     UserMessage{Message: "Invalid credentials", Action: "Check your username and password", Code: "AUTH003"},
	},
	{
		pattern: "user already exists",
		msg:     UserMessage{Message: "This username is already taken", Action: "Choose a different username", Code: "AUTH004"},
	},
	{
		pattern: "invalid input",
		msg:     UserMessage{Message: "Username and password are required", Action: "Send a JSON body with username and password", Code: "AUTH005"},
	},

	// Cleaning
	{
		pattern: "undefined statistic",
		msg:     UserMessage{Message: "A column has no valid values to repair missing cells from", Action: "Provide at least one valid price and quantity_sold value", Code: "STAT001"},
	},

	// Database
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this key already exists", Action: "Review your data for duplicate values", Code: "DB001"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB004"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB005"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Operation timed out", Action: "Try uploading a smaller file or try again later", Code: "DB006"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"},
	},
	{
		pattern: "database is locked",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"},
	},

	// Validation
	{
		pattern: "invalid query parameter",
		msg:     UserMessage{Message: "A query parameter has an invalid value", Action: "Check the request parameters", Code: "VAL001"},
	},
	{
		pattern: "missing required column",
		msg:     UserMessage{Message: "Required column is missing from CSV", Action: "The header must contain product_id, product_name, category, price, quantity_sold, rating and review_count", Code: "VAL004"},
	},

	// Files
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"},
	},
	{
		pattern: "request body too large",
		msg:     UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"},
	},
	{
		pattern: "invalid csv",
		msg:     UserMessage{Message: "File is not a valid CSV", Action: "Ensure file is comma-separated with consistent quoting", Code: "FILE002"},
	},
	{
		pattern: "open source file",
		msg:     UserMessage{Message: "The configured source file could not be read", Action: "Check UPLOAD_SOURCE_PATH or send the file with the request", Code: "FILE003"},
	},
	{
		pattern: "no file provided",
		msg:     UserMessage{Message: "No file was provided", Action: "Attach a CSV file in the 'file' form field", Code: "FILE004"},
	},
	{
		pattern: "empty file",
		msg:     UserMessage{Message: "The uploaded file is empty", Action: "Please upload a CSV file with a header row", Code: "FILE005"},
	},

	// Uploads
	{
		pattern: "too many uploads",
		msg:     UserMessage{Message: "System is busy processing other uploads", Action: "Please wait a moment and try again", Code: "UPL002"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL004"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Request timed out", Action: "Try uploading a smaller file or check your connection", Code: "UPL005"},
	},

	{
		pattern: "rate limit",
		msg:     UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"},
	},
}

// sentinelPatterns maps sentinel errors to the pattern whose message they get.
var sentinelPatterns = []struct {
	target  error
	pattern string
}{
	{ErrUndefinedStatistic, "undefined statistic"},
	{ErrMissingColumn, "missing required column"},
	{ErrInvalidCSV, "invalid csv"},
	{ErrEmptyFile, "empty file"},
	{ErrNoSource, "no file provided"},
	{ErrTooManyUploads, "too many uploads"},
	{context.Canceled, "context canceled"},
	{context.DeadlineExceeded, "context deadline exceeded"},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the ERR000 fallback when no pattern matches and an empty
// UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sp := range sentinelPatterns {
		if errors.Is(err, sp.target) {
			return messageFor(sp.pattern)
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func messageFor(pattern string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.pattern == pattern {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

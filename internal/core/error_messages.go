package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference. When users encounter errors, they can quote the code
// to support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Decode Errors (DEC001-DEC010)
//
//	DEC001 - A quoted field is never closed
//	        Patterns: "unterminated quoted field"
//	DEC002 - Row has the wrong number of fields
//	        Patterns: "fields, expected"
//	DEC003 - Expected column not found in CSV
//	        Patterns: "missing column", "missing required column"
//	DEC004 - Invalid date format detected
//	        Patterns: "invalid date"
//	DEC005 - Invalid number format detected
//	        Patterns: "invalid number"
//	DEC006 - Invalid whole number detected
//	        Patterns: "invalid integer"
//	DEC007 - Invalid yes/no value detected
//	        Patterns: "invalid bool"
//	DEC008 - Invalid identifier detected
//	        Patterns: "invalid uuid"
//	DEC009 - Required field is empty
//	        Patterns: "required field is empty"
//	DEC010 - Value is not in the allowed list
//	        Patterns: "invalid enum"
//
// # Source Errors (SRC001-SRC003)
//
//	SRC001 - The file encoding is not supported
//	        Patterns: "unsupported charset"
//	SRC002 - The file could not be read completely
//	        Patterns: "read source"
//	SRC003 - The stream was already closed
//	        Patterns: "stream already closed"
//
// # Import Errors (UPL001-UPL005)
//
//	UPL001 - Too many imports in progress
//	        Patterns: "too many concurrent imports"
//	UPL002 - Request was cancelled
//	        Patterns: "context canceled"
//	UPL003 - Request timed out
//	        Patterns: "context deadline exceeded"
//	UPL004 - File exceeds maximum size limit
//	        Patterns: "request body too large"
//	UPL005 - Imports are disabled on this server
//	        Patterns: "import requires a database"
//
// # Table Errors (TBL001)
//
//	TBL001 - The specified table is not configured
//	        Patterns: "unknown table"
//
// # Database Errors (DB001-DB007)
//
//	DB001 - A record with this ID already exists
//	       Patterns: "duplicate key"
//	DB002 - This value must be unique but already exists
//	       Patterns: "unique constraint", "violates unique"
//	DB003 - Referenced record does not exist
//	       Patterns: "foreign key constraint"
//	DB004 - Unable to connect to database
//	       Patterns: "connection refused"
//	DB005 - Database connection was interrupted
//	       Patterns: "connection reset"
//	DB006 - Operation timed out
//	       Patterns: "timeout"
//	DB007 - Database was busy with conflicting operations
//	       Patterns: "deadlock"
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred
//
// Patterns are matched case-insensitively using strings.Contains. The first
// matching pattern wins, so more specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Decode Errors (DEC001-DEC010)
	// These errors describe a single row that could not be decoded.
	// =========================================================================
	{
		pattern: "unterminated quoted field",
		msg: UserMessage{
			Message: "A quoted field is never closed",
			Action:  "Check for a missing closing quote near the reported line",
			Code:    "DEC001",
		},
	},
	{
		pattern: "fields, expected",
		msg: UserMessage{
			Message: "Row has the wrong number of fields",
			Action:  "Make sure every row has the same number of columns as the header",
			Code:    "DEC002",
		},
	},
	{
		pattern: "missing column",
		msg: UserMessage{
			Message: "Expected column not found in CSV",
			Action:  "Verify column headers match the table definition",
			Code:    "DEC003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Check that all required columns are present in your file",
			Code:    "DEC003",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "DEC004",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal number; currency symbols and thousands separators are allowed",
			Code:    "DEC005",
		},
	},
	{
		pattern: "invalid integer",
		msg: UserMessage{
			Message: "Invalid whole number detected",
			Action:  "Remove decimals from this column",
			Code:    "DEC006",
		},
	},
	{
		pattern: "invalid bool",
		msg: UserMessage{
			Message: "Invalid yes/no value detected",
			Action:  "Use yes/no, true/false, or 1/0",
			Code:    "DEC007",
		},
	},
	{
		pattern: "invalid uuid",
		msg: UserMessage{
			Message: "Invalid identifier detected",
			Action:  "Use the 36-character UUID format",
			Code:    "DEC008",
		},
	},
	{
		pattern: "required field is empty",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "DEC009",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "DEC010",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC003)
	// These errors occur while reading the uploaded data itself.
	// =========================================================================
	{
		pattern: "unsupported charset",
		msg: UserMessage{
			Message: "The file encoding is not supported",
			Action:  "Save the file as UTF-8 or pass a supported charset",
			Code:    "SRC001",
		},
	},
	// Size limits surface as read failures, so they must match first.
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "UPL004",
		},
	},
	{
		pattern: "read source",
		msg: UserMessage{
			Message: "The file could not be read completely",
			Action:  "Upload the file again",
			Code:    "SRC002",
		},
	},
	{
		pattern: "stream already closed",
		msg: UserMessage{
			Message: "The stream was already closed",
			Action:  "Open a new stream to read again",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// Import Errors (UPL001-UPL005)
	// These errors occur while importing into the database.
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "UPL003",
		},
	},
	{
		pattern: "import requires a database",
		msg: UserMessage{
			Message: "Imports are disabled on this server",
			Action:  "Use the decode endpoint, or configure DATABASE_URL",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Table Errors (TBL001)
	// =========================================================================
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "The specified table is not configured",
			Action:  "Verify the table key is correct",
			Code:    "TBL001",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB007)
	// These errors occur when data violates database constraints or connectivity is disrupted.
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the file for duplicate rows",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure parent records are imported first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(res.Err())
//	// msg.Code == "DEC004" for a "cannot convert ...: invalid date" failure
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
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

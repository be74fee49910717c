package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Codes are grouped by
// category:
//
//	VAL001 - Missing field        (MissingField)
//	VAL002 - Invalid person ID    (InvalidFormat)
//	VAL003 - Value out of range   (OutOfRange)
//	VAL004 - Invalid timestamp    (ParseError)
//	VAL005 - Notes too long       (TooLong)
//	VAL006 - Wrong value type     (TypeError)
//
//	FILE001 - Missing columns     (MissingColumns)
//	FILE002 - Empty file          (EmptyInput)
//	FILE003 - File too large      pattern "file too large"
//	FILE004 - Invalid CSV         pattern "invalid csv"
//
//	STO001 - Duplicate entry      (DuplicateKey)
//	STO002 - Unknown position     (IndexError)
//	STO003 - Storage failure      (IOFailure)
//
//	SYS001 - Busy                 pattern "busy"
//	SYS002 - Request cancelled    pattern "context canceled"
//	SYS003 - Request timeout      pattern "context deadline exceeded"
//	SYS004 - Warehouse disabled   pattern "warehouse not configured"
//
//	ERR000 - Unknown error (fallback; check the logs for the technical error)
//
// Classified errors (*Error) are mapped by Kind. Anything else is matched
// case-insensitively against the pattern table; the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var kindMessages = map[ErrorKind]UserMessage{
	KindMissingField: {
		Message: "A required field is missing",
		Action:  "Provide person_id, timestamp, heart_rate, systolic_bp, diastolic_bp and energy_level",
		Code:    "VAL001",
	},
	KindInvalidFormat: {
		Message: "Invalid person ID",
		Action:  "Use 2-50 letters, numbers, underscores or hyphens",
		Code:    "VAL002",
	},
	KindOutOfRange: {
		Message: "A value is outside the accepted range",
		Action:  "Check the reading and re-enter it",
		Code:    "VAL003",
	},
	KindParseError: {
		Message: "Invalid timestamp",
		Action:  "Use YYYY-MM-DD HH:MM:SS or YYYY-MM-DD HH:MM",
		Code:    "VAL004",
	},
	KindTooLong: {
		Message: "Notes are too long",
		Action:  "Shorten notes to 500 characters or less",
		Code:    "VAL005",
	},
	KindTypeError: {
		Message: "A value has the wrong type",
		Action:  "Send notes as text",
		Code:    "VAL006",
	},
	KindMissingColumns: {
		Message: "Required column is missing from CSV",
		Action:  "Check that all required columns are present in your file",
		Code:    "FILE001",
	},
	KindEmptyInput: {
		Message: "The uploaded file has no data rows",
		Action:  "Please upload a CSV file with data rows",
		Code:    "FILE002",
	},
	KindDuplicateKey: {
		Message: "An entry for this person at this time already exists",
		Action:  "Change the timestamp or update the existing entry",
		Code:    "STO001",
	},
	KindIndexError: {
		Message: "No entry at that position",
		Action:  "Reload the data; positions shift after deletes",
		Code:    "STO002",
	},
	KindIOFailure: {
		Message: "The data file could not be read or written",
		Action:  "Check the data file and disk space, then try again",
		Code:    "STO003",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps unclassified technical errors (case-insensitive
// substring) to user messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum import size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE004",
		},
	},
	{
		pattern: "busy",
		msg: UserMessage{
			Message: "Another change is being saved",
			Action:  "Please wait a moment and try again",
			Code:    "SYS001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYS002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "SYS003",
		},
	},
	{
		pattern: "warehouse not configured",
		msg: UserMessage{
			Message: "Warehouse sync is not configured",
			Action:  "Set DATABASE_URL to enable the Postgres mirror",
			Code:    "SYS004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Classified errors keep their own message text so validation feedback stays
// exact; the code and action come from the kind table.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if kind := KindOf(err); kind != "" {
		msg := MapKind(kind)
		if msg.Code != defaultMessage.Code && kind != KindIOFailure {
			msg.Message = leafMessage(err)
		}
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// MapKind returns the user message registered for kind.
func MapKind(kind ErrorKind) UserMessage {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

func leafMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

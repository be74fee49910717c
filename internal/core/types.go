package core

import (
	"errors"
	"fmt"
	"time"
)

// Column names of the backing table, in file order.
const (
	ColPersonID    = "person_id"
	ColTimestamp   = "timestamp"
	ColHeartRate   = "heart_rate"
	ColSystolicBP  = "systolic_bp"
	ColDiastolicBP = "diastolic_bp"
	ColEnergyLevel = "energy_level"
	ColNotes       = "notes"
)

// Columns is the canonical header of the dataset file.
var Columns = []string{
	ColPersonID, ColTimestamp, ColHeartRate, ColSystolicBP, ColDiastolicBP, ColEnergyLevel, ColNotes,
}

// RequiredColumns must be present in every entry and every imported table.
// Notes is optional and defaults to empty.
var RequiredColumns = []string{
	ColPersonID, ColTimestamp, ColHeartRate, ColSystolicBP, ColDiastolicBP, ColEnergyLevel,
}

// Record is one measurement event for one person at one instant.
type Record struct {
	PersonID    string    `json:"person_id"`
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   int       `json:"heart_rate"`
	SystolicBP  int       `json:"systolic_bp"`
	DiastolicBP int       `json:"diastolic_bp"`
	EnergyLevel int       `json:"energy_level"`
	Notes       string    `json:"notes"`
}

// Key returns the primary key of the record: person id plus the canonical
// second-precision timestamp text.
func (r Record) Key() string {
	return r.PersonID + "|" + FormatTimestamp(r.Timestamp)
}

// Row serializes the record in Columns order.
func (r Record) Row() []string {
	return []string{
		r.PersonID,
		FormatTimestamp(r.Timestamp),
		fmt.Sprint(r.HeartRate),
		fmt.Sprint(r.SystolicBP),
		fmt.Sprint(r.DiastolicBP),
		fmt.Sprint(r.EnergyLevel),
		r.Notes,
	}
}

// Fields is the loosely typed input of a single entry as collected by a
// boundary layer (form values, decoded JSON, an imported row). Keys are column
// names. Values may be strings, numbers or time.Time.
type Fields map[string]any

// ErrorKind classifies validation and storage failures.
type ErrorKind string

const (
	KindMissingField   ErrorKind = "MissingField"
	KindInvalidFormat  ErrorKind = "InvalidFormat"
	KindOutOfRange     ErrorKind = "OutOfRange"
	KindParseError     ErrorKind = "ParseError"
	KindTooLong        ErrorKind = "TooLong"
	KindTypeError      ErrorKind = "TypeError"
	KindMissingColumns ErrorKind = "MissingColumns"
	KindEmptyInput     ErrorKind = "EmptyInput"
	KindDuplicateKey   ErrorKind = "DuplicateKey"
	KindIndexError     ErrorKind = "IndexError"
	KindIOFailure      ErrorKind = "IOFailure"
)

// Verdict is the result of a single check. A failed verdict carries a Kind
// and never carries warnings; a successful one may carry advisory warnings.
type Verdict struct {
	Valid    bool      `json:"valid"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Message  string    `json:"message"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Ok builds a successful verdict.
func Ok(message string, warnings ...string) Verdict {
	v := Verdict{Valid: true, Message: message}
	if len(warnings) > 0 {
		v.Warnings = warnings
	}
	return v
}

// Fail builds a failed verdict.
func Fail(kind ErrorKind, message string) Verdict {
	return Verdict{Kind: kind, Message: message}
}

// Err converts a failed verdict to an error. It returns nil for valid verdicts.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return &Error{Kind: v.Kind, Message: v.Message}
}

// BatchVerdict is the result of validating a whole imported table.
type BatchVerdict struct {
	Valid         bool      `json:"valid"`
	Kind          ErrorKind `json:"kind,omitempty"`
	Message       string    `json:"message"`
	Rows          int       `json:"rows"`
	Errors        []string  `json:"errors,omitempty"`
	TotalErrors   int       `json:"total_errors"`
	Warnings      []string  `json:"warnings,omitempty"`
	TotalWarnings int       `json:"total_warnings"`
}

// Table is an imported flat table: a header row plus data rows of raw text.
type Table struct {
	Header []string
	Rows   [][]string
}

// Error is a classified failure returned by the storage and import paths.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinel errors can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the ErrorKind of err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

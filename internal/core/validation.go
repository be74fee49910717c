package core

// validation.go holds the physiological and structural checks for a single
// measurement entry.
//
// Checks come in two flavours:
//  1. Typed checks (ValidateHeartRate, ValidateBloodPressure, ...) for callers
//     that already hold numbers.
//  2. Field-map checks (ValidateEntry, ParseEntry) for raw boundary input,
//     which additionally reject non-numeric and fractional values.
//
// Every check returns a Verdict; nothing here returns an error or panics.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Physiological bounds, all inclusive.
const (
	MinHeartRate   = 30
	MaxHeartRate   = 200
	MinSystolic    = 70
	MaxSystolic    = 250
	MinDiastolic   = 40
	MaxDiastolic   = 150
	MinEnergyLevel = 1
	MaxEnergyLevel = 10

	MinPersonIDLength = 2
	MaxPersonIDLength = 50
	MaxNotesLength    = 500

	// LookbackYears bounds how old a measurement may be.
	LookbackYears = 10
)

// Default caps on the number of messages reported by ValidateTable.
const (
	DefaultMaxErrors   = 10
	DefaultMaxWarnings = 20
)

// Advisory warnings.
const (
	WarnLowBloodPressure  = "Blood pressure is in the low range"
	WarnHighBloodPressure = "Blood pressure is in the high range"
	WarnHighEnergyLowHR   = "High energy level with low heart rate - please verify readings"
	WarnLowEnergyHighHR   = "Low energy with high heart rate - consider medical consultation"
)

var personIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator carries the context the checks depend on: the clock, the location
// naive timestamps are interpreted in, and batch reporting caps.
type Validator struct {
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time

	// Location interprets timestamps written without an offset. Defaults to time.Local.
	Location *time.Location

	// MaxErrors and MaxWarnings cap the messages kept by ValidateTable.
	// Values <= 0 select the defaults.
	MaxErrors   int
	MaxWarnings int
}

// NewValidator returns a Validator using the wall clock and loc.
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.Local
	}
	return &Validator{
		Now:         time.Now,
		Location:    loc,
		MaxErrors:   DefaultMaxErrors,
		MaxWarnings: DefaultMaxWarnings,
	}
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now().In(v.location())
	}
	return v.Now().In(v.location())
}

func (v *Validator) location() *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

// ValidatePersonID checks the person identifier after trimming whitespace.
func ValidatePersonID(id string) Verdict {
	id = strings.TrimSpace(id)
	if id == "" {
		return Fail(KindInvalidFormat, "Person ID is required and must be a string")
	}
	n := utf8.RuneCountInString(id)
	if n < MinPersonIDLength {
		return Fail(KindInvalidFormat, "Person ID must be at least 2 characters long")
	}
	if n > MaxPersonIDLength {
		return Fail(KindInvalidFormat, "Person ID must be 50 characters or less")
	}
	if !personIDPattern.MatchString(id) {
		return Fail(KindInvalidFormat, "Person ID can only contain letters, numbers, underscores, and hyphens")
	}
	return Ok("Valid person ID")
}

// ValidateHeartRate checks a heart rate in BPM.
func ValidateHeartRate(v float64) Verdict {
	return checkHeartRate(v, false)
}

// ValidateBloodPressure checks a systolic/diastolic pair in mmHg. A valid pair
// in the low or the high band carries exactly one warning.
func ValidateBloodPressure(systolic, diastolic float64) Verdict {
	return checkBloodPressure(systolic, diastolic, false)
}

// ValidateEnergyLevel checks a subjective energy score.
func ValidateEnergyLevel(v float64) Verdict {
	return checkEnergyLevel(v, false)
}

// ValidateHealthMetrics checks heart rate, blood pressure and energy in that
// order, returning the first failing verdict unchanged. On success the blood
// pressure warning and the cross-field heuristics are merged.
func ValidateHealthMetrics(heartRate, systolic, diastolic, energy float64) Verdict {
	return checkHealthMetrics(heartRate, systolic, diastolic, energy, false)
}

// ValidateNotes accepts nil or a string of at most MaxNotesLength characters.
func ValidateNotes(notes any) Verdict {
	if notes == nil {
		return Ok("Valid notes (empty)")
	}
	s, ok := notes.(string)
	if !ok {
		return Fail(KindTypeError, "Notes must be a string")
	}
	if utf8.RuneCountInString(s) > MaxNotesLength {
		return Fail(KindTooLong, "Notes must be 500 characters or less")
	}
	if s == "" {
		return Ok("Valid notes (empty)")
	}
	return Ok("Valid notes")
}

// ValidateTimestamp accepts a time.Time or a canonical timestamp string and
// checks it lies within [midnight ten calendar years ago, now]. The parsed
// instant is returned on success.
func (v *Validator) ValidateTimestamp(ts any) (time.Time, Verdict) {
	var parsed time.Time
	switch t := ts.(type) {
	case time.Time:
		parsed = t
	case *time.Time:
		if t == nil {
			return time.Time{}, Fail(KindParseError, "Timestamp must be a string or datetime object")
		}
		parsed = *t
	case string:
		p, ok := ParseTimestamp(t, v.location())
		if !ok {
			return time.Time{}, Fail(KindParseError, "Invalid timestamp format. Use YYYY-MM-DD HH:MM:SS or YYYY-MM-DD HH:MM")
		}
		parsed = p
	default:
		return time.Time{}, Fail(KindParseError, "Timestamp must be a string or datetime object")
	}

	now := v.now()
	if parsed.After(now) {
		return time.Time{}, Fail(KindOutOfRange, "Timestamp cannot be in the future")
	}
	if parsed.Before(lookbackBound(now)) {
		return time.Time{}, Fail(KindOutOfRange, "Timestamp cannot be more than 10 years ago")
	}
	return parsed, Ok("Valid timestamp")
}

// lookbackBound returns midnight of the same calendar day LookbackYears
// before now. A Feb 29 with no counterpart clamps to Feb 28.
func lookbackBound(now time.Time) time.Time {
	y, m, d := now.Date()
	y -= LookbackYears
	if m == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// ValidateEntry checks a complete raw entry: required fields first, then
// person id, timestamp, health metrics and notes, stopping at the first
// failure. Warnings from the metrics step are propagated.
func (v *Validator) ValidateEntry(fields Fields) Verdict {
	_, verdict := v.ParseEntry(fields)
	return verdict
}

// ParseEntry validates fields like ValidateEntry and, on success, returns the
// normalized Record: trimmed person id, second-precision timestamp in the
// validator's location, integer metrics and notes defaulted to empty.
func (v *Validator) ParseEntry(fields Fields) (Record, Verdict) {
	for _, col := range RequiredColumns {
		if _, ok := fields[col]; !ok {
			return Record{}, Fail(KindMissingField, "Missing required field: "+col)
		}
	}

	personID, ok := fields[ColPersonID].(string)
	if !ok {
		return Record{}, Fail(KindInvalidFormat, "Person ID is required and must be a string")
	}
	if verdict := ValidatePersonID(personID); !verdict.Valid {
		return Record{}, verdict
	}

	ts, verdict := v.ValidateTimestamp(fields[ColTimestamp])
	if !verdict.Valid {
		return Record{}, verdict
	}

	metrics := checkHealthMetrics(
		fields[ColHeartRate], fields[ColSystolicBP], fields[ColDiastolicBP], fields[ColEnergyLevel], true,
	)
	if !metrics.Valid {
		return Record{}, metrics
	}

	var notes string
	if raw, present := fields[ColNotes]; present {
		if s, ok := raw.(string); ok {
			raw = NormalizeNewlines(s)
		}
		if verdict := ValidateNotes(raw); !verdict.Valid {
			return Record{}, verdict
		}
		notes, _ = raw.(string)
	}

	hr, _ := number(fields[ColHeartRate])
	sys, _ := number(fields[ColSystolicBP])
	dia, _ := number(fields[ColDiastolicBP])
	energy, _ := number(fields[ColEnergyLevel])

	rec := Record{
		PersonID:    strings.TrimSpace(personID),
		Timestamp:   ts.In(v.location()).Truncate(time.Second),
		HeartRate:   int(hr),
		SystolicBP:  int(sys),
		DiastolicBP: int(dia),
		EnergyLevel: int(energy),
		Notes:       notes,
	}
	return rec, Ok("Entry data is valid", metrics.Warnings...)
}

func checkHealthMetrics(hr, sys, dia, energy any, whole bool) Verdict {
	if verdict := checkHeartRate(hr, whole); !verdict.Valid {
		return verdict
	}
	bp := checkBloodPressure(sys, dia, whole)
	if !bp.Valid {
		return bp
	}
	if verdict := checkEnergyLevel(energy, whole); !verdict.Valid {
		return verdict
	}

	hrv, _ := number(hr)
	ev, _ := number(energy)

	var warnings []string
	warnings = append(warnings, bp.Warnings...)
	if ev >= 8 && hrv < 60 {
		warnings = append(warnings, WarnHighEnergyLowHR)
	}
	if ev <= 3 && hrv > 100 {
		warnings = append(warnings, WarnLowEnergyHighHR)
	}
	return Ok("All health metrics are valid", warnings...)
}

func checkHeartRate(raw any, whole bool) Verdict {
	v, ok := number(raw)
	if !ok {
		return Fail(KindOutOfRange, "Heart rate must be a number")
	}
	if whole && !isWhole(v) {
		return Fail(KindOutOfRange, "Heart rate must be a whole number")
	}
	if v < MinHeartRate {
		return Fail(KindOutOfRange, "Heart rate too low (minimum 30 BPM)")
	}
	if v > MaxHeartRate {
		return Fail(KindOutOfRange, "Heart rate too high (maximum 200 BPM)")
	}
	return Ok("Valid heart rate")
}

func checkBloodPressure(rawSys, rawDia any, whole bool) Verdict {
	sys, ok1 := number(rawSys)
	dia, ok2 := number(rawDia)
	if !ok1 || !ok2 {
		return Fail(KindOutOfRange, "Blood pressure values must be numbers")
	}
	if whole && (!isWhole(sys) || !isWhole(dia)) {
		return Fail(KindOutOfRange, "Blood pressure values must be whole numbers")
	}
	switch {
	case sys < MinSystolic:
		return Fail(KindOutOfRange, "Systolic pressure too low (minimum 70 mmHg)")
	case sys > MaxSystolic:
		return Fail(KindOutOfRange, "Systolic pressure too high (maximum 250 mmHg)")
	case dia < MinDiastolic:
		return Fail(KindOutOfRange, "Diastolic pressure too low (minimum 40 mmHg)")
	case dia > MaxDiastolic:
		return Fail(KindOutOfRange, "Diastolic pressure too high (maximum 150 mmHg)")
	case dia >= sys:
		return Fail(KindOutOfRange, "Diastolic pressure must be lower than systolic pressure")
	}

	if sys < 90 && dia < 60 {
		return Ok("Valid blood pressure (low normal)", WarnLowBloodPressure)
	}
	if sys >= 140 || dia >= 90 {
		return Ok("Valid blood pressure (high)", WarnHighBloodPressure)
	}
	return Ok("Valid blood pressure")
}

func checkEnergyLevel(raw any, whole bool) Verdict {
	v, ok := number(raw)
	if !ok {
		return Fail(KindOutOfRange, "Energy level must be a number")
	}
	if whole && !isWhole(v) {
		return Fail(KindOutOfRange, "Energy level must be a whole number")
	}
	if v < MinEnergyLevel {
		return Fail(KindOutOfRange, "Energy level must be at least 1")
	}
	if v > MaxEnergyLevel {
		return Fail(KindOutOfRange, "Energy level must be at most 10")
	}
	return Ok("Valid energy level")
}

// number extracts a finite float from the numeric Go types a boundary layer
// may hand over. Strings are not numbers; imported rows are coerced first.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isWhole(f float64) bool {
	return f == math.Trunc(f)
}

// describe renders a raw value for error messages.
func describe(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

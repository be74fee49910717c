package core

// convert.go turns raw cell text into typed values.
//
// Two timestamp grammars exist:
//   - the canonical grammar accepted for single entries and written to disk
//     (YYYY-MM-DD HH:MM:SS, or YYYY-MM-DD HH:MM)
//   - a lenient grammar used only to coerce imported rows, which also admits
//     ISO-8601 "T" separators, RFC 3339 offsets, bare dates and US dates
//
// Numbers tolerate surrounding whitespace and spreadsheet artifacts.

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the on-disk timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the format of date-only bounds in queries.
const DateLayout = "2006-01-02"

// canonicalLayouts are the textual timestamp formats accepted by ValidateTimestamp.
var canonicalLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04",
}

// importLayouts are tried in order when coercing imported rows.
var importLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	DateLayout,
	"1/2/2006",
}

// MaxSanitizedLength is the cap applied by SanitizeInput.
const MaxSanitizedLength = 1000

// FormatTimestamp renders t in the canonical on-disk format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses s using the canonical layouts, interpreting it in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	return parseWithLayouts(strings.TrimSpace(s), canonicalLayouts, loc)
}

// ParseImportTimestamp parses s using the lenient import grammar. Values
// carrying an explicit offset are converted into loc.
func ParseImportTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	return parseWithLayouts(s, importLayouts, loc)
}

func parseWithLayouts(s string, layouts []string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell. Thousands separators and a trailing
// ".0" written by spreadsheets are accepted; NaN and infinities are not.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(CleanCell(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate parses a YYYY-MM-DD bound in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	return parseWithLayouts(strings.TrimSpace(s), []string{DateLayout}, loc)
}

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// Cell returns the raw cell for column, and whether the column exists in the row.
func (h HeaderIndex) Cell(row []string, column string) (string, bool) {
	pos, ok := h[column]
	if !ok || pos >= len(row) {
		return "", false
	}
	return row[pos], true
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - surrounding whitespace
//   - an Excel formula prefix (="...")
//   - surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// NormalizeNewlines rewrites CRLF and lone CR line endings as LF, the form
// encoding/csv reads back from a quoted field.
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// SanitizeInput trims s, removes NUL bytes and truncates it to
// MaxSanitizedLength runes. The second result reports truncation.
func SanitizeInput(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.RuneCountInString(s) <= MaxSanitizedLength {
		return s, false
	}
	return string([]rune(s)[:MaxSanitizedLength]), true
}

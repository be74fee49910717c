package core

// input.go turns an uploaded CSV into a Table.
//
// Uploads are small enough to hold in memory, so the whole body is read
// (bounded by the import limit) and then cleaned:
//
//   - a UTF-8 BOM written by Windows tools is removed
//   - invalid UTF-8 sequences are replaced with U+FFFD
//   - rows whose cells are all blank are dropped
//
// Quoting is lenient and rows may have a different width than the header;
// missing cells read as empty.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultMaxImportSize is used when ReadImport is given no limit.
const DefaultMaxImportSize = 10 << 20

// ErrFileTooLarge is returned when an upload exceeds the import limit.
var ErrFileTooLarge = errors.New("file too large")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadImport reads at most limit bytes from r and parses them as CSV.
func ReadImport(r io.Reader, limit int64) (Table, error) {
	if limit <= 0 {
		limit = DefaultMaxImportSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Table{}, fmt.Errorf("read import: %w", err)
	}
	if int64(len(data)) > limit {
		return Table{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}

	return ParseCSV(data)
}

// ParseCSV parses data into a header and data rows. A file with no header
// returns an EmptyInput error.
func ParseCSV(data []byte) (Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var t Table
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("invalid csv: %w", err)
		}
		if isEmptyRow(record) {
			continue
		}
		if t.Header == nil {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}

	if t.Header == nil {
		return Table{}, &Error{Kind: KindEmptyInput, Message: "No data found in CSV"}
	}
	return t, nil
}

func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

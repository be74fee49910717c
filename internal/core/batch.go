package core

// batch.go validates imported tables.
//
// Validation happens at two levels:
//  1. Header validation: every required column must be present.
//  2. Row validation: each row is coerced to typed Fields and run through
//     ParseEntry. Rows are independent; one failure never stops the batch.
//
// Messages are capped for display but the totals are always exact.

import (
	"fmt"
	"strings"
)

// ParseTable validates every row of t and returns the records of the rows that
// passed, in table order, together with the batch verdict.
func (v *Validator) ParseTable(t Table) ([]Record, BatchVerdict) {
	idx, missing := checkHeader(t.Header)
	if len(missing) > 0 {
		return nil, BatchVerdict{
			Kind:    KindMissingColumns,
			Message: "Missing required columns: " + strings.Join(missing, ", "),
		}
	}
	if len(t.Rows) == 0 {
		return nil, BatchVerdict{
			Kind:    KindEmptyInput,
			Message: "No data found in CSV",
		}
	}

	maxErrors := v.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	maxWarnings := v.MaxWarnings
	if maxWarnings <= 0 {
		maxWarnings = DefaultMaxWarnings
	}

	result := BatchVerdict{Rows: len(t.Rows)}
	records := make([]Record, 0, len(t.Rows))

	for i, row := range t.Rows {
		rowNum := i + 1

		fields, err := v.CoerceRow(idx, row)
		if err != nil {
			if result.TotalErrors == 0 {
				result.Kind = KindParseError
			}
			result.TotalErrors++
			if len(result.Errors) < maxErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Error validating data - %v", rowNum, err))
			}
			continue
		}

		rec, verdict := v.ParseEntry(fields)
		if !verdict.Valid {
			if result.TotalErrors == 0 {
				result.Kind = verdict.Kind
			}
			result.TotalErrors++
			if len(result.Errors) < maxErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, verdict.Message))
			}
			continue
		}

		for _, w := range verdict.Warnings {
			result.TotalWarnings++
			if len(result.Warnings) < maxWarnings {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: %s", rowNum, w))
			}
		}
		records = append(records, rec)
	}

	if result.TotalErrors > 0 {
		result.Message = fmt.Sprintf("Validation failed with %d errors", result.TotalErrors)
		result.Warnings = nil
		result.TotalWarnings = 0
		return records, result
	}

	result.Valid = true
	result.Message = fmt.Sprintf("CSV data is valid (%d rows)", len(t.Rows))
	return records, result
}

// ValidateTable validates every row of t. See ParseTable.
func (v *Validator) ValidateTable(t Table) BatchVerdict {
	_, verdict := v.ParseTable(t)
	return verdict
}

// CoerceRow converts one raw imported row to Fields: the timestamp is parsed
// with the lenient import grammar and numeric columns are parsed as numbers.
// A missing notes column yields empty notes.
func (v *Validator) CoerceRow(idx HeaderIndex, row []string) (Fields, error) {
	fields := make(Fields, len(Columns))

	raw, _ := idx.Cell(row, ColPersonID)
	fields[ColPersonID] = CleanCell(raw)

	raw, _ = idx.Cell(row, ColTimestamp)
	ts, ok := ParseImportTimestamp(CleanCell(raw), v.location())
	if !ok {
		return nil, fmt.Errorf("invalid timestamp %s", describe(raw))
	}
	fields[ColTimestamp] = ts

	for _, col := range []string{ColHeartRate, ColSystolicBP, ColDiastolicBP, ColEnergyLevel} {
		raw, _ := idx.Cell(row, col)
		n, ok := ParseNumber(raw)
		if !ok {
			return nil, fmt.Errorf("invalid number for %s: %s", col, describe(raw))
		}
		fields[col] = n
	}

	notes, _ := idx.Cell(row, ColNotes)
	fields[ColNotes] = strings.TrimSpace(notes)

	return fields, nil
}

// checkHeader indexes header and lists the required columns it lacks.
func checkHeader(header []string) (HeaderIndex, []string) {
	idx := MakeHeaderIndex(header)
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return idx, missing
}

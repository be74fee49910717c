package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testValidator() *Validator {
	return &Validator{
		Now:      func() time.Time { return testNow },
		Location: time.UTC,
	}
}

func validFields() Fields {
	return Fields{
		ColPersonID:    "john_doe",
		ColTimestamp:   "2024-01-01 08:00:00",
		ColHeartRate:   70,
		ColSystolicBP:  120,
		ColDiastolicBP: 80,
		ColEnergyLevel: 5,
	}
}

// ----------------------------------------------------------------------------
// Person ID
// ----------------------------------------------------------------------------

func TestValidatePersonID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantValid bool
		wantMsg   string
	}{
		{name: "simple", id: "john_doe", wantValid: true},
		{name: "hyphen and digits", id: "user-42", wantValid: true},
		{name: "minimum length", id: "ab", wantValid: true},
		{name: "maximum length", id: strings.Repeat("a", 50), wantValid: true},
		{name: "surrounding spaces trimmed", id: "  jd  ", wantValid: true},
		{name: "empty", id: "", wantMsg: "Person ID is required and must be a string"},
		{name: "whitespace only", id: "   ", wantMsg: "Person ID is required and must be a string"},
		{name: "too short", id: "a", wantMsg: "Person ID must be at least 2 characters long"},
		{name: "too long", id: strings.Repeat("a", 51), wantMsg: "Person ID must be 50 characters or less"},
		{name: "space inside", id: "john doe", wantMsg: "Person ID can only contain letters, numbers, underscores, and hyphens"},
		{name: "punctuation", id: "john.doe", wantMsg: "Person ID can only contain letters, numbers, underscores, and hyphens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePersonID(tt.id)
			if got.Valid != tt.wantValid {
				t.Fatalf("ValidatePersonID(%q).Valid = %v, want %v (%s)", tt.id, got.Valid, tt.wantValid, got.Message)
			}
			if !tt.wantValid {
				if got.Kind != KindInvalidFormat {
					t.Errorf("Kind = %s, want %s", got.Kind, KindInvalidFormat)
				}
				if got.Message != tt.wantMsg {
					t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
				}
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Metrics
// ----------------------------------------------------------------------------

func TestValidateHeartRate(t *testing.T) {
	tests := []struct {
		value     float64
		wantValid bool
	}{
		{29, false},
		{30, true},
		{70, true},
		{200, true},
		{201, false},
		{999, false},
	}

	for _, tt := range tests {
		got := ValidateHeartRate(tt.value)
		if got.Valid != tt.wantValid {
			t.Errorf("ValidateHeartRate(%v).Valid = %v, want %v", tt.value, got.Valid, tt.wantValid)
		}
		if !got.Valid && got.Kind != KindOutOfRange {
			t.Errorf("ValidateHeartRate(%v).Kind = %s, want OutOfRange", tt.value, got.Kind)
		}
	}
}

func TestValidateBloodPressure(t *testing.T) {
	tests := []struct {
		name        string
		sys, dia    float64
		wantValid   bool
		wantMsg     string
		wantWarning string
	}{
		{name: "normal", sys: 120, dia: 80, wantValid: true},
		{name: "bounds inclusive", sys: 250, dia: 150, wantValid: true, wantWarning: WarnHighBloodPressure},
		{name: "low band", sys: 85, dia: 55, wantValid: true, wantWarning: WarnLowBloodPressure},
		{name: "low systolic only is not low band", sys: 85, dia: 60, wantValid: true},
		{name: "high systolic", sys: 140, dia: 70, wantValid: true, wantWarning: WarnHighBloodPressure},
		{name: "high diastolic", sys: 130, dia: 90, wantValid: true, wantWarning: WarnHighBloodPressure},
		{name: "minimums", sys: 70, dia: 40, wantValid: true, wantWarning: WarnLowBloodPressure},
		{name: "systolic too low", sys: 69, dia: 40, wantMsg: "Systolic pressure too low (minimum 70 mmHg)"},
		{name: "systolic too high", sys: 251, dia: 80, wantMsg: "Systolic pressure too high (maximum 250 mmHg)"},
		{name: "diastolic too low", sys: 120, dia: 39, wantMsg: "Diastolic pressure too low (minimum 40 mmHg)"},
		{name: "diastolic too high", sys: 200, dia: 151, wantMsg: "Diastolic pressure too high (maximum 150 mmHg)"},
		{name: "diastolic above systolic", sys: 120, dia: 125, wantMsg: "Diastolic pressure must be lower than systolic pressure"},
		{name: "diastolic equals systolic", sys: 100, dia: 100, wantMsg: "Diastolic pressure must be lower than systolic pressure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateBloodPressure(tt.sys, tt.dia)
			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (%s)", got.Valid, tt.wantValid, got.Message)
			}
			if !tt.wantValid {
				if got.Message != tt.wantMsg {
					t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
				}
				if len(got.Warnings) != 0 {
					t.Errorf("failed verdict carries warnings: %v", got.Warnings)
				}
				return
			}
			if tt.wantWarning == "" {
				if len(got.Warnings) != 0 {
					t.Errorf("Warnings = %v, want none", got.Warnings)
				}
				return
			}
			if len(got.Warnings) != 1 || got.Warnings[0] != tt.wantWarning {
				t.Errorf("Warnings = %v, want [%s]", got.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestValidateEnergyLevel(t *testing.T) {
	for _, v := range []float64{1, 5, 10} {
		if got := ValidateEnergyLevel(v); !got.Valid {
			t.Errorf("ValidateEnergyLevel(%v) invalid: %s", v, got.Message)
		}
	}
	for _, v := range []float64{0, 11, -3} {
		if got := ValidateEnergyLevel(v); got.Valid || got.Kind != KindOutOfRange {
			t.Errorf("ValidateEnergyLevel(%v) = %+v, want OutOfRange", v, got)
		}
	}
}

func TestValidateHealthMetrics(t *testing.T) {
	t.Run("high energy low heart rate warns", func(t *testing.T) {
		got := ValidateHealthMetrics(55, 120, 80, 9)
		if !got.Valid {
			t.Fatalf("invalid: %s", got.Message)
		}
		if !containsString(got.Warnings, WarnHighEnergyLowHR) {
			t.Errorf("Warnings = %v, want %q", got.Warnings, WarnHighEnergyLowHR)
		}
	})

	t.Run("low energy high heart rate warns", func(t *testing.T) {
		got := ValidateHealthMetrics(110, 120, 80, 2)
		if !got.Valid || !containsString(got.Warnings, WarnLowEnergyHighHR) {
			t.Errorf("got %+v, want valid with %q", got, WarnLowEnergyHighHR)
		}
	})

	t.Run("blood pressure warning merged first", func(t *testing.T) {
		got := ValidateHealthMetrics(55, 150, 95, 9)
		want := []string{WarnHighBloodPressure, WarnHighEnergyLowHR}
		if !equalStrings(got.Warnings, want) {
			t.Errorf("Warnings = %v, want %v", got.Warnings, want)
		}
	})

	t.Run("short circuits on heart rate", func(t *testing.T) {
		got := ValidateHealthMetrics(999, 120, 125, 50)
		if got.Valid || got.Message != "Heart rate too high (maximum 200 BPM)" {
			t.Errorf("got %+v, want heart rate failure", got)
		}
	})

	t.Run("blood pressure before energy", func(t *testing.T) {
		got := ValidateHealthMetrics(70, 120, 125, 50)
		if got.Valid || got.Message != "Diastolic pressure must be lower than systolic pressure" {
			t.Errorf("got %+v, want blood pressure failure", got)
		}
	})

	t.Run("plain readings have no warnings", func(t *testing.T) {
		got := ValidateHealthMetrics(70, 120, 80, 5)
		if !got.Valid || len(got.Warnings) != 0 {
			t.Errorf("got %+v, want valid without warnings", got)
		}
	})
}

// ----------------------------------------------------------------------------
// Notes
// ----------------------------------------------------------------------------

func TestValidateNotes(t *testing.T) {
	tests := []struct {
		name     string
		notes    any
		wantKind ErrorKind
	}{
		{name: "nil", notes: nil},
		{name: "empty", notes: ""},
		{name: "text", notes: "after coffee"},
		{name: "500 runes", notes: strings.Repeat("é", 500)},
		{name: "501 chars", notes: strings.Repeat("a", 501), wantKind: KindTooLong},
		{name: "number", notes: 42, wantKind: KindTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateNotes(tt.notes)
			if tt.wantKind == "" {
				if !got.Valid {
					t.Errorf("invalid: %s", got.Message)
				}
				return
			}
			if got.Valid || got.Kind != tt.wantKind {
				t.Errorf("got %+v, want kind %s", got, tt.wantKind)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Timestamp
// ----------------------------------------------------------------------------

func TestValidateTimestamp(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name     string
		input    any
		wantKind ErrorKind
		want     time.Time
	}{
		{
			name:  "canonical string",
			input: "2024-01-01 08:00:00",
			want:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "minute precision string",
			input: "2024-01-01 08:30",
			want:  time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "time value",
			input: time.Date(2020, 3, 1, 7, 0, 0, 0, time.UTC),
			want:  time.Date(2020, 3, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly now",
			input: testNow,
			want:  testNow,
		},
		{
			name:     "one second in the future",
			input:    testNow.Add(time.Second),
			wantKind: KindOutOfRange,
		},
		{
			name:  "exactly the lookback bound",
			input: "2014-06-15 00:00:00",
			want:  time.Date(2014, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "one second before the lookback bound",
			input:    "2014-06-14 23:59:59",
			wantKind: KindOutOfRange,
		},
		{
			name:     "ISO T separator rejected",
			input:    "2024-01-01T08:00:00",
			wantKind: KindParseError,
		},
		{
			name:     "garbage",
			input:    "yesterday",
			wantKind: KindParseError,
		},
		{
			name:     "wrong type",
			input:    20240101,
			wantKind: KindParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, verdict := v.ValidateTimestamp(tt.input)
			if tt.wantKind != "" {
				if verdict.Valid || verdict.Kind != tt.wantKind {
					t.Errorf("verdict = %+v, want kind %s", verdict, tt.wantKind)
				}
				return
			}
			if !verdict.Valid {
				t.Fatalf("invalid: %s", verdict.Message)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parsed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookbackBoundLeapDay(t *testing.T) {
	now := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	want := time.Date(2014, 2, 28, 0, 0, 0, 0, time.UTC)
	if got := lookbackBound(now); !got.Equal(want) {
		t.Errorf("lookbackBound(%v) = %v, want %v", now, got, want)
	}

	// A leap year ten years back keeps Feb 29.
	now = time.Date(2030, 2, 28, 9, 0, 0, 0, time.UTC)
	want = time.Date(2020, 2, 28, 0, 0, 0, 0, time.UTC)
	if got := lookbackBound(now); !got.Equal(want) {
		t.Errorf("lookbackBound(%v) = %v, want %v", now, got, want)
	}

	v := &Validator{Now: func() time.Time { return time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC) }, Location: time.UTC}
	if _, verdict := v.ValidateTimestamp("2014-02-28 00:00:00"); !verdict.Valid {
		t.Errorf("bound on leap day rejected: %s", verdict.Message)
	}
	if _, verdict := v.ValidateTimestamp("2014-02-27 23:59:59"); verdict.Valid {
		t.Error("timestamp before leap day bound accepted")
	}
}

// ----------------------------------------------------------------------------
// Entries
// ----------------------------------------------------------------------------

func TestParseEntry(t *testing.T) {
	v := testValidator()

	t.Run("valid entry normalizes", func(t *testing.T) {
		f := validFields()
		f[ColPersonID] = "  john_doe "
		f[ColNotes] = "morning"
		rec, verdict := v.ParseEntry(f)
		if !verdict.Valid {
			t.Fatalf("invalid: %s", verdict.Message)
		}
		if verdict.Message != "Entry data is valid" {
			t.Errorf("Message = %q", verdict.Message)
		}
		want := Record{
			PersonID:    "john_doe",
			Timestamp:   time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			HeartRate:   70,
			SystolicBP:  120,
			DiastolicBP: 80,
			EnergyLevel: 5,
			Notes:       "morning",
		}
		if rec != want {
			t.Errorf("record = %+v, want %+v", rec, want)
		}
	})

	t.Run("sub-second precision truncated", func(t *testing.T) {
		f := validFields()
		f[ColTimestamp] = time.Date(2024, 1, 1, 8, 0, 0, 999_000_000, time.UTC)
		rec, verdict := v.ParseEntry(f)
		if !verdict.Valid {
			t.Fatalf("invalid: %s", verdict.Message)
		}
		if rec.Timestamp.Nanosecond() != 0 {
			t.Errorf("timestamp not truncated: %v", rec.Timestamp)
		}
	})

	t.Run("notes line endings normalized", func(t *testing.T) {
		f := validFields()
		f[ColNotes] = "line one\r\nline two\rthree"
		rec, verdict := v.ParseEntry(f)
		if !verdict.Valid {
			t.Fatalf("invalid: %s", verdict.Message)
		}
		if rec.Notes != "line one\nline two\nthree" {
			t.Errorf("Notes = %q", rec.Notes)
		}
	})

	t.Run("json numbers accepted", func(t *testing.T) {
		f := validFields()
		f[ColHeartRate] = json.Number("72")
		f[ColEnergyLevel] = 6.0
		rec, verdict := v.ParseEntry(f)
		if !verdict.Valid || rec.HeartRate != 72 || rec.EnergyLevel != 6 {
			t.Errorf("got %+v / %+v", rec, verdict)
		}
	})

	t.Run("warnings propagated", func(t *testing.T) {
		f := validFields()
		f[ColHeartRate] = 55
		f[ColEnergyLevel] = 9
		_, verdict := v.ParseEntry(f)
		if !verdict.Valid || !containsString(verdict.Warnings, WarnHighEnergyLowHR) {
			t.Errorf("verdict = %+v", verdict)
		}
	})
}

func TestValidateEntryFailures(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name     string
		mutate   func(Fields)
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "missing heart rate",
			mutate:   func(f Fields) { delete(f, ColHeartRate) },
			wantKind: KindMissingField,
			wantMsg:  "Missing required field: heart_rate",
		},
		{
			name:     "missing fields reported in column order",
			mutate:   func(f Fields) { delete(f, ColEnergyLevel); delete(f, ColPersonID) },
			wantKind: KindMissingField,
			wantMsg:  "Missing required field: person_id",
		},
		{
			name:     "non-string person id",
			mutate:   func(f Fields) { f[ColPersonID] = 12 },
			wantKind: KindInvalidFormat,
		},
		{
			name:     "person id checked before timestamp",
			mutate:   func(f Fields) { f[ColPersonID] = "x"; f[ColTimestamp] = "bad" },
			wantKind: KindInvalidFormat,
		},
		{
			name:     "bad timestamp",
			mutate:   func(f Fields) { f[ColTimestamp] = "01/02/2024" },
			wantKind: KindParseError,
		},
		{
			name:     "future timestamp",
			mutate:   func(f Fields) { f[ColTimestamp] = "2030-01-01 00:00:00" },
			wantKind: KindOutOfRange,
			wantMsg:  "Timestamp cannot be in the future",
		},
		{
			name:     "string heart rate",
			mutate:   func(f Fields) { f[ColHeartRate] = "70" },
			wantKind: KindOutOfRange,
			wantMsg:  "Heart rate must be a number",
		},
		{
			name:     "fractional heart rate",
			mutate:   func(f Fields) { f[ColHeartRate] = 70.5 },
			wantKind: KindOutOfRange,
			wantMsg:  "Heart rate must be a whole number",
		},
		{
			name:     "energy out of range",
			mutate:   func(f Fields) { f[ColEnergyLevel] = 11 },
			wantKind: KindOutOfRange,
			wantMsg:  "Energy level must be at most 10",
		},
		{
			name:     "notes too long",
			mutate:   func(f Fields) { f[ColNotes] = strings.Repeat("n", 501) },
			wantKind: KindTooLong,
		},
		{
			name:     "notes wrong type",
			mutate:   func(f Fields) { f[ColNotes] = []string{"a"} },
			wantKind: KindTypeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(f)
			got := v.ValidateEntry(f)
			if got.Valid {
				t.Fatal("expected invalid verdict")
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s (%s)", got.Kind, tt.wantKind, got.Message)
			}
			if tt.wantMsg != "" && got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if len(got.Warnings) != 0 {
				t.Errorf("failed verdict carries warnings: %v", got.Warnings)
			}
		})
	}
}

func TestVerdictErr(t *testing.T) {
	if err := Ok("fine").Err(); err != nil {
		t.Errorf("Ok().Err() = %v, want nil", err)
	}
	err := Fail(KindOutOfRange, "too high").Err()
	if KindOf(err) != KindOutOfRange {
		t.Errorf("KindOf = %s, want OutOfRange", KindOf(err))
	}
	if err.Error() != "too high" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

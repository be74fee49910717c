package store

import (
	"bytes"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/circadian/internal/core"
)

// DateRange bounds records by the calendar date of their timestamp. Both ends
// are inclusive; a zero end is unbounded. Only the date part of Start and End
// is used.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Contains reports whether t falls on a date within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := dateKey(t)
	if !r.Start.IsZero() && day < dateKey(r.Start) {
		return false
	}
	if !r.End.IsZero() && day > dateKey(r.End) {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both ends.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Filter selects records for Query. Zero fields do not filter.
type Filter struct {
	PersonID string
	Range    DateRange

	MinHeartRate, MaxHeartRate int
	MinEnergy, MaxEnergy       int

	// Search matches person ids and notes, case-insensitively.
	Search string
}

// Match reports whether r passes every set condition.
func (f Filter) Match(r core.Record) bool {
	if f.PersonID != "" && r.PersonID != f.PersonID {
		return false
	}
	if !f.Range.Contains(r.Timestamp) {
		return false
	}
	if f.MinHeartRate > 0 && r.HeartRate < f.MinHeartRate {
		return false
	}
	if f.MaxHeartRate > 0 && r.HeartRate > f.MaxHeartRate {
		return false
	}
	if f.MinEnergy > 0 && r.EnergyLevel < f.MinEnergy {
		return false
	}
	if f.MaxEnergy > 0 && r.EnergyLevel > f.MaxEnergy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.PersonID), q) && !strings.Contains(strings.ToLower(r.Notes), q) {
			return false
		}
	}
	return true
}

// Load returns the whole table, or an empty dataset if it cannot be read.
func (s *Store) Load() Dataset {
	data, err := s.Read()
	if err != nil {
		s.logFailure("load data", err)
		return Dataset{}
	}
	return data
}

// Query returns the records matching f, in file order.
func (s *Store) Query(f Filter) Dataset {
	out := Dataset{}
	for _, r := range s.Load() {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// GetPersonData returns the records of personID within rng, sorted by
// timestamp. Records with equal timestamps keep file order.
func (s *Store) GetPersonData(personID string, rng DateRange) Dataset {
	out := s.Query(Filter{PersonID: personID, Range: rng})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Persons returns the distinct person ids, sorted.
func (s *Store) Persons() []string {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, r := range s.Load() {
		if _, ok := seen[r.PersonID]; ok {
			continue
		}
		seen[r.PersonID] = struct{}{}
		ids = append(ids, r.PersonID)
	}
	sort.Strings(ids)
	return ids
}

// MetricStats describes one numeric column. Std is the sample standard
// deviation and is 0 when fewer than two values exist.
type MetricStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summary aggregates a set of records. The zero value means no records.
type Summary struct {
	TotalEntries int         `json:"total_entries"`
	FirstEntry   time.Time   `json:"first_entry"`
	LastEntry    time.Time   `json:"last_entry"`
	HeartRate    MetricStats `json:"heart_rate"`
	SystolicBP   MetricStats `json:"systolic_bp"`
	DiastolicBP  MetricStats `json:"diastolic_bp"`
	EnergyLevel  MetricStats `json:"energy_level"`
	Persons      int         `json:"unique_people"`
}

// Empty reports whether the summary covers no records.
func (s Summary) Empty() bool {
	return s.TotalEntries == 0
}

// GetSummaryStats summarizes the whole table, or only personID's records
// when personID is not empty.
func (s *Store) GetSummaryStats(personID string) Summary {
	return Summarize(s.Query(Filter{PersonID: personID}), personID != "")
}

// Summarize aggregates data. singlePerson forces the person count to 1.
func Summarize(data Dataset, singlePerson bool) Summary {
	if len(data) == 0 {
		return Summary{}
	}

	sum := Summary{
		TotalEntries: len(data),
		FirstEntry:   data[0].Timestamp,
		LastEntry:    data[0].Timestamp,
	}

	hr := make([]float64, len(data))
	sys := make([]float64, len(data))
	dia := make([]float64, len(data))
	energy := make([]float64, len(data))
	persons := make(map[string]struct{})

	for i, r := range data {
		if r.Timestamp.Before(sum.FirstEntry) {
			sum.FirstEntry = r.Timestamp
		}
		if r.Timestamp.After(sum.LastEntry) {
			sum.LastEntry = r.Timestamp
		}
		hr[i] = float64(r.HeartRate)
		sys[i] = float64(r.SystolicBP)
		dia[i] = float64(r.DiastolicBP)
		energy[i] = float64(r.EnergyLevel)
		persons[r.PersonID] = struct{}{}
	}

	sum.HeartRate = describe(hr)
	sum.SystolicBP = describe(sys)
	sum.DiastolicBP = describe(dia)
	sum.EnergyLevel = describe(energy)
	sum.Persons = len(persons)
	if singlePerson {
		sum.Persons = 1
	}
	return sum
}

func describe(values []float64) MetricStats {
	st := MetricStats{Min: values[0], Max: values[0]}

	var total float64
	for _, v := range values {
		total += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	n := float64(len(values))
	st.Mean = total / n

	if len(values) > 1 {
		var ss float64
		for _, v := range values {
			d := v - st.Mean
			ss += d * d
		}
		st.Std = math.Sqrt(ss / (n - 1))
	}
	return st
}

// ExportData renders records as CSV text with a header row. With a person id
// the export is ordered as GetPersonData; otherwise file order is kept.
// It returns "" if the table cannot be read or rendered.
func (s *Store) ExportData(personID string, rng DateRange) string {
	var data Dataset
	if personID != "" {
		data = s.GetPersonData(personID, rng)
	} else {
		data = s.Query(Filter{Range: rng})
	}

	text, err := Render(data)
	if err != nil {
		s.logFailure("export data", err)
		return ""
	}
	return text
}

// Render formats data in the data file format.
func Render(data Dataset) (string, error) {
	var buf bytes.Buffer
	if err := encode(&buf, data); err != nil {
		return "", ioError("render csv", err)
	}
	return buf.String(), nil
}

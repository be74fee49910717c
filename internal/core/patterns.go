package core

// patterns.go computes the circadian views over a set of records: means by
// hour of day and by weekday, pairwise metric correlation, the hours at which
// energy peaks, and simple dataset insights.
//
// All functions are pure and accept records in any order.

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Metrics lists the numeric columns in display order.
var Metrics = []string{ColHeartRate, ColSystolicBP, ColDiastolicBP, ColEnergyLevel}

// MetricMeans holds the mean of each metric over a bucket.
type MetricMeans struct {
	Count       int     `json:"count"`
	HeartRate   float64 `json:"heart_rate"`
	SystolicBP  float64 `json:"systolic_bp"`
	DiastolicBP float64 `json:"diastolic_bp"`
	EnergyLevel float64 `json:"energy_level"`
}

// HourBucket is the mean of each metric for one hour of the day.
type HourBucket struct {
	Hour int `json:"hour"`
	MetricMeans
}

// WeekdayBucket is the mean of each metric for one day of the week.
type WeekdayBucket struct {
	Day string `json:"day"`
	MetricMeans
}

// weekOrder starts the week on Monday.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

type accumulator struct {
	n int

	hr, sys, dia, energy float64
}

func (a *accumulator) add(r Record) {
	a.n++
	a.hr += float64(r.HeartRate)
	a.sys += float64(r.SystolicBP)
	a.dia += float64(r.DiastolicBP)
	a.energy += float64(r.EnergyLevel)
}

func (a *accumulator) means() MetricMeans {
	n := float64(a.n)
	return MetricMeans{
		Count:       a.n,
		HeartRate:   a.hr / n,
		SystolicBP:  a.sys / n,
		DiastolicBP: a.dia / n,
		EnergyLevel: a.energy / n,
	}
}

// HourlyPattern averages each metric by hour of day (0-23). Only hours with
// at least one record are returned, in ascending order.
func HourlyPattern(records []Record) []HourBucket {
	var acc [24]accumulator
	for _, r := range records {
		acc[r.Timestamp.Hour()].add(r)
	}

	var out []HourBucket
	for hour := range acc {
		if acc[hour].n == 0 {
			continue
		}
		out = append(out, HourBucket{Hour: hour, MetricMeans: acc[hour].means()})
	}
	return out
}

// WeekdayPattern averages each metric by day of week. Only days with at least
// one record are returned, ordered Monday through Sunday.
func WeekdayPattern(records []Record) []WeekdayBucket {
	var acc [7]accumulator
	for _, r := range records {
		acc[r.Timestamp.Weekday()].add(r)
	}

	var out []WeekdayBucket
	for _, day := range weekOrder {
		if acc[day].n == 0 {
			continue
		}
		out = append(out, WeekdayBucket{Day: day.String(), MetricMeans: acc[day].means()})
	}
	return out
}

// CorrelationMatrix holds Pearson coefficients between Metrics.
// Values[i][j] is the correlation of Metrics[i] with Metrics[j]. A pair with
// fewer than two records, or with a constant metric, is undefined and reported
// as nil.
type CorrelationMatrix struct {
	Metrics []string     `json:"metrics"`
	Values  [][]*float64 `json:"values"`
}

// Correlations computes the Pearson correlation matrix of the four metrics.
func Correlations(records []Record) CorrelationMatrix {
	series := make([][]float64, len(Metrics))
	for i := range series {
		series[i] = make([]float64, len(records))
	}
	for n, r := range records {
		series[0][n] = float64(r.HeartRate)
		series[1][n] = float64(r.SystolicBP)
		series[2][n] = float64(r.DiastolicBP)
		series[3][n] = float64(r.EnergyLevel)
	}

	m := CorrelationMatrix{
		Metrics: append([]string(nil), Metrics...),
		Values:  make([][]*float64, len(Metrics)),
	}
	for i := range Metrics {
		m.Values[i] = make([]*float64, len(Metrics))
		for j := range Metrics {
			if c, ok := pearson(series[i], series[j]); ok {
				m.Values[i][j] = &c
			}
		}
	}
	return m
}

func pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, false
	}

	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}

	c := sxy / math.Sqrt(sxx*syy)
	// Clamp rounding noise.
	return math.Max(-1, math.Min(1, c)), true
}

// PeakEnergyHours returns the distinct hours, ascending, at which the highest
// recorded energy level occurs.
func PeakEnergyHours(records []Record) []int {
	if len(records) == 0 {
		return nil
	}

	peak := records[0].EnergyLevel
	for _, r := range records[1:] {
		if r.EnergyLevel > peak {
			peak = r.EnergyLevel
		}
	}

	var seen [24]bool
	for _, r := range records {
		if r.EnergyLevel == peak {
			seen[r.Timestamp.Hour()] = true
		}
	}

	var hours []int
	for h, ok := range seen {
		if ok {
			hours = append(hours, h)
		}
	}
	return hours
}

// PersonCount is the number of entries recorded for one person.
type PersonCount struct {
	PersonID string `json:"person_id"`
	Entries  int    `json:"entries"`
}

// DefaultTopPersons is the number of persons listed by Insights.
const DefaultTopPersons = 5

// Insights summarizes activity in a set of records.
type Insights struct {
	TotalEntries    int           `json:"total_entries"`
	MostActive      []PersonCount `json:"most_active"`
	EntriesWithNote int           `json:"entries_with_notes"`
	NotesCoverage   float64       `json:"notes_coverage_pct"`
}

// BuildInsights ranks persons by entry count (ties broken by id) keeping the
// top n, and measures how many entries carry non-blank notes.
func BuildInsights(records []Record, n int) Insights {
	if n <= 0 {
		n = DefaultTopPersons
	}

	counts := make(map[string]int)
	withNotes := 0
	for _, r := range records {
		counts[r.PersonID]++
		if strings.TrimSpace(r.Notes) != "" {
			withNotes++
		}
	}

	ranked := make([]PersonCount, 0, len(counts))
	for id, c := range counts {
		ranked = append(ranked, PersonCount{PersonID: id, Entries: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Entries != ranked[j].Entries {
			return ranked[i].Entries > ranked[j].Entries
		}
		return ranked[i].PersonID < ranked[j].PersonID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	in := Insights{
		TotalEntries:    len(records),
		MostActive:      ranked,
		EntriesWithNote: withNotes,
	}
	if len(records) > 0 {
		in.NotesCoverage = float64(withNotes) / float64(len(records)) * 100
	}
	return in
}

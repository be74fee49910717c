package service

import (
	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/store"
)

// Entries returns the records matching f in file order.
func (s *Service) Entries(f store.Filter) store.Dataset {
	return s.store.Query(f)
}

// PersonEntries returns one person's records in timestamp order.
func (s *Service) PersonEntries(personID string, rng store.DateRange) store.Dataset {
	return s.store.GetPersonData(personID, rng)
}

// Persons lists the distinct person ids.
func (s *Service) Persons() []string {
	return s.store.Persons()
}

// Stats summarizes the whole table or one person.
func (s *Service) Stats(personID string) store.Summary {
	return s.store.GetSummaryStats(personID)
}

// Export renders the selected records as CSV.
func (s *Service) Export(personID string, rng store.DateRange) string {
	return s.store.ExportData(personID, rng)
}

// Patterns is the circadian analysis of a set of records.
type Patterns struct {
	Hourly          []core.HourBucket      `json:"hourly"`
	Weekday         []core.WeekdayBucket   `json:"weekday"`
	Correlations    core.CorrelationMatrix `json:"correlations"`
	PeakEnergyHours []int                  `json:"peak_energy_hours"`
}

// Patterns analyzes the records matching f.
func (s *Service) Patterns(f store.Filter) Patterns {
	data := s.store.Query(f)
	return Patterns{
		Hourly:          core.HourlyPattern(data),
		Weekday:         core.WeekdayPattern(data),
		Correlations:    core.Correlations(data),
		PeakEnergyHours: core.PeakEnergyHours(data),
	}
}

// Insights ranks persons and measures notes coverage over the records
// matching f.
func (s *Service) Insights(f store.Filter, top int) core.Insights {
	return core.BuildInsights(s.store.Query(f), top)
}

// Row is a record with its zero-based position in the data file. Positions
// address records for UpdateEntry and DeleteEntry.
type Row struct {
	Position int `json:"position"`
	core.Record
}

// Rows returns the records matching f with their file positions.
func (s *Service) Rows(f store.Filter) []Row {
	var out []Row
	for i, r := range s.store.Load() {
		if f.Match(r) {
			out = append(out, Row{Position: i, Record: r})
		}
	}
	return out
}

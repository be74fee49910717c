package web

// Read-only handlers: listings, statistics and pattern analysis.

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/service"
)

type rowsResponse struct {
	Entries []service.Row `json:"entries"`
	Count   int           `json:"count"`
}

// handleListEntries returns the entries matching the query filter, with
// their file positions.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rows := s.service.Rows(f)
	if rows == nil {
		rows = []service.Row{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Entries: rows, Count: len(rows)})
}

// handleListPersons returns the sorted distinct person ids.
func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons := s.service.Persons()
	if persons == nil {
		persons = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": persons})
}

// handlePersonEntries returns one person's entries in timestamp order.
func (s *Server) handlePersonEntries(w http.ResponseWriter, r *http.Request) {
	personID := strings.TrimSpace(chi.URLParam(r, "personID"))
	rng, err := s.parseDateRange(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	data := s.service.PersonEntries(personID, rng)
	if data == nil {
		data = []core.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"person_id": personID,
		"entries":   data,
		"count":     len(data),
	})
}

// handleStats returns summary statistics for everyone, or for person_id.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	personID := strings.TrimSpace(r.URL.Query().Get("person_id"))
	writeJSON(w, http.StatusOK, s.service.Stats(personID))
}

// handlePatterns returns the full circadian analysis.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Patterns(f))
}

// handleHourlyPattern returns metric means per hour of day.
func (s *Server) handleHourlyPattern(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	p := s.service.Patterns(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"hourly":            nonNil(p.Hourly),
		"peak_energy_hours": nonNil(p.PeakEnergyHours),
	})
}

// handleWeekdayPattern returns metric means per weekday, Monday first.
func (s *Server) handleWeekdayPattern(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"weekday": nonNil(s.service.Patterns(f).Weekday),
	})
}

// handleInsights returns the most active persons and notes coverage.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	top := parseIntParam(r, "top", core.DefaultTopPersons)
	writeJSON(w, http.StatusOK, s.service.Insights(f, top))
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

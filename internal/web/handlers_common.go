package web

// Shared request parsing used across handlers.

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/store"
)

// maxJSONBody caps single-entry request bodies.
const maxJSONBody = 64 << 10

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parsePosition reads the {pos} URL parameter.
func parsePosition(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "pos")
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(core.KindIndexError, fmt.Sprintf("Invalid entry position %q", raw))
	}
	return pos, nil
}

// parseDateRange reads the start and end query parameters (YYYY-MM-DD).
func (s *Server) parseDateRange(r *http.Request) (store.DateRange, error) {
	var rng store.DateRange
	q := r.URL.Query()
	loc := s.cfg.Location()

	if v := strings.TrimSpace(q.Get("start")); v != "" {
		d, ok := core.ParseDate(v, loc)
		if !ok {
			return rng, badRequest(core.KindParseError, "Invalid start date. Use YYYY-MM-DD")
		}
		rng.Start = d
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		d, ok := core.ParseDate(v, loc)
		if !ok {
			return rng, badRequest(core.KindParseError, "Invalid end date. Use YYYY-MM-DD")
		}
		rng.End = d
	}
	return rng, nil
}

// parseFilter builds a store.Filter from query parameters:
// person_id, start, end, min_hr, max_hr, min_energy, max_energy, q.
func (s *Server) parseFilter(r *http.Request) (store.Filter, error) {
	rng, err := s.parseDateRange(r)
	if err != nil {
		return store.Filter{}, err
	}
	q := r.URL.Query()
	return store.Filter{
		PersonID:     strings.TrimSpace(q.Get("person_id")),
		Range:        rng,
		MinHeartRate: parseIntParam(r, "min_hr", 0),
		MaxHeartRate: parseIntParam(r, "max_hr", 0),
		MinEnergy:    parseIntParam(r, "min_energy", 0),
		MaxEnergy:    parseIntParam(r, "max_energy", 0),
		Search:       strings.TrimSpace(q.Get("q")),
	}, nil
}

// decodeFields reads an entry from a JSON body or form values. Numbers in
// JSON keep their type; form values are coerced the way imported cells are.
func decodeFields(r *http.Request) (core.Fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, badRequest(core.KindParseError, "Could not read form data")
		}
		return formFields(r), nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.UseNumber()

	fields := core.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, badRequest(core.KindParseError, "Request body must be a JSON object")
	}
	return fields, nil
}

var numericColumns = map[string]bool{
	core.ColHeartRate:   true,
	core.ColSystolicBP:  true,
	core.ColDiastolicBP: true,
	core.ColEnergyLevel: true,
}

func formFields(r *http.Request) core.Fields {
	fields := core.Fields{}
	for _, col := range core.Columns {
		if _, ok := r.Form[col]; !ok {
			continue
		}
		raw, _ := core.SanitizeInput(r.Form.Get(col))
		if numericColumns[col] {
			if n, ok := core.ParseNumber(raw); ok {
				fields[col] = n
				continue
			}
		}
		fields[col] = raw
	}
	return fields
}

// patchRequest is the body of PATCH /api/entries/{pos}. The timestamp is
// text in the same layouts accepted for new entries.
type patchRequest struct {
	PersonID    *string `json:"person_id"`
	Timestamp   *string `json:"timestamp"`
	HeartRate   *int    `json:"heart_rate"`
	SystolicBP  *int    `json:"systolic_bp"`
	DiastolicBP *int    `json:"diastolic_bp"`
	EnergyLevel *int    `json:"energy_level"`
	Notes       *string `json:"notes"`
}

func (p patchRequest) toPatch(loc *time.Location) (store.Patch, error) {
	patch := store.Patch{
		PersonID:    p.PersonID,
		HeartRate:   p.HeartRate,
		SystolicBP:  p.SystolicBP,
		DiastolicBP: p.DiastolicBP,
		EnergyLevel: p.EnergyLevel,
		Notes:       p.Notes,
	}
	if p.Timestamp != nil {
		ts, ok := core.ParseTimestamp(*p.Timestamp, loc)
		if !ok {
			return store.Patch{}, badRequest(core.KindParseError,
				"Invalid timestamp format. Use YYYY-MM-DD HH:MM:SS or YYYY-MM-DD HH:MM")
		}
		patch.Timestamp = &ts
	}
	return patch, nil
}

// confirmed reports whether a destructive request carries confirm=true.
func confirmed(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return v
}

package web

// Handlers that change the dataset one entry or one person at a time.

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/web/templates"
)

// handleValidate checks an entry without saving it. The verdict is returned
// with 200 whether or not the entry is valid.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.ValidateEntry(fields))
}

// handleAddEntry validates and saves one entry.
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.AddEntry(r.Context(), fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = templates.Notice("Entry saved for "+result.Record.PersonID, result.Warnings).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleUpdateEntry applies a partial update to the entry at {pos}.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req patchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.respondError(w, r, badRequest(core.KindParseError, "Request body must be a JSON object"))
		return
	}
	patch, err := req.toPatch(s.cfg.Location())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.UpdateEntry(r.Context(), pos, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeleteEntry removes the entry at {pos}.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteEntry(r.Context(), pos); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeletePerson removes every entry for {personID}.
func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	personID := strings.TrimSpace(chi.URLParam(r, "personID"))

	deleted, err := s.service.DeletePerson(r.Context(), personID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"person_id": personID,
		"deleted":   deleted,
	})
}

// handleClear removes every entry. Requires ?confirm=true.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		s.respondErrorStatus(w, r,
			badRequest(core.KindMissingField, "Clearing all data requires confirm=true"),
			http.StatusBadRequest)
		return
	}
	if err := s.service.Clear(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package web

// File handlers: CSV import and export, backups and the warehouse mirror.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/circadian/internal/core"
)

// multipartSlack allows for form boundaries and part headers on top of the
// file size limit.
const multipartSlack = 64 << 10

// importBody returns the uploaded CSV. It accepts a multipart form with a
// "file" part or a raw text/csv body.
func (s *Server) importBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartSlack)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, badRequest(core.KindParseError, "Invalid upload form")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest(core.KindEmptyInput, "No file provided")
	}
	return file, nil
}

// importFailure is returned when an import is rejected after validation, so
// the client can show the row errors.
type importFailure struct {
	ErrorResponse
	Verdict core.BatchVerdict `json:"verdict"`
}

// handleImport validates an uploaded CSV and appends it when every row is
// valid.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := s.importBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer body.Close()

	result, err := s.service.Import(r.Context(), body)
	if err != nil {
		if result.Verdict.Kind != "" && !isHTMX(r) {
			msg := core.MapError(err)
			writeJSON(w, statusFor(err), importFailure{
				ErrorResponse: newErrorResponse(msg),
				Verdict:       result.Verdict,
			})
			return
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleValidateImport reports what an import would do without writing.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	body, err := s.importBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer body.Close()

	verdict, err := s.service.ValidateImport(r.Context(), body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// handleExport streams the selected entries as a CSV attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parseDateRange(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	personID := strings.TrimSpace(r.URL.Query().Get("person_id"))

	out := s.service.Export(personID, rng)

	filename := fmt.Sprintf("circadian_export_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = io.WriteString(w, out)
}

type backupRequest struct {
	Name string `json:"name"`
}

// handleBackup writes a backup of the data file. An optional JSON body may
// name the file; names are plain file names inside the backup directory.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, r, badRequest(core.KindParseError, "Request body must be a JSON object"))
			return
		}
	}
	name := strings.TrimSpace(req.Name)
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		s.respondError(w, r, badRequest(core.KindInvalidFormat, "Backup name must be a plain file name"))
		return
	}

	result, err := s.service.Backup(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleWarehouseSync replaces the Postgres mirror with the current data.
func (s *Server) handleWarehouseSync(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.SyncWarehouse(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": n})
}

// handleHealth reports liveness and whether the data file is readable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Store().Read()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  core.MapError(err).Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"entries":    len(data),
		"write_busy": s.service.Busy(),
	})
}

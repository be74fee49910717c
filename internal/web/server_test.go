package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/circadian/internal/config"
	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
	"github.com/JonMunkholm/circadian/internal/service"
	"github.com/JonMunkholm/circadian/internal/store"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const csvHeader = "person_id,timestamp,heart_rate,systolic_bp,diastolic_bp,energy_level,notes\n"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Validation.Timezone = "UTC"
	cfg.Import.MaxFileSize = 1 << 20
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "data.csv"),
		store.WithLocation(time.UTC),
		store.WithBackupDir(filepath.Join(dir, "backups")),
		store.WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	v := &core.Validator{
		Now:      func() time.Time { return testNow },
		Location: time.UTC,
	}
	svc := service.New(st, v,
		service.WithLogger(logging.Discard()),
		service.WithMaxImportSize(cfg.Import.MaxFileSize),
	)
	return NewServer(svc, cfg)
}

func do(t *testing.T, s *Server, method, target, contentType string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func entryJSON(person, ts string, hr int) string {
	return `{"person_id":"` + person + `","timestamp":"` + ts + `","heart_rate":` +
		jsonInt(hr) + `,"systolic_bp":120,"diastolic_bp":80,"energy_level":6,"notes":"ok"}`
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestAddEntryAndDuplicate(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/api/entries", "application/json", entryJSON("john_doe", "2024-03-05 14:07:09", 72))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	res := decode[service.EntryResult](t, rec)
	if res.Record.PersonID != "john_doe" || res.Record.HeartRate != 72 {
		t.Errorf("record = %+v", res.Record)
	}

	rec = do(t, s, http.MethodPost, "/api/entries", "application/json", entryJSON("john_doe", "2024-03-05 14:07:09", 80))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	errBody := decode[ErrorResponse](t, rec)
	if errBody.Code != "STO001" {
		t.Errorf("code = %q, want STO001", errBody.Code)
	}
}

func TestAddEntryValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "heart rate out of range",
			body:     entryJSON("john_doe", "2024-03-05 14:07:09", 300),
			wantCode: "VAL003",
		},
		{
			name:     "bad person id",
			body:     entryJSON("john doe!", "2024-03-05 14:07:09", 70),
			wantCode: "VAL002",
		},
		{
			name:     "future timestamp",
			body:     entryJSON("john_doe", "2030-01-01 00:00:00", 70),
			wantCode: "VAL003",
		},
		{
			name:     "not json",
			body:     "person_id=x",
			wantCode: "VAL004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			rec := do(t, s, http.MethodPost, "/api/entries", "application/json", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestAddEntryForm(t *testing.T) {
	s := newTestServer(t, testConfig())
	form := url.Values{
		"person_id":    {"P001"},
		"timestamp":    {"2024-03-05 14:07"},
		"heart_rate":   {"65"},
		"systolic_bp":  {"118"},
		"diastolic_bp": {"76"},
		"energy_level": {"8"},
		"notes":        {"  slept badly\r\nwoke at 3\x00 "},
	}
	rec := do(t, s, http.MethodPost, "/api/entries", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	stored := s.service.Entries(store.Filter{})
	if len(stored) != 1 || stored[0].Notes != "slept badly\nwoke at 3" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestHTMXErrorFragment(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(entryJSON("john_doe", "2024-03-05 14:07:09", 10)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Code: VAL003") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodPost, "/api/validate", "application/json", entryJSON("john_doe", "2024-03-05 14:07:09", 300))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	v := decode[core.Verdict](t, rec)
	if v.Valid || v.Kind != core.KindOutOfRange {
		t.Errorf("verdict = %+v", v)
	}

	// Nothing was written.
	rec = do(t, s, http.MethodGet, "/api/entries", "", "")
	if got := decode[rowsResponse](t, rec); got.Count != 0 {
		t.Errorf("count = %d, want 0", got.Count)
	}
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	for _, e := range []struct {
		person, ts string
		hr         int
	}{
		{"alice", "2024-03-04 08:00:00", 60},
		{"bob", "2024-03-05 09:00:00", 75},
		{"alice", "2024-03-06 08:30:00", 65},
	} {
		rec := do(t, s, http.MethodPost, "/api/entries", "application/json", entryJSON(e.person, e.ts, e.hr))
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}
}

func TestListEntriesWithFilters(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?person_id=alice", 2},
		{"?start=2024-03-05", 2},
		{"?start=2024-03-05&end=2024-03-05", 1},
		{"?min_hr=62", 2},
		{"?q=BOB", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/entries"+tt.query, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := decode[rowsResponse](t, rec); got.Count != tt.want {
				t.Errorf("count = %d, want %d", got.Count, tt.want)
			}
		})
	}

	rec := do(t, s, http.MethodGet, "/api/entries?start=03/05/2024", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	rec := do(t, s, http.MethodPatch, "/api/entries/1", "application/json", `{"heart_rate":88,"notes":"after run"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[service.EntryResult](t, rec).Record; got.HeartRate != 88 || got.PersonID != "bob" {
		t.Errorf("updated = %+v", got)
	}

	// Moving bob onto alice's key is refused.
	rec = do(t, s, http.MethodPatch, "/api/entries/1", "application/json",
		`{"person_id":"alice","timestamp":"2024-03-04 08:00:00"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate update status = %d, want 409", rec.Code)
	}

	rec = do(t, s, http.MethodPatch, "/api/entries/1", "application/json", `{"heart_rate":500}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid update status = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, "/api/entries/0", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodDelete, "/api/entries/7", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("out of range status = %d, want 404", rec.Code)
	}
	rec = do(t, s, http.MethodDelete, "/api/entries/abc", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric status = %d, want 404", rec.Code)
	}

	rows := decode[rowsResponse](t, do(t, s, http.MethodGet, "/api/entries", "", ""))
	if rows.Count != 2 || rows.Entries[0].PersonID != "bob" || rows.Entries[0].Position != 0 {
		t.Errorf("after delete = %+v", rows)
	}
}

func TestPersonsEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	persons := decode[map[string][]string](t, do(t, s, http.MethodGet, "/api/persons", "", ""))
	if got := persons["persons"]; len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("persons = %v", got)
	}

	rec := do(t, s, http.MethodGet, "/api/persons/alice/entries?end=2024-03-05", "", "")
	body := decode[map[string]any](t, rec)
	if body["count"] != float64(1) {
		t.Errorf("alice entries = %v", body)
	}

	rec = do(t, s, http.MethodDelete, "/api/persons/alice", "", "")
	if got := decode[map[string]any](t, rec)["deleted"]; got != float64(2) {
		t.Errorf("deleted = %v, want 2", got)
	}
}

func TestClearRequiresConfirm(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	if rec := do(t, s, http.MethodDelete, "/api/entries", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/entries?confirm=true", "", ""); rec.Code != http.StatusNoContent {
		t.Errorf("confirmed status = %d, want 204", rec.Code)
	}
	if got := decode[rowsResponse](t, do(t, s, http.MethodGet, "/api/entries", "", "")); got.Count != 0 {
		t.Errorf("count = %d after clear", got.Count)
	}
}

func TestStatsAndPatterns(t *testing.T) {
	s := newTestServer(t, testConfig())

	empty := decode[store.Summary](t, do(t, s, http.MethodGet, "/api/stats", "", ""))
	if empty.TotalEntries != 0 {
		t.Errorf("empty stats = %+v", empty)
	}

	seed(t, s)
	stats := decode[store.Summary](t, do(t, s, http.MethodGet, "/api/stats?person_id=alice", "", ""))
	if stats.TotalEntries != 2 || stats.HeartRate.Mean != 62.5 {
		t.Errorf("alice stats = %+v", stats)
	}

	hourly := decode[map[string][]core.HourBucket](t, do(t, s, http.MethodGet, "/api/patterns/hourly", "", ""))
	if got := hourly["hourly"]; len(got) != 2 || got[0].Hour != 8 || got[0].Count != 2 {
		t.Errorf("hourly = %+v", got)
	}

	weekday := decode[map[string][]core.WeekdayBucket](t, do(t, s, http.MethodGet, "/api/patterns/weekday", "", ""))
	// 2024-03-04 is a Monday.
	if got := weekday["weekday"]; len(got) != 3 || got[0].Day != "Monday" {
		t.Errorf("weekday = %+v", got)
	}

	full := decode[service.Patterns](t, do(t, s, http.MethodGet, "/api/patterns", "", ""))
	if len(full.Correlations.Metrics) != 4 {
		t.Errorf("correlations = %+v", full.Correlations)
	}

	insights := decode[core.Insights](t, do(t, s, http.MethodGet, "/api/insights?top=1", "", ""))
	if len(insights.MostActive) != 1 || insights.MostActive[0].PersonID != "alice" {
		t.Errorf("insights = %+v", insights)
	}
}

func TestImportEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())

	good := csvHeader +
		"alice,2024-03-04 08:00:00,60,120,80,6,\n" +
		"bob,2024-03-05 09:00,75,118,76,7,walk\n"

	rec := do(t, s, http.MethodPost, "/api/import/validate", "text/csv", good)
	if v := decode[core.BatchVerdict](t, rec); !v.Valid || v.Rows != 2 {
		t.Errorf("validate = %+v", v)
	}

	rec = do(t, s, http.MethodPost, "/api/import", "text/csv", good)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if res := decode[service.ImportResult](t, rec); res.Inserted != 2 || res.Duplicates != 0 {
		t.Errorf("import = %+v", res)
	}

	// Re-importing skips every row as a duplicate.
	rec = do(t, s, http.MethodPost, "/api/import", "text/csv", good)
	if res := decode[service.ImportResult](t, rec); res.Inserted != 0 || res.Duplicates != 2 {
		t.Errorf("re-import = %+v", res)
	}

	bad := csvHeader + "carol,2024-03-04 08:00:00,999,120,80,6,\n"
	rec = do(t, s, http.MethodPost, "/api/import", "text/csv", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad import status = %d, body = %s", rec.Code, rec.Body.String())
	}
	failure := decode[importFailure](t, rec)
	if failure.Verdict.Valid || failure.Verdict.TotalErrors != 1 {
		t.Errorf("failure verdict = %+v", failure.Verdict)
	}

	missing := "person_id,timestamp\nalice,2024-03-04 08:00:00\n"
	rec = do(t, s, http.MethodPost, "/api/import", "text/csv", missing)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing columns status = %d, want 422", rec.Code)
	}
}

func TestImportMultipart(t *testing.T) {
	s := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	part, err := mpw.CreateFormFile("file", "data.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(csvHeader + "alice,2024-03-04 08:00:00,60,120,80,6,\n"))
	_ = mpw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if res := decode[service.ImportResult](t, rec); res.Inserted != 1 {
		t.Errorf("inserted = %d", res.Inserted)
	}
}

func TestImportTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 32
	s := newTestServer(t, cfg)

	rec := do(t, s, http.MethodPost, "/api/import", "text/csv", csvHeader+"alice,2024-03-04 08:00:00,60,120,80,6,\n")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "FILE003" {
		t.Errorf("code = %q, want FILE003", got)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/export?person_id=bob", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "circadian_export_") {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "bob,2024-03-05 09:00:00,75") {
		t.Errorf("export = %q", rec.Body.String())
	}
}

func TestBackupAndWarehouse(t *testing.T) {
	s := newTestServer(t, testConfig())
	seed(t, s)

	rec := do(t, s, http.MethodPost, "/api/backup", "application/json", `{"name":"manual.csv"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("backup status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if res := decode[service.BackupResult](t, rec); filepath.Base(res.Path) != "manual.csv" {
		t.Errorf("backup path = %q", res.Path)
	}

	rec = do(t, s, http.MethodPost, "/api/backup", "", "")
	if rec.Code != http.StatusCreated {
		t.Errorf("generated backup status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/backup", "application/json", `{"name":"../escape.csv"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/warehouse/sync", "", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("sync without warehouse status = %d, want 501", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	if rec := do(t, s, http.MethodGet, "/api/persons", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/persons", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// Health stays public.
	if rec := do(t, s, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrBusy, http.StatusServiceUnavailable},
		{store.ErrDuplicateKey, http.StatusConflict},
		{store.ErrIndexOutOfRange, http.StatusNotFound},
		{&core.Error{Kind: core.KindIOFailure, Message: "x"}, http.StatusInternalServerError},
		{&core.Error{Kind: core.KindOutOfRange, Message: "x"}, http.StatusBadRequest},
		{&core.Error{Kind: core.KindEmptyInput, Message: "x"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// Package store persists health records in a flat CSV file.
//
// The whole table is loaded for every call and rewritten after every
// mutation. Rewrites go to a temporary file in the same directory which is
// then renamed over the data file, so readers never observe a partial table.
//
// The store does not validate records and does not lock; callers that write
// concurrently must serialize (see service.WriteGate).
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/circadian/internal/core"
)

// DefaultPath is the data file used when none is configured.
const DefaultPath = "circadian_data.csv"

// Dataset is the ordered collection of records. A record's index is its
// position, which shifts after deletes.
type Dataset []core.Record

// Store is a handle on one data file.
type Store struct {
	path      string
	backupDir string
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the non-error-returning methods.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackupDir sets the directory relative backup names resolve in.
// Defaults to the directory of the data file.
func WithBackupDir(dir string) Option {
	return func(s *Store) {
		s.backupDir = dir
	}
}

// WithLocation sets the location timestamps in the file are read in.
// It should match the validator's location. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New opens the store at path, creating the file with a header row if it
// does not exist.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	s := &Store{
		path:   path,
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backupDir == "" {
		s.backupDir = filepath.Dir(path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ioError("create data directory", err)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
		s.logger.Info("created data file", "path", path)
	} else if err != nil {
		return nil, ioError("stat data file", err)
	}

	return s, nil
}

// Path returns the data file path.
func (s *Store) Path() string {
	return s.path
}

// Read loads the whole table. An absent or empty file is an empty dataset.
// Columns missing from the header are backfilled: notes with "", numeric
// columns with 0. A row that cannot be parsed fails the whole read.
func (s *Store) Read() (Dataset, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Dataset{}, nil
	}
	if err != nil {
		return nil, ioError("open data file", err)
	}
	defer f.Close()

	return s.decode(f)
}

func (s *Store) decode(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, nil
	}
	if err != nil {
		return nil, ioError("read header", err)
	}
	idx := core.MakeHeaderIndex(header)

	data := Dataset{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ioError("read data file", err)
		}
		rec, err := s.parseRow(idx, row)
		if err != nil {
			return nil, ioError(fmt.Sprintf("parse data file line %d", line), err)
		}
		data = append(data, rec)
	}
	return data, nil
}

func (s *Store) parseRow(idx core.HeaderIndex, row []string) (core.Record, error) {
	var rec core.Record

	rec.PersonID, _ = idx.Cell(row, core.ColPersonID)

	raw, _ := idx.Cell(row, core.ColTimestamp)
	ts, ok := core.ParseImportTimestamp(raw, s.loc)
	if !ok {
		return rec, fmt.Errorf("invalid timestamp %q", raw)
	}
	rec.Timestamp = ts

	ints := []struct {
		col string
		dst *int
	}{
		{core.ColHeartRate, &rec.HeartRate},
		{core.ColSystolicBP, &rec.SystolicBP},
		{core.ColDiastolicBP, &rec.DiastolicBP},
		{core.ColEnergyLevel, &rec.EnergyLevel},
	}
	for _, c := range ints {
		raw, ok := idx.Cell(row, c.col)
		if !ok || raw == "" {
			continue
		}
		n, ok := core.ParseNumber(raw)
		if !ok {
			return rec, fmt.Errorf("invalid %s %q", c.col, raw)
		}
		*c.dst = int(math.Round(n))
	}

	rec.Notes, _ = idx.Cell(row, core.ColNotes)
	return rec, nil
}

// write replaces the data file with data.
func (s *Store) write(data Dataset) error {
	return writeFile(s.path, data)
}

func writeFile(path string, data Dataset) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp, data); err != nil {
		_ = tmp.Close()
		return ioError("write data file", err)
	}
	if err := tmp.Chmod(fileMode(path)); err != nil {
		_ = tmp.Close()
		return ioError("set data file mode", err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ioError("replace data file", err)
	}
	return nil
}

// fileMode keeps the permissions of an existing file at path. New files get
// 0644, since CreateTemp would otherwise leave them owner-only.
func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func encode(w io.Writer, data Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.Columns); err != nil {
		return err
	}
	for _, rec := range data {
		if err := cw.Write(rec.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ioError(msg string, err error) error {
	return &core.Error{Kind: core.KindIOFailure, Message: msg, Err: err}
}

package store

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/circadian/internal/core"
)

// Sentinel errors for use with errors.Is. They match any *core.Error of the
// same kind.
var (
	ErrDuplicateKey    = &core.Error{Kind: core.KindDuplicateKey, Message: "duplicate entry"}
	ErrIndexOutOfRange = &core.Error{Kind: core.KindIndexError, Message: "index out of range"}
)

// Patch lists the fields to overwrite in an update. Nil fields are kept.
type Patch struct {
	PersonID    *string    `json:"person_id,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	HeartRate   *int       `json:"heart_rate,omitempty"`
	SystolicBP  *int       `json:"systolic_bp,omitempty"`
	DiastolicBP *int       `json:"diastolic_bp,omitempty"`
	EnergyLevel *int       `json:"energy_level,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply returns r with the patch fields overwritten.
func (p Patch) Apply(r core.Record) core.Record {
	if p.PersonID != nil {
		r.PersonID = *p.PersonID
	}
	if p.Timestamp != nil {
		r.Timestamp = *p.Timestamp
	}
	if p.HeartRate != nil {
		r.HeartRate = *p.HeartRate
	}
	if p.SystolicBP != nil {
		r.SystolicBP = *p.SystolicBP
	}
	if p.DiastolicBP != nil {
		r.DiastolicBP = *p.DiastolicBP
	}
	if p.EnergyLevel != nil {
		r.EnergyLevel = *p.EnergyLevel
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	return r
}

func (s *Store) normalize(r core.Record) core.Record {
	r.Timestamp = r.Timestamp.In(s.loc).Truncate(time.Second)
	r.Notes = core.NormalizeNewlines(r.Notes)
	return r
}

func duplicateError(r core.Record) error {
	return &core.Error{
		Kind:    core.KindDuplicateKey,
		Message: fmt.Sprintf("Entry for %s at %s already exists", r.PersonID, core.FormatTimestamp(r.Timestamp)),
	}
}

func indexError(pos, n int) error {
	return &core.Error{
		Kind:    core.KindIndexError,
		Message: fmt.Sprintf("Invalid index: %d (dataset has %d entries)", pos, n),
	}
}

// Insert appends r unless an entry with the same person and timestamp exists.
func (s *Store) Insert(r core.Record) error {
	r = s.normalize(r)

	data, err := s.Read()
	if err != nil {
		return err
	}
	key := r.Key()
	for _, existing := range data {
		if existing.Key() == key {
			return duplicateError(r)
		}
	}

	return s.write(append(data, r))
}

// InsertBatch appends every record whose key is not already present, either
// in the table or earlier in records, with a single rewrite. It returns the
// number appended and the indexes into records that were skipped as
// duplicates.
func (s *Store) InsertBatch(records []core.Record) (int, []int, error) {
	data, err := s.Read()
	if err != nil {
		return 0, nil, err
	}

	seen := make(map[string]struct{}, len(data)+len(records))
	for _, r := range data {
		seen[r.Key()] = struct{}{}
	}

	var duplicates []int
	inserted := 0
	for i, r := range records {
		r = s.normalize(r)
		key := r.Key()
		if _, ok := seen[key]; ok {
			duplicates = append(duplicates, i)
			continue
		}
		seen[key] = struct{}{}
		data = append(data, r)
		inserted++
	}

	if inserted == 0 {
		return 0, duplicates, nil
	}
	if err := s.write(data); err != nil {
		return 0, nil, err
	}
	return inserted, duplicates, nil
}

// Get returns the record at pos.
func (s *Store) Get(pos int) (core.Record, error) {
	data, err := s.Read()
	if err != nil {
		return core.Record{}, err
	}
	if pos < 0 || pos >= len(data) {
		return core.Record{}, indexError(pos, len(data))
	}
	return data[pos], nil
}

// Update overwrites the non-nil fields of p in the record at pos and returns
// the result. An update that would collide with another entry's key is refused.
func (s *Store) Update(pos int, p Patch) (core.Record, error) {
	data, err := s.Read()
	if err != nil {
		return core.Record{}, err
	}
	if pos < 0 || pos >= len(data) {
		return core.Record{}, indexError(pos, len(data))
	}

	updated := s.normalize(p.Apply(data[pos]))
	key := updated.Key()
	for i, existing := range data {
		if i != pos && existing.Key() == key {
			return core.Record{}, duplicateError(updated)
		}
	}

	data[pos] = updated
	if err := s.write(data); err != nil {
		return core.Record{}, err
	}
	return updated, nil
}

// Delete removes the record at pos. Later positions shift down by one.
func (s *Store) Delete(pos int) error {
	data, err := s.Read()
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(data) {
		return indexError(pos, len(data))
	}

	return s.write(append(data[:pos], data[pos+1:]...))
}

// DeletePerson removes every record of personID and returns how many were
// removed. The file is rewritten even when nothing matched.
func (s *Store) DeletePerson(personID string) (int, error) {
	data, err := s.Read()
	if err != nil {
		return 0, err
	}

	kept := data[:0]
	for _, r := range data {
		if r.PersonID != personID {
			kept = append(kept, r)
		}
	}
	removed := len(data) - len(kept)

	if err := s.write(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear truncates the table to its header.
func (s *Store) Clear() error {
	return s.write(nil)
}

// ----------------------------------------------------------------------------
// Boolean API
//
// These methods never return errors. Failures are logged with their kind and
// reported as false.
// ----------------------------------------------------------------------------

// AddEntry inserts r, returning false for duplicates and I/O failures.
func (s *Store) AddEntry(r core.Record) bool {
	if err := s.Insert(r); err != nil {
		s.logFailure("add entry", err, "person_id", r.PersonID, "timestamp", core.FormatTimestamp(r.Timestamp))
		return false
	}
	s.logger.Info("added entry", "person_id", r.PersonID)
	return true
}

// UpdateEntry applies p to the record at pos.
func (s *Store) UpdateEntry(pos int, p Patch) bool {
	if _, err := s.Update(pos, p); err != nil {
		s.logFailure("update entry", err, "index", pos)
		return false
	}
	s.logger.Info("updated entry", "index", pos)
	return true
}

// DeleteEntry removes the record at pos.
func (s *Store) DeleteEntry(pos int) bool {
	if err := s.Delete(pos); err != nil {
		s.logFailure("delete entry", err, "index", pos)
		return false
	}
	s.logger.Info("deleted entry", "index", pos)
	return true
}

// DeletePersonData removes every record of personID. It succeeds even when
// the person has no records.
func (s *Store) DeletePersonData(personID string) bool {
	n, err := s.DeletePerson(personID)
	if err != nil {
		s.logFailure("delete person data", err, "person_id", personID)
		return false
	}
	s.logger.Info("deleted person data", "person_id", personID, "removed", n)
	return true
}

// ClearAllData removes every record.
func (s *Store) ClearAllData() bool {
	if err := s.Clear(); err != nil {
		s.logFailure("clear data", err)
		return false
	}
	s.logger.Info("cleared all data")
	return true
}

func (s *Store) logFailure(op string, err error, args ...any) {
	args = append(args, "kind", core.KindOf(err), "error", err)
	if core.KindOf(err) == core.KindDuplicateKey {
		s.logger.Warn(op+" rejected", args...)
		return
	}
	s.logger.Error(op+" failed", args...)
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/store"
)

// EntryResult is the outcome of a successful single-entry write.
type EntryResult struct {
	Record   core.Record `json:"record"`
	Warnings []string    `json:"warnings,omitempty"`
}

// ValidateEntry checks fields without writing.
func (s *Service) ValidateEntry(fields core.Fields) core.Verdict {
	return s.validator.ValidateEntry(fields)
}

// AddEntry validates fields and appends the normalized record. A failed
// validation is returned as a *core.Error carrying the verdict's kind and
// message.
func (s *Service) AddEntry(ctx context.Context, fields core.Fields) (EntryResult, error) {
	rec, verdict := s.validator.ParseEntry(fields)
	if !verdict.Valid {
		return EntryResult{}, verdict.Err()
	}

	err := s.withWrite(ctx, func() error {
		return s.store.Insert(rec)
	})
	if err != nil {
		return EntryResult{}, err
	}

	s.log(ctx).Info("entry added",
		"person_id", rec.PersonID,
		"timestamp", core.FormatTimestamp(rec.Timestamp),
		"warnings", len(verdict.Warnings),
	)
	return EntryResult{Record: rec, Warnings: verdict.Warnings}, nil
}

// UpdateEntry applies p to the record at pos. The merged record must pass the
// same validation as a new entry.
func (s *Service) UpdateEntry(ctx context.Context, pos int, p store.Patch) (EntryResult, error) {
	var result EntryResult
	err := s.withWrite(ctx, func() error {
		current, err := s.store.Get(pos)
		if err != nil {
			return err
		}

		_, verdict := s.validator.ParseEntry(recordFields(p.Apply(current)))
		if !verdict.Valid {
			return verdict.Err()
		}

		updated, err := s.store.Update(pos, p)
		if err != nil {
			return err
		}
		result = EntryResult{Record: updated, Warnings: verdict.Warnings}
		return nil
	})
	if err != nil {
		return EntryResult{}, err
	}

	s.log(ctx).Info("entry updated", "index", pos, "person_id", result.Record.PersonID)
	return result, nil
}

// DeleteEntry removes the record at pos.
func (s *Service) DeleteEntry(ctx context.Context, pos int) error {
	err := s.withWrite(ctx, func() error {
		return s.store.Delete(pos)
	})
	if err != nil {
		return err
	}
	s.log(ctx).Info("entry deleted", "index", pos)
	return nil
}

// DeletePerson removes every record of personID and returns how many.
func (s *Service) DeletePerson(ctx context.Context, personID string) (int, error) {
	var removed int
	err := s.withWrite(ctx, func() error {
		var err error
		removed, err = s.store.DeletePerson(personID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log(ctx).Info("person data deleted", "person_id", personID, "removed", removed)
	return removed, nil
}

// Clear removes every record.
func (s *Service) Clear(ctx context.Context) error {
	err := s.withWrite(ctx, func() error {
		return s.store.Clear()
	})
	if err != nil {
		return err
	}
	s.log(ctx).Warn("all data cleared")
	return nil
}

// BackupResult identifies a written backup.
type BackupResult struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup copies the data file. An empty name is generated from the clock.
// Backups hold the write gate so they never copy a half-applied change.
func (s *Service) Backup(ctx context.Context, name string) (BackupResult, error) {
	result := BackupResult{ID: uuid.New(), CreatedAt: time.Now()}
	err := s.withWrite(ctx, func() error {
		path, err := s.store.Backup(name)
		result.Path = path
		return err
	})
	if err != nil {
		s.log(ctx).Error("backup failed", "backup_id", result.ID, "error", err)
		return BackupResult{}, err
	}
	s.log(ctx).Info("backup written", "backup_id", result.ID, "path", result.Path)
	return result, nil
}

// recordFields turns a stored record back into raw fields for validation.
func recordFields(r core.Record) core.Fields {
	return core.Fields{
		core.ColPersonID:    r.PersonID,
		core.ColTimestamp:   r.Timestamp,
		core.ColHeartRate:   r.HeartRate,
		core.ColSystolicBP:  r.SystolicBP,
		core.ColDiastolicBP: r.DiastolicBP,
		core.ColEnergyLevel: r.EnergyLevel,
		core.ColNotes:       r.Notes,
	}
}

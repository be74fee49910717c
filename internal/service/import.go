package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
)

// ImportResult reports a bulk import. Verdict is always set once the file has
// been parsed.
type ImportResult struct {
	ID         uuid.UUID         `json:"id"`
	Verdict    core.BatchVerdict `json:"verdict"`
	Inserted   int               `json:"inserted"`
	Duplicates int               `json:"duplicates"`
}

// ValidateImport parses and validates an uploaded CSV without writing.
func (s *Service) ValidateImport(ctx context.Context, r io.Reader) (core.BatchVerdict, error) {
	table, err := core.ReadImport(r, s.maxImportSize)
	if err != nil {
		return core.BatchVerdict{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.BatchVerdict{}, err
	}
	return s.validator.ValidateTable(table), nil
}

// Import validates an uploaded CSV and, when every row is valid, appends its
// records. Any invalid row rejects the whole file. Rows whose key already
// exists are skipped and counted as duplicates.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	result := ImportResult{ID: uuid.New()}
	logger := logging.Scoped(ctx, s.logger).With("import_id", result.ID)

	table, err := core.ReadImport(r, s.maxImportSize)
	if err != nil {
		logger.Warn("import unreadable", "error", err)
		return result, err
	}

	records, verdict := s.validator.ParseTable(table)
	result.Verdict = verdict
	if !verdict.Valid {
		logger.Info("import rejected", "kind", verdict.Kind, "errors", verdict.TotalErrors)
		return result, &core.Error{Kind: verdict.Kind, Message: verdict.Message}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err = s.withWrite(ctx, func() error {
		inserted, duplicates, err := s.store.InsertBatch(records)
		if err != nil {
			return err
		}
		result.Inserted = inserted
		result.Duplicates = len(duplicates)
		return nil
	})
	if err != nil {
		logger.Error("import failed", "error", err)
		return result, err
	}

	logger.Info("import finished",
		"rows", verdict.Rows,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"warnings", verdict.TotalWarnings,
	)
	return result, nil
}

// Package service is the boundary API shared by the HTTP server and the CLI.
//
// Every write follows the same path: validate raw fields, normalize them into
// a core.Record, then hand the record to the store while holding the write
// gate. Reads go straight to the store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
	"github.com/JonMunkholm/circadian/internal/store"
)

// ErrWarehouseDisabled is returned by SyncWarehouse when no mirror is set.
var ErrWarehouseDisabled = errors.New("warehouse not configured")

// Mirror receives a full copy of the dataset.
type Mirror interface {
	Replace(ctx context.Context, records []core.Record) (int64, error)
}

// Service wires a store to a validator.
type Service struct {
	store     *store.Store
	validator *core.Validator
	gate      *WriteGate
	mirror    Mirror
	logger    *slog.Logger

	maxImportSize int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMirror enables SyncWarehouse.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithMaxImportSize caps the size of an uploaded file in bytes.
func WithMaxImportSize(n int64) Option {
	return func(s *Service) {
		s.maxImportSize = n
	}
}

// WithWriteWait sets how long a write waits for another to finish.
func WithWriteWait(d time.Duration) Option {
	return func(s *Service) {
		s.gate = NewWriteGate(d)
	}
}

// New creates a Service.
func New(st *store.Store, v *core.Validator, opts ...Option) *Service {
	if v == nil {
		v = core.NewValidator(nil)
	}
	s := &Service{
		store:         st,
		validator:     v,
		gate:          NewWriteGate(DefaultWriteWait),
		logger:        slog.Default(),
		maxImportSize: core.DefaultMaxImportSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Validator returns the validator used for every write.
func (s *Service) Validator() *core.Validator {
	return s.validator
}

// Close waits for an in-flight write to finish.
func (s *Service) Close(ctx context.Context) error {
	return s.gate.WaitForDrain(ctx)
}

// withWrite runs fn while holding the write gate.
func (s *Service) withWrite(ctx context.Context, fn func() error) error {
	if err := s.gate.Acquire(ctx); err != nil {
		return err
	}
	defer s.gate.Release()
	return fn()
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.Scoped(ctx, s.logger)
}

// SyncWarehouse replaces the warehouse copy with the current dataset and
// returns the number of rows written.
func (s *Service) SyncWarehouse(ctx context.Context) (int64, error) {
	if s.mirror == nil {
		return 0, ErrWarehouseDisabled
	}

	data, err := s.store.Read()
	if err != nil {
		return 0, err
	}

	n, err := s.mirror.Replace(ctx, data)
	if err != nil {
		s.log(ctx).Error("warehouse sync failed", "error", err)
		return 0, err
	}
	s.log(ctx).Info("warehouse synced", "rows", n)
	return n, nil
}

// Busy reports whether a write is in progress.
func (s *Service) Busy() bool {
	return s.gate.Busy()
}

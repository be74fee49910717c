package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/circadian/internal/config"
	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
	"github.com/JonMunkholm/circadian/internal/scheduler"
	"github.com/JonMunkholm/circadian/internal/service"
	"github.com/JonMunkholm/circadian/internal/store"
	"github.com/JonMunkholm/circadian/internal/warehouse"
	"github.com/JonMunkholm/circadian/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	logger.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves until SIGINT or SIGTERM. Deferred cleanup always runs before
// main decides the exit code.
func run(cfg *config.Config, logger *slog.Logger) error {
	st, err := store.New(cfg.Storage.DataFile,
		store.WithBackupDir(cfg.Storage.BackupDir),
		store.WithLocation(cfg.Location()),
		store.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open data file %s: %w", cfg.Storage.DataFile, err)
	}

	validator := core.NewValidator(cfg.Location())
	validator.MaxErrors = cfg.Import.MaxErrors
	validator.MaxWarnings = cfg.Import.MaxWarnings

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMaxImportSize(cfg.Import.MaxFileSize),
		service.WithWriteWait(cfg.Storage.WriteWait),
	}

	var wh *warehouse.Warehouse
	if cfg.Warehouse.Enabled() {
		wh, err = warehouse.Open(context.Background(), warehouse.Config{
			URL:      cfg.Warehouse.URL,
			Table:    cfg.Warehouse.Table,
			MaxConns: cfg.Warehouse.MaxConns,
			MinConns: cfg.Warehouse.MinConns,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to warehouse: %w", err)
		}
		defer wh.Close()
		opts = append(opts, service.WithMirror(wh))
	}

	svc := service.New(st, validator, opts...)

	sched := scheduler.New(cfg.BackupLocation(), logger)
	if cfg.Backup.Schedule != "" {
		job := scheduler.BackupJob(svc, wh != nil, logger)
		if err := sched.Add("backup", cfg.Backup.Schedule, job); err != nil {
			return err
		}
		sched.Start()
		logger.Info("backups scheduled", "next", sched.Next())
	}

	server := web.NewServer(svc, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		sched.Stop(shutdownCtx)

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		// Let an in-flight write reach the disk.
		if err := svc.Close(shutdownCtx); err != nil {
			logger.Warn("write did not complete in time", "error", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sched.Stop(context.Background())
		return err
	}
	<-done
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/circadian/internal/config"
	"github.com/JonMunkholm/circadian/internal/core"
	"github.com/JonMunkholm/circadian/internal/logging"
	"github.com/JonMunkholm/circadian/internal/service"
	"github.com/JonMunkholm/circadian/internal/store"
	"github.com/JonMunkholm/circadian/internal/warehouse"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *service.Service

	dataFile string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "circadian",
		Short:         "Record and analyze heart rate, blood pressure and energy levels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dataFile, "data-file", "", "data file path (overrides DATA_FILE)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newAddCmd(a),
		newImportCmd(a),
		newValidateFileCmd(a),
		newExportCmd(a),
		newStatsCmd(a),
		newPatternsCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newDeletePersonCmd(a),
		newClearCmd(a),
		newBackupCmd(a),
		newSyncCmd(a),
	)

	// Errors go to stderr in the same user-facing form the API returns.
	root.SetErr(os.Stderr)
	wrapRunE(root)
	return root
}

// wrapRunE prints failures with their error code before cobra returns them.
func wrapRunE(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		run := c.RunE
		if run == nil {
			continue
		}
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", core.FormatUserError(err))
			}
			return err
		}
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dataFile != "" {
		cfg.Storage.DataFile = a.dataFile
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	// stdout carries command output, so logs go to stderr.
	a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

	st, err := store.New(cfg.Storage.DataFile,
		store.WithBackupDir(cfg.Storage.BackupDir),
		store.WithLocation(cfg.Location()),
		store.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	validator := core.NewValidator(cfg.Location())
	validator.MaxErrors = cfg.Import.MaxErrors
	validator.MaxWarnings = cfg.Import.MaxWarnings

	a.svc = service.New(st, validator,
		service.WithLogger(a.logger),
		service.WithMaxImportSize(cfg.Import.MaxFileSize),
		service.WithWriteWait(cfg.Storage.WriteWait),
	)
	return nil
}

// withWarehouse rebuilds the service with the Postgres mirror attached.
func (a *app) withWarehouse(ctx context.Context) (*service.Service, func(), error) {
	if !a.cfg.Warehouse.Enabled() {
		return nil, nil, service.ErrWarehouseDisabled
	}
	wh, err := warehouse.Open(ctx, warehouse.Config{
		URL:      a.cfg.Warehouse.URL,
		Table:    a.cfg.Warehouse.Table,
		MaxConns: a.cfg.Warehouse.MaxConns,
		MinConns: a.cfg.Warehouse.MinConns,
	}, a.logger)
	if err != nil {
		return nil, nil, err
	}

	svc := service.New(a.svc.Store(), a.svc.Validator(),
		service.WithLogger(a.logger),
		service.WithMirror(wh),
	)
	return svc, wh.Close, nil
}

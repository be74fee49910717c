package scheduler

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/circadian/internal/service"
)

// BackupJob writes a timestamped backup and then, if a warehouse is
// configured, refreshes the mirror.
func BackupJob(svc *service.Service, syncWarehouse bool, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		res, err := svc.Backup(ctx, "")
		if err != nil {
			return err
		}
		logger.Info("scheduled backup written", "backup_id", res.ID, "path", res.Path)

		if !syncWarehouse {
			return nil
		}
		n, err := svc.SyncWarehouse(ctx)
		if err != nil {
			return err
		}
		logger.Info("scheduled warehouse sync", "rows", n)
		return nil
	}
}

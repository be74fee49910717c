package store

import (
	"os"
	"path/filepath"
)

// BackupNameLayout names automatic backups; the timestamp is local wall time.
const BackupNameLayout = "circadian_data_backup_20060102_150405.csv"

// Backup writes a copy of the current table to name and returns the path
// written. An empty name generates one from the clock. Relative names are
// placed in the backup directory.
func (s *Store) Backup(name string) (string, error) {
	data, err := s.Read()
	if err != nil {
		return "", err
	}

	if name == "" {
		name = s.now().Format(BackupNameLayout)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.backupDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", ioError("create backup directory", err)
	}

	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// BackupData is Backup without an error; ok is false on failure.
func (s *Store) BackupData(name string) (string, bool) {
	path, err := s.Backup(name)
	if err != nil {
		s.logFailure("backup data", err, "name", name)
		return "", false
	}
	s.logger.Info("data backed up", "path", path)
	return path, true
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/circadian/internal/service"
)

// run executes the CLI against a data file in dir.
func run(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATA_FILE", filepath.Join(dir, "data.csv"))
	t.Setenv("BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func addArgs(person, ts, hr string) []string {
	return []string{"add", "-p", person, "-t", ts, "--hr", hr, "--systolic", "120", "--diastolic", "80", "-e", "6"}
}

func TestAddListDelete(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, dir, addArgs("alice", "2024-03-05 08:00:00", "62")...)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Entry saved: alice at 2024-03-05 08:00:00") {
		t.Errorf("add output = %q", out)
	}

	if _, _, err := run(t, dir, addArgs("bob", "2024-03-05 09:00", "70")...); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, errOut, err := run(t, dir, addArgs("alice", "2024-03-05 08:00:00", "64")...)
	if err == nil {
		t.Fatal("duplicate add succeeded")
	}
	if !strings.Contains(errOut, "STO001") {
		t.Errorf("stderr = %q, want STO001", errOut)
	}

	out, _, err = run(t, dir, "list", "-p", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1") || !strings.Contains(out, "2024-03-05 09:00:00") || strings.Contains(out, "alice") {
		t.Errorf("list output = %q", out)
	}

	if _, _, err := run(t, dir, "delete", "0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, _, _ = run(t, dir, "list")
	if strings.Contains(out, "alice") {
		t.Errorf("alice still listed: %q", out)
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	_, errOut, err := run(t, dir, addArgs("alice", "2024-03-05 08:00:00", "300")...)
	if err == nil {
		t.Fatal("invalid add succeeded")
	}
	if !strings.Contains(errOut, "VAL003") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestImportValidateExport(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	header := "person_id,timestamp,heart_rate,systolic_bp,diastolic_bp,energy_level,notes\n"
	if err := os.WriteFile(good, []byte(header+"alice,2024-03-04 08:00:00,60,120,80,6,\nbob,2024-03-05T09:00:00,75,118,76,7,walk\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte(header+"carol,2024-03-04 08:00:00,999,120,80,6,\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, dir, "validate-file", good)
	if err != nil || !strings.Contains(out, "CSV data is valid (2 rows)") {
		t.Errorf("validate-file good: err=%v out=%q", err, out)
	}

	out, _, err = run(t, dir, "validate-file", bad)
	if err == nil || !strings.Contains(out, "Row 1:") {
		t.Errorf("validate-file bad: err=%v out=%q", err, out)
	}

	out, _, err = run(t, dir, "import", good)
	if err != nil || !strings.Contains(out, "Imported 2 entries (0 duplicates skipped)") {
		t.Errorf("import: err=%v out=%q", err, out)
	}

	if _, _, err := run(t, dir, "import", bad); err == nil {
		t.Error("import of invalid file succeeded")
	}

	out, _, err = run(t, dir, "export", "-p", "bob")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "bob,2024-03-05 09:00:00,75,118,76,7,walk") {
		t.Errorf("export = %q", out)
	}

	exportPath := filepath.Join(dir, "out.csv")
	if _, _, err := run(t, dir, "export", "-o", exportPath, "--start", "2024-03-05"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "alice") {
		t.Errorf("date filter ignored: %q", data)
	}

	if _, _, err := run(t, dir, "export", "--start", "March"); err == nil {
		t.Error("bad date accepted")
	}
}

func TestStatsPatternsAndPersons(t *testing.T) {
	dir := t.TempDir()
	for _, a := range [][]string{
		addArgs("alice", "2024-03-04 08:00:00", "60"),
		addArgs("alice", "2024-03-05 08:30:00", "64"),
		addArgs("bob", "2024-03-05 21:00:00", "80"),
	} {
		if _, _, err := run(t, dir, a...); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err := run(t, dir, "stats", "-p", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Entries  2") || !strings.Contains(out, "62.0") {
		t.Errorf("stats = %q", out)
	}

	out, _, err = run(t, dir, "patterns")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Monday", "Tuesday", "Peak energy: 08:00, 21:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("patterns missing %q: %q", want, out)
		}
	}

	out, _, err = run(t, dir, "delete-person", "alice")
	if err != nil || !strings.Contains(out, "Deleted 2 entries for alice") {
		t.Errorf("delete-person: err=%v out=%q", err, out)
	}
}

func TestClearBackupSync(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := run(t, dir, addArgs("alice", "2024-03-04 08:00:00", "60")...); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, dir, "backup", "--name", "snap.csv")
	if err != nil || !strings.Contains(out, filepath.Join(dir, "backups", "snap.csv")) {
		t.Errorf("backup: err=%v out=%q", err, out)
	}

	if _, _, err := run(t, dir, "clear"); err == nil {
		t.Error("clear without --yes succeeded")
	}
	if _, _, err := run(t, dir, "clear", "--yes"); err != nil {
		t.Fatal(err)
	}
	out, _, _ = run(t, dir, "stats")
	if !strings.Contains(out, "No data") {
		t.Errorf("stats after clear = %q", out)
	}

	if _, _, err := run(t, dir, "sync"); !errors.Is(err, service.ErrWarehouseDisabled) {
		t.Errorf("sync err = %v, want ErrWarehouseDisabled", err)
	}
}

package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestMigrationFiles_OrderedByVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"010_add_indexes.sql",
		"002_question_positions.sql",
		"001_initial_schema.sql",
		"README.md",
		"003_notes.txt",
		"000_bootstrap.sql",
		"draft.sql",
	)
	if err := os.Mkdir(filepath.Join(dir, "004_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		version int
		name    string
	}{
		{1, "001_initial_schema.sql"},
		{2, "002_question_positions.sql"},
		{10, "010_add_indexes.sql"},
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %+v", len(want), files)
	}
	for i, w := range want {
		if files[i].version != w.version || files[i].name != w.name {
			t.Fatalf("migration %d: expected %d %s, got %+v", i, w.version, w.name, files[i])
		}
	}
}

func TestMigrationFiles_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "001_initial_schema.sql", "1_other.sql")

	_, err := migrationFiles(dir)
	if err == nil || !strings.Contains(err.Error(), "share version 1") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMigrationFiles_RepositorySchema(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) == 0 || files[0].version != 1 {
		t.Fatalf("expected the initial schema as version 1, got %+v", files)
	}
}

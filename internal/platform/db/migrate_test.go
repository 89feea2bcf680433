package db

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ehr/fhirtransform/migrations"
)

func TestLoadMigrations_FromDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"README.md":      "not a migration",
		"notes.sql":      "no numeric prefix",
		"abc_x.sql":      "non-numeric prefix",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}

	migs, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}
	wantVersions := []int{1, 2, 10}
	for i, v := range wantVersions {
		if migs[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migs[i].Version)
		}
	}
	if migs[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL content: %s", migs[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigratorFS(nil, fsys).LoadMigrations(); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "nope")).LoadMigrations()
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migs, err := NewMigratorFS(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) == 0 || migs[0].Name != "001_bundles.sql" {
		t.Fatalf("expected 001_bundles.sql first, got %+v", migs)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	done := map[int]time.Time{1: time.Now(), 3: time.Now()}

	got := pending(all, done)
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("expected only version 2 pending, got %+v", got)
	}
}

package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/castingly/castingly-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestActorsMigrationContainsColumns(t *testing.T) {
	content := readMigration(t, "create_actors")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS actors",
		"avatar_url TEXT",
		"metadata JSONB NOT NULL DEFAULT '{}'::jsonb",
		"DROP TABLE IF EXISTS actors",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBackfillRunsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_media_backfill_runs")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS media_backfill_runs",
		"CHECK (trigger IN ('api', 'cron', 'cli'))",
		"CHECK (max_items BETWEEN 1 AND 10000)",
		"DROP TABLE IF EXISTS media_backfill_runs",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := migrate.ValidateFS(migrate.FS()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.FS(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) == 0 || len(onDisk) != len(embedded) {
		t.Fatalf("embedded %v does not match disk %v", embedded, onDisk)
	}
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	for _, name := range []string{"20250101000000_a.sql", "20250101000000_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := migrate.ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Actor Headline!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_actor_headline.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsExistingName(t *testing.T) {
	dir := t.TempDir()
	if _, err := migrate.CreateSQLMigration(dir, "actor_headline"); err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "Actor Headline"); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

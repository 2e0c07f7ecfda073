package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate dir: %v", err)
	}
}

func TestAccountsMigrationGuardsBalance(t *testing.T) {
	content := readMigration(t, "*_create_accounts.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"CHECK (credit_balance >= 0)",
		"DROP TABLE IF EXISTS accounts",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDocumentsMigrationKeepsOneRowPerType(t *testing.T) {
	content := readMigration(t, "*_create_documents.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS documents",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_documents_project_type",
		"ON documents (project_id, type)",
		"FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS documents",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEnumMigrationListsEveryDocumentType(t *testing.T) {
	content := readMigration(t, "*_create_domain_enums.sql")
	for _, sub := range []string{"'prd'", "'user_flow'", "'architecture'", "'schema'", "'api_spec'", "'generating_docs'", "'ai_answer'"} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing enum value %s", sub)
		}
	}
}

func TestEnsureSQLiteSchemaIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx := context.Background()
	if err := migrate.EnsureSQLiteSchema(ctx, conn); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := migrate.EnsureSQLiteSchema(ctx, conn); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	for _, table := range []string{"accounts", "projects", "documents", "credit_usage", "outbox_events", "outbox_dlq"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Project Archive!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_project_archive.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration does not validate: %v", err)
	}
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20261002000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected unbalanced StatementBegin to fail validation")
	}
}

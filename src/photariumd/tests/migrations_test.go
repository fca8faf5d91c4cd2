package tests

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/db/migrations"
)

// setupMigrationTestDB creates an in-memory SQLite database for migration testing
func setupMigrationTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

func tableColumns(t *testing.T, database *sql.DB, table string) map[string]bool {
	t.Helper()

	rows, err := database.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to inspect table %s: %v", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		cols[name] = true
	}
	return cols
}

func TestMigrationRunnerRun(t *testing.T) {
	database := setupMigrationTestDB(t)
	runner := migrations.NewRunner(database)

	pending, err := runner.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 3 {
		t.Fatalf("expected 3 pending migrations on a fresh database, got %d", pending)
	}

	if err := runner.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	version, err := runner.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected current version 3, got %d", version)
	}

	pending, err = runner.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected 0 pending after Run, got %d", pending)
	}

	for _, table := range []string{"groups", "users", "revoked_tokens", "provider_configs", "albums", "photos", "settings"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestMigrationRunnerIdempotent(t *testing.T) {
	database := setupMigrationTestDB(t)
	runner := migrations.NewRunner(database)

	if err := runner.Run(); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if err := runner.Run(); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count applied migrations: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 recorded migrations after double Run, got %d", count)
	}
}

func TestMigrationAlbumColumns(t *testing.T) {
	database := setupMigrationTestDB(t)
	runner := migrations.NewRunner(database)

	if err := runner.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cols := tableColumns(t, database, "albums")
	for _, col := range []string{"allowed_groups", "allowed_users", "photo_count"} {
		if !cols[col] {
			t.Errorf("albums table is missing column %s", col)
		}
	}

	photoCols := tableColumns(t, database, "photos")
	for _, col := range []string{"provider", "path", "is_published", "sort_order"} {
		if !photoCols[col] {
			t.Errorf("photos table is missing column %s", col)
		}
	}

	var name string
	err := database.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_albums_sort'",
	).Scan(&name)
	if err != nil {
		t.Error("expected idx_albums_sort index after migrations")
	}
}

// The daemon bootstraps its schema directly while the migration runner
// serves upgrades of persisted databases; the two must describe the same
// tables or photo and provider rows written by one are unreadable by code
// compiled against the other.
func TestRuntimeSchemaMatchesMigrations(t *testing.T) {
	migrated := setupMigrationTestDB(t)
	if err := migrations.NewRunner(migrated).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	runtime, err := db.New(db.Config{PersistPath: "", LoadOnStart: false})
	if err != nil {
		t.Fatalf("failed to create runtime database: %v", err)
	}
	t.Cleanup(func() { runtime.Shutdown() })

	tables := []string{
		"groups", "users", "revoked_tokens", "provider_configs",
		"albums", "photos", "settings",
	}
	for _, table := range tables {
		want := tableColumns(t, migrated, table)
		got := tableColumns(t, runtime.DB(), table)
		for col := range want {
			if !got[col] {
				t.Errorf("runtime schema is missing %s.%s", table, col)
			}
		}
		for col := range got {
			if !want[col] {
				t.Errorf("migrations are missing %s.%s", table, col)
			}
		}
	}
}

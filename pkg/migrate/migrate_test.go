package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	cases := map[string]string{
		"postgres": "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite3",
	}
	for driver, want := range cases {
		got, err := Dialect(driver)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := Dialect("oracle")
	require.Error(t, err)
}

func TestShippedMigrationsAreValid(t *testing.T) {
	versions, err := ValidateEmbedded()
	require.NoError(t, err)
	require.Equal(t, []string{"20260301090000", "20260301090500"}, versions)

	onDisk, err := ValidateDir("migrations")
	require.NoError(t, err)
	require.Equal(t, versions, onDisk)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	_, err := ValidateDir(dir)
	require.Error(t, err)
}

func TestValidateDirRejectsDialectOnlySQL(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE x (id SERIAL PRIMARY KEY, meta JSONB);\n-- +goose Down\nDROP TABLE x;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260401000000_create_x.sql"), []byte(body), 0o644))
	_, err := ValidateDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres-only")

	// mentions inside comments are fine
	body = "-- +goose Up\n-- no SERIAL here\nCREATE TABLE y (id INT);\n-- +goose Down\nDROP TABLE y;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260401000000_create_x.sql"), []byte(body), 0o644))
	_, err = ValidateDir(dir)
	require.NoError(t, err)
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Source Column!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_source_column.sql"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "-- +goose Up")
	_, err = ValidateDir(dir)
	require.NoError(t, err)

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestRunUpCreatesRunJournal(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, Run(context.Background(), sqlDB, "sqlite", "", "up"))
	require.True(t, conn.Migrator().HasTable("pipeline_runs"))
	require.True(t, conn.Migrator().HasTable("pipeline_run_drops"))

	require.NoError(t, Run(context.Background(), sqlDB, "sqlite", "", "down"))
	require.False(t, conn.Migrator().HasTable("pipeline_run_drops"))
}

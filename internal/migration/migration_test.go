package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindModuleRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module "+modulePath+"\n\ngo 1.23.0\n"), 0o644))

	nested := filepath.Join(root, "internal", "migration")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	// A go.mod for some other module on the way up is skipped.
	require.NoError(t, os.WriteFile(filepath.Join(root, "internal", "go.mod"), []byte("module example.com/other\n"), 0o644))

	got, err := findModuleRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = findModuleRoot(t.TempDir())
	assert.Error(t, err)
}

func TestGetMigrationsDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MIGRATIONS_DIR", dir)

	got, err := getMigrationsDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestLatestVersion(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	root, err := findModuleRoot(wd)
	require.NoError(t, err)

	version, err := latestVersion(filepath.Join(root, "migrations"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	version, err = latestVersion(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, version)
}

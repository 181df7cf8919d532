package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLibpqEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"PGHOST", "PGPORT", "PGDATABASE", "PGUSER", "PGPASSWORD", "PGSSLMODE"} {
		t.Setenv(name, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
}

func TestFindConfigFile_ExplicitPath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("engine: sqlite"), 0o644))

	path, err := findConfigFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, tmpFile, path)
}

func TestFindConfigFile_ExplicitPathNotFound(t *testing.T) {
	_, err := findConfigFile("/nonexistent/path/viewmig.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestFindConfigFile_AutoDiscoveryStopsAtRepoRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	nested := filepath.Join(root, "deep", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	path, err := findConfigFile("")
	require.NoError(t, err)
	assert.Empty(t, path)

	configPath := filepath.Join(root, "viewmig.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine: sqlite"), 0o644))

	path, err = findConfigFile("")
	require.NoError(t, err)

	expectedPath, _ := filepath.EvalSymlinks(configPath)
	actualPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, expectedPath, actualPath)
}

func TestLoad_Defaults(t *testing.T) {
	clearLibpqEnv(t)
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	chdir(t, root)

	cfg, path, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, path)

	assert.Equal(t, "views.yaml", cfg.Declarations)
	assert.Equal(t, "migrations", cfg.HistoryDir)
	assert.Equal(t, "postgresql", cfg.Engine)
	assert.Empty(t, cfg.TargetEngines)
	assert.Equal(t, "public", cfg.Inspect.Schema)
	assert.Equal(t, 4, cfg.Inspect.Concurrency)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "viewmig", cfg.Database.ApplicationName)
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	clearLibpqEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "viewmig.yaml")
	content := `
declarations: db/views.yaml
engine: sqlite
target_engines: [postgresql, sqlite]
database:
  url: file:app.db
inspect:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	t.Setenv("VIEWMIG_INSPECT_CONCURRENCY", "2")
	t.Setenv("VIEWMIG_LOG_FORMAT", "json")

	cfg, path, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, path)

	assert.Equal(t, filepath.Join(dir, "db", "views.yaml"), cfg.Declarations)
	assert.Equal(t, "migrations", cfg.HistoryDir, "defaults are not rebased onto the config directory")
	assert.Equal(t, "sqlite", cfg.Engine)
	assert.Equal(t, []string{"postgresql", "sqlite"}, cfg.TargetEngines)
	assert.Equal(t, "file:app.db", cfg.Database.URL)
	assert.Equal(t, 2, cfg.Inspect.Concurrency, "env overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_LibpqEnvFallback(t *testing.T) {
	clearLibpqEnv(t)
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGDATABASE", "app")
	t.Setenv("VIEWMIG_DATABASE_USER", "migrator")
	t.Setenv("PGUSER", "ignored")

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	chdir(t, root)

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "app", cfg.Database.Name)
	assert.Equal(t, "migrator", cfg.Database.User)
}

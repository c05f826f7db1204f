package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLocalConfig(t *testing.T) {
	t.Run("finds config in the same directory", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, ".lakefetch.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("verbose: true"), 0o644))

		assert.Equal(t, configPath, FindLocalConfig(dir))
	})

	t.Run("finds config in a parent directory", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, ".lakefetch.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"verbose": true}`), 0o644))

		nested := filepath.Join(dir, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		assert.Equal(t, configPath, FindLocalConfig(nested))
	})

	t.Run("prefers yml over yaml", func(t *testing.T) {
		dir := t.TempDir()
		ymlPath := filepath.Join(dir, ".lakefetch.yml")
		require.NoError(t, os.WriteFile(ymlPath, []byte("verbose: true"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".lakefetch.yaml"), []byte("verbose: false"), 0o644))

		assert.Equal(t, ymlPath, FindLocalConfig(dir))
	})

	t.Run("nearest config wins", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".lakefetch.yml"), []byte("verbose: true"), 0o644))

		nested := filepath.Join(dir, "project")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		nearest := filepath.Join(nested, ".lakefetch.toml")
		require.NoError(t, os.WriteFile(nearest, []byte("verbose = true"), 0o644))

		assert.Equal(t, nearest, FindLocalConfig(nested))
	})
}

func TestFindGlobalConfig(t *testing.T) {
	t.Run("empty config dir", func(t *testing.T) {
		assert.Empty(t, FindGlobalConfig(""))
	})

	t.Run("no lakefetch directory", func(t *testing.T) {
		assert.Empty(t, FindGlobalConfig(t.TempDir()))
	})

	t.Run("finds config file", func(t *testing.T) {
		dir := t.TempDir()
		globalDir := filepath.Join(dir, "lakefetch")
		require.NoError(t, os.MkdirAll(globalDir, 0o755))
		configPath := filepath.Join(globalDir, "config.toml")
		require.NoError(t, os.WriteFile(configPath, []byte("verbose = true"), 0o644))

		assert.Equal(t, configPath, FindGlobalConfig(dir))
	})

	t.Run("ignores directories named like config files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "lakefetch", "config.yml"), 0o755))

		assert.Empty(t, FindGlobalConfig(dir))
	})
}

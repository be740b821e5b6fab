package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "nixpkgs", cfg.FlakeRef)
	assert.Empty(t, cfg.System)
	assert.Zero(t, cfg.Workers)
	assert.False(t, cfg.RuntimeOnly)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixtract.yaml")
	content := `flake_ref: github:tweag/nixtract
system: x86_64-linux
runtime_only: true
workers: 8
binary_caches:
  - https://cache.nixos.org
skip_prefixes:
  - bootstrapTools
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "github:tweag/nixtract", cfg.FlakeRef)
	assert.Equal(t, "x86_64-linux", cfg.System)
	assert.True(t, cfg.RuntimeOnly)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, []string{"https://cache.nixos.org"}, cfg.BinaryCaches)
	assert.Equal(t, []string{"bootstrapTools"}, cfg.SkipPrefixes)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixtract.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flake_ref: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixtract.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flake_ref: from-file\n"), 0o644))

	t.Setenv("NIXTRACT_FLAKE_REF", "from-env")
	t.Setenv("NIXTRACT_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.FlakeRef)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_RejectsNegativeWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixtract.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

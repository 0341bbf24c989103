package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMainConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data.xlsx", cfg.DataFile)
	assert.Equal(t, "numbers.docx", cfg.Template)
	assert.Equal(t, 10, cfg.Generator.BatchSize)
	assert.Equal(t, "、", cfg.Generator.Delimiter)
	assert.Equal(t, RotationAvoidRepeat, cfg.Generator.Rotation)
	assert.Equal(t, 3, cfg.Converter.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Converter.RetryBackoff)
	assert.Equal(t, 300, cfg.Raster.DPI)
	assert.Equal(t, 1773, cfg.Stamp.OffsetX)
	assert.Equal(t, 1678, cfg.Stamp.OffsetY)
	assert.InDelta(t, 0.7, cfg.Stamp.Opacity, 1e-9)
	assert.Equal(t, "_印章", cfg.Stamp.OutputSuffix)
	require.NoError(t, cfg.Validate())
}

func TestLoadMainConfig_ParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_file: input.csv
strict: true
generator:
  batch_size: 5
  rotation: round-robin
  row_fields: [FAREN, EMAIL]
  seed: 42
converter:
  retry_backoff: 500ms
stamp:
  mode: global
  opacity: 0.5
records:
  transformation_rules:
    - field: NUMBERS
      actions:
        - type: prepend_string
          value: "+86 "
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "input.csv", cfg.DataFile)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 5, cfg.Generator.BatchSize)
	assert.Equal(t, RotationRoundRobin, cfg.Generator.Rotation)
	assert.Equal(t, []string{"FAREN", "EMAIL"}, cfg.Generator.RowFields)
	assert.Equal(t, uint64(42), cfg.Generator.Seed)
	assert.Equal(t, 500*time.Millisecond, cfg.Converter.RetryBackoff)
	assert.Equal(t, StampModeGlobal, cfg.Stamp.Mode)
	assert.InDelta(t, 0.5, cfg.Stamp.Opacity, 1e-9)
	require.Len(t, cfg.Records.TransformationRules, 1)
	assert.Equal(t, "+86 ", cfg.Records.TransformationRules[0].Actions[0].Value)
	// Unset fields still get defaults.
	assert.Equal(t, "、", cfg.Generator.Delimiter)
}

func TestLoadMainConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator: [unclosed"), 0o644))

	_, err := LoadMainConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.Generator.BatchSize = -1 }, "batch_size"},
		{"rotation", func(c *Config) { c.Generator.Rotation = "random" }, "generator.rotation"},
		{"date order", func(c *Config) { c.Generator.IssueDateEnd = "2020-01-01" }, "must be after"},
		{"date equal", func(c *Config) { c.Generator.IssueDateEnd = c.Generator.IssueDateStart }, "must be after"},
		{"date format", func(c *Config) { c.Generator.IssueDateStart = "01/01/2021" }, "issue_date_start"},
		{"opacity", func(c *Config) { c.Stamp.Opacity = 1.5 }, "stamp.opacity"},
		{"stamp mode", func(c *Config) { c.Stamp.Mode = "none" }, "stamp.mode"},
		{"page suffix", func(c *Config) { c.Raster.PageSuffix = "_page" }, "page_suffix"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DOCBATCH_PDFTOPPM=/opt/poppler/bin/pdftoppm\n"), 0o644))
	t.Setenv(EnvSofficePath, "/usr/lib/libreoffice/program/soffice")
	// godotenv never overrides a variable that exists, even when empty.
	t.Setenv(EnvPdftoppmPath, "")
	require.NoError(t, os.Unsetenv(EnvPdftoppmPath))
	t.Setenv(EnvLogLevel, "")

	cfg := Default()
	cfg.WorkDir = dir
	require.NoError(t, cfg.LoadEnv())

	assert.Equal(t, "/usr/lib/libreoffice/program/soffice", cfg.Converter.SofficePath)
	assert.Equal(t, "/opt/poppler/bin/pdftoppm", cfg.Raster.PdftoppmPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnv_MissingEnvFile(t *testing.T) {
	t.Setenv(EnvSofficePath, "")
	t.Setenv(EnvPdftoppmPath, "")
	t.Setenv(EnvLogLevel, "")
	cfg := Default()
	cfg.WorkDir = t.TempDir()
	require.NoError(t, cfg.LoadEnv())
	assert.Equal(t, "soffice", cfg.Converter.SofficePath)
}

func TestPath(t *testing.T) {
	cfg := Default()
	cfg.WorkDir = "/work"
	assert.Equal(t, filepath.Join("/work", "data.xlsx"), cfg.Path("data.xlsx"))
	assert.Equal(t, "/abs/file", cfg.Path("/abs/file"))
}

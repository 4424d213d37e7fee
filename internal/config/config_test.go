package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PROCURE_ADDR", "PORT", "PROCURE_BASE_URL", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"PROCURE_GENERATOR", "PROCURE_A2A_ENDPOINT", "PROCURE_ARCHIVE", "PROCURE_POLICY",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME", "PROCURE_LOG_LEVEL", "PROCURE_LOG_FORMAT",
		"PROCURE_CANCEL_ON_DISCONNECT",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "auto", cfg.Generator.Mode)
	assert.Equal(t, 4, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.MaxParallel)
	assert.Equal(t, 1, cfg.Pipeline.Retries)
	assert.False(t, cfg.Pipeline.CancelOnDisconnect)
	assert.Empty(t, cfg.Archive.Path)

	oc := cfg.Orchestrator()
	assert.Equal(t, geo.Paris, oc.Reference)
	assert.Equal(t, orchestrator.DefaultPacing, oc.Pacing)
	assert.InDelta(t, 0.85, oc.Constraints.ReliabilityThreshold, 1e-9)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "procure.yaml", `
server:
  addr: ":9000"
generator:
  mode: mock
  timeout: 5s
pipeline:
  batchSize: 2
  maxParallel: 8
  retries: 3
  retryDelay: 250ms
  reference: {lat: 52.52, lon: 13.405}
  pacing: false
  cancelOnDisconnect: true
policy:
  budgetUSD: 20000
  allowedCountries: [DE, FR]
  reliabilityThreshold: 0.9
archive:
  path: data/runs.db
log:
  level: debug
  format: json
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Generator.Timeout)
	assert.True(t, cfg.Pipeline.CancelOnDisconnect)
	assert.Equal(t, "data/runs.db", cfg.Archive.Path)

	oc := cfg.Orchestrator()
	assert.Equal(t, 2, oc.BatchSize)
	assert.Equal(t, 8, oc.MaxParallel)
	assert.Equal(t, 3, oc.Retries)
	assert.Equal(t, 250*time.Millisecond, oc.RetryDelay)
	assert.Equal(t, geo.Point{Lat: 52.52, Lon: 13.405}, oc.Reference)
	assert.Equal(t, orchestrator.Pacing{}, oc.Pacing)
	assert.Equal(t, []string{"DE", "FR"}, oc.Constraints.AllowedCountries)
	assert.InDelta(t, 20000, oc.Constraints.BudgetUSD, 1e-9)

	s := cfg.GeneratorSettings(nil)
	assert.Equal(t, generator.ModeMock, s.Mode)
}

func TestLoad_EnvOverridesFileAndDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "procure.yml", "generator:\n  mode: openai\n  apiKey: from-file\n")
	writeFile(t, dir, ".env", "PROCURE_ARCHIVE=/tmp/from-dotenv.db\n")
	// .env never overrides a variable that is already set, even when empty.
	require.NoError(t, os.Unsetenv("PROCURE_ARCHIVE"))
	t.Setenv("PROCURE_GENERATOR", "mock")
	t.Setenv("PORT", "7070")
	t.Setenv("PROCURE_CANCEL_ON_DISCONNECT", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Generator.Mode)
	assert.Equal(t, "from-file", cfg.Generator.APIKey)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Archive.Path)
	assert.True(t, cfg.Pipeline.CancelOnDisconnect)
}

func TestLoad_ProcureAddrBeatsPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("PROCURE_ADDR", "127.0.0.1:8181")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8181", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("bad yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "procure.yml", "pipeline: [unclosed")
		_, err := Load(dir)
		assert.ErrorContains(t, err, "config: parse")
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("PROCURE_CANCEL_ON_DISCONNECT", "sometimes")
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "PROCURE_CANCEL_ON_DISCONNECT")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown mode", func(c *Config) { c.Generator.Mode = "gpt" }, "generator.mode"},
		{"zero batch", func(c *Config) { c.Pipeline.BatchSize = 0 }, "batchSize"},
		{"zero parallel", func(c *Config) { c.Pipeline.MaxParallel = 0 }, "maxParallel"},
		{"negative retries", func(c *Config) { c.Pipeline.Retries = -1 }, "retries"},
		{"bad reference", func(c *Config) { c.Pipeline.Reference = &geo.Point{Lat: 120} }, "reference"},
		{"threshold", func(c *Config) { c.Policy.ReliabilityThreshold = 1.5 }, "reliabilityThreshold"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	c := Default()
	c.Log.Level = "warn"
	logger := c.NewLogger(os.Stderr)
	assert.False(t, logger.Enabled(t.Context(), -4))
	assert.True(t, logger.Enabled(t.Context(), 8))
}

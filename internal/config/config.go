// Package config loads service settings from procure.yml, a .env file, and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/geo"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// Config holds every setting of the service and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Policy    PolicyConfig    `yaml:"policy"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"baseURL,omitempty"` // public URL used in agent cards
}

// GeneratorConfig selects the content generator.
type GeneratorConfig struct {
	Mode        string        `yaml:"mode"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	BaseURL     string        `yaml:"baseURL,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	A2AEndpoint string        `yaml:"a2aEndpoint,omitempty"`
}

// PipelineConfig tunes runs.
type PipelineConfig struct {
	BatchSize   int           `yaml:"batchSize"`
	MaxParallel int           `yaml:"maxParallel"`
	Retries     int           `yaml:"retries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	Reference   *geo.Point    `yaml:"reference,omitempty"`
	Pacing      bool          `yaml:"pacing"`

	// CancelOnDisconnect stops a streamed run when its client goes away.
	// Otherwise the run finishes and its remaining events are discarded.
	CancelOnDisconnect bool `yaml:"cancelOnDisconnect"`
}

// PolicyConfig configures compliance checks.
type PolicyConfig struct {
	Path                 string   `yaml:"path,omitempty"` // rego module; empty uses the built-in policy
	BudgetUSD            float64  `yaml:"budgetUSD,omitempty"`
	AllowedCountries     []string `yaml:"allowedCountries,omitempty"`
	ReliabilityThreshold float64  `yaml:"reliabilityThreshold"`
	MaxLeadDays          int      `yaml:"maxLeadDays,omitempty"`
}

// ArchiveConfig configures run persistence. An empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName"`
}

// LogConfig configures the default slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in settings.
func Default() *Config {
	d := orchestrator.DefaultConfig()
	return &Config{
		Server:    ServerConfig{Addr: ":8000"},
		Generator: GeneratorConfig{Mode: string(generator.ModeAuto), Timeout: 60 * time.Second},
		Pipeline: PipelineConfig{
			BatchSize:   d.BatchSize,
			MaxParallel: d.MaxParallel,
			Retries:     d.Retries,
			RetryDelay:  d.RetryDelay,
			Pacing:      true,
		},
		Policy:    PolicyConfig{ReliabilityThreshold: d.Constraints.ReliabilityThreshold},
		Telemetry: TelemetryConfig{ServiceName: "procure"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads dir/.env (when present) into the environment, then
// procure.yml or procure.yaml from dir, then applies environment
// overrides. A missing config file is not an error.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	for _, name := range []string{"procure.yml", "procure.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		break
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envStr("PROCURE_ADDR", &c.Server.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PROCURE_ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	envStr("PROCURE_BASE_URL", &c.Server.BaseURL)
	envStr("OPENAI_API_KEY", &c.Generator.APIKey)
	envStr("OPENAI_BASE_URL", &c.Generator.BaseURL)
	envStr("OPENAI_MODEL", &c.Generator.Model)
	envStr("PROCURE_GENERATOR", &c.Generator.Mode)
	envStr("PROCURE_A2A_ENDPOINT", &c.Generator.A2AEndpoint)
	envStr("PROCURE_ARCHIVE", &c.Archive.Path)
	envStr("PROCURE_POLICY", &c.Policy.Path)
	envStr("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)
	envStr("PROCURE_LOG_LEVEL", &c.Log.Level)
	envStr("PROCURE_LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("PROCURE_CANCEL_ON_DISCONNECT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PROCURE_CANCEL_ON_DISCONNECT: %w", err)
		}
		c.Pipeline.CancelOnDisconnect = b
	}
	return nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch generator.Mode(c.Generator.Mode) {
	case generator.ModeAuto, generator.ModeOpenAI, generator.ModeA2A, generator.ModeMock:
	default:
		errs = append(errs, fmt.Errorf("generator.mode %q is not one of auto, openai, a2a, mock", c.Generator.Mode))
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generator.temperature %v is outside [0, 2]", c.Generator.Temperature))
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.batchSize must be at least 1, got %d", c.Pipeline.BatchSize))
	}
	if c.Pipeline.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("pipeline.maxParallel must be at least 1, got %d", c.Pipeline.MaxParallel))
	}
	if c.Pipeline.Retries < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retries must not be negative, got %d", c.Pipeline.Retries))
	}
	if r := c.Pipeline.Reference; r != nil && (r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180) {
		errs = append(errs, fmt.Errorf("pipeline.reference %v is not a valid coordinate", *r))
	}
	if t := c.Policy.ReliabilityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("policy.reliabilityThreshold %v is outside [0, 1]", t))
	}
	if c.Policy.BudgetUSD < 0 {
		errs = append(errs, fmt.Errorf("policy.budgetUSD must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Orchestrator converts the pipeline and policy settings.
func (c *Config) Orchestrator() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.BatchSize = c.Pipeline.BatchSize
	oc.MaxParallel = c.Pipeline.MaxParallel
	oc.Retries = c.Pipeline.Retries
	oc.RetryDelay = c.Pipeline.RetryDelay
	if c.Pipeline.Reference != nil {
		oc.Reference = *c.Pipeline.Reference
	}
	if !c.Pipeline.Pacing {
		oc.Pacing = orchestrator.Pacing{}
	}
	oc.Constraints = orchestrator.Constraints{
		BudgetUSD:            c.Policy.BudgetUSD,
		AllowedCountries:     c.Policy.AllowedCountries,
		ReliabilityThreshold: c.Policy.ReliabilityThreshold,
		MaxLeadDays:          c.Policy.MaxLeadDays,
	}
	return oc
}

// GeneratorSettings converts the generator settings.
func (c *Config) GeneratorSettings(logger *slog.Logger) generator.Settings {
	return generator.Settings{
		Mode:        generator.Mode(c.Generator.Mode),
		APIKey:      c.Generator.APIKey,
		BaseURL:     c.Generator.BaseURL,
		Model:       c.Generator.Model,
		Temperature: c.Generator.Temperature,
		Timeout:     c.Generator.Timeout,
		A2AEndpoint: c.Generator.A2AEndpoint,
		Logger:      logger,
	}
}

// NewLogger builds the slog logger described by c.Log, writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

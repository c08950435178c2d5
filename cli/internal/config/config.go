package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/pricing"
)

// Pricing selects the cost model. A non-empty Preset wins over the explicit rates.
type Pricing struct {
	Preset           string  `yaml:"preset,omitempty" env:"CLAWTOP_PRICING_PRESET"`
	InputPerMillion  float64 `yaml:"input_per_million" env:"CLAWTOP_INPUT_PER_MILLION" env-default:"2.50"`
	OutputPerMillion float64 `yaml:"output_per_million" env:"CLAWTOP_OUTPUT_PER_MILLION" env-default:"10.0"`
}

// Monitor configures the background audit service
type Monitor struct {
	Interval    time.Duration `yaml:"interval" env:"CLAWTOP_MONITOR_INTERVAL" env-default:"1h"`
	AlertTokens int64         `yaml:"alert_tokens" env:"CLAWTOP_ALERT_TOKENS" env-default:"100000"`
	LogFile     string        `yaml:"log_file,omitempty" env:"CLAWTOP_MONITOR_LOG"`
}

// Config holds the CLI configuration
type Config struct {
	AgentsDir       string  `yaml:"agents_dir" env:"CLAWTOP_AGENTS_DIR" env-default:"~/.openclaw/agents"`
	LogsDir         string  `yaml:"logs_dir" env:"CLAWTOP_LOGS_DIR" env-default:"/tmp/openclaw"`
	Limit           int     `yaml:"limit" env:"CLAWTOP_LIMIT" env-default:"20"`
	Detail          bool    `yaml:"detail" env:"CLAWTOP_DETAIL" env-default:"false"`
	Days            int     `yaml:"days" env:"CLAWTOP_DAYS" env-default:"0"`
	DetailSessions  int     `yaml:"detail_sessions" env:"CLAWTOP_DETAIL_SESSIONS" env-default:"5"`
	GatewayLookback int     `yaml:"gateway_lookback" env:"CLAWTOP_GATEWAY_LOOKBACK" env-default:"3"`
	Workers         int     `yaml:"workers" env:"CLAWTOP_WORKERS" env-default:"4"`
	Pricing         Pricing `yaml:"pricing"`
	Monitor         Monitor `yaml:"monitor"`
}

// DefaultPath returns the path to the config file in the user's home directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".clawtop.yaml"), nil
}

// Load reads the YAML file at path, then applies environment overrides and
// defaults for anything left unset. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.AgentsDir = expandHome(cfg.AgentsDir)
	cfg.LogsDir = expandHome(cfg.LogsDir)
	cfg.Monitor.LogFile = expandHome(cfg.Monitor.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate rejects values no report run can use
func (c *Config) Validate() error {
	switch {
	case c.Limit < 0:
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	case c.Days < 0:
		return fmt.Errorf("days must not be negative, got %d", c.Days)
	case c.DetailSessions < 0:
		return fmt.Errorf("detail_sessions must not be negative, got %d", c.DetailSessions)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.Pricing.InputPerMillion < 0 || c.Pricing.OutputPerMillion < 0:
		return errors.New("pricing rates must not be negative")
	case c.Monitor.Interval < 0:
		return fmt.Errorf("monitor interval must not be negative, got %s", c.Monitor.Interval)
	}
	return nil
}

// PricingModel resolves the configured cost model
func (c *Config) PricingModel() (model.Pricing, error) {
	if c.Pricing.Preset != "" {
		p, ok := pricing.Lookup(c.Pricing.Preset)
		if !ok {
			return model.Pricing{}, fmt.Errorf("unknown pricing preset %q (available: %s)",
				c.Pricing.Preset, strings.Join(pricing.Presets(), ", "))
		}
		return p, nil
	}
	return model.Pricing{
		InputPerMillion:  c.Pricing.InputPerMillion,
		OutputPerMillion: c.Pricing.OutputPerMillion,
	}, nil
}

// Since returns the cutoff for the Days window, or the zero time for all time
func (c *Config) Since(now time.Time) time.Time {
	if c.Days <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(c.Days) * 24 * time.Hour)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/providers"
	"jobradar/pkg/proxy"
)

// Config is the full application configuration, loaded from a JSON file
// with secrets overlaid from the environment.
type Config struct {
	Sources     []providers.SourceConfig `json:"sources"`
	Queries     []aggregate.Query        `json:"queries"`
	Server      ServerConfig             `json:"server"`
	Aggregation AggregationConfig        `json:"aggregation"`
	Database    DatabaseConfig           `json:"database"`
	Proxy       *proxy.Config            `json:"proxy,omitempty"`
	Export      ExportConfig             `json:"export"`
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type AggregationConfig struct {
	Interval   string `json:"interval"`
	StaleAfter string `json:"stale_after"`
	OnStartup  bool   `json:"on_startup"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type ExportConfig struct {
	OutputDir string `json:"output_dir"`
}

// Load reads the JSON config file, applies defaults and fills API keys and
// the database DSN in from the environment. Environment values win over
// file values so deployments never write secrets to disk.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Aggregation.Interval == "" {
		c.Aggregation.Interval = "1h"
	}
	if c.Aggregation.StaleAfter == "" {
		c.Aggregation.StaleAfter = "168h"
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "exports"
	}
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	for i := range c.Sources {
		if c.Sources[i].APIKey != "" {
			continue
		}
		if value := os.Getenv(apiKeyEnvVar(c.Sources[i].Name)); value != "" {
			c.Sources[i].APIKey = value
		}
	}
}

// apiKeyEnvVar maps a source name to its environment variable, e.g.
// "usajobs" -> USAJOBS_API_KEY.
func apiKeyEnvVar(source string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(source))
	return name + "_API_KEY"
}

// Validate checks the parts that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set database.dsn or DATABASE_URL)")
	}
	if _, err := c.AggregationInterval(); err != nil {
		return err
	}
	if _, err := c.StaleAfter(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, source := range c.Sources {
		if source.Name == "" {
			return fmt.Errorf("every source needs a name")
		}
		if seen[source.Name] {
			return fmt.Errorf("duplicate source name %q", source.Name)
		}
		seen[source.Name] = true
	}
	return nil
}

// AggregationInterval parses the configured run cadence.
func (c *Config) AggregationInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Aggregation.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid aggregation interval %q: %w", c.Aggregation.Interval, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("aggregation interval %s is below the 1m minimum", d)
	}
	return d, nil
}

// StaleAfter parses the window after which unseen postings go inactive.
func (c *Config) StaleAfter() (time.Duration, error) {
	d, err := time.ParseDuration(c.Aggregation.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("invalid stale window %q: %w", c.Aggregation.StaleAfter, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("stale window must be positive, got %s", d)
	}
	return d, nil
}

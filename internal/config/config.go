package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockwatch.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	API     API     `yaml:"api"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
	Display Display `yaml:"display"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// API configures the remote finance-search endpoint.
type API struct {
	APIKey          string            `yaml:"api_key"`
	Engine          string            `yaml:"engine"`
	Environment     string            `yaml:"environment"` // "Prod" or "Test"
	Environments    map[string]string `yaml:"environments"`
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	RateLimitPerMin int               `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials for mirroring the watchlist to an Alpaca account.
// Mirroring is disabled when APIKey is empty.
type Alpaca struct {
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	BaseURL       string `yaml:"base_url"`
	WatchlistName string `yaml:"watchlist_name"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Display controls how times and strings are presented.
type Display struct {
	Timezone         string `yaml:"timezone"` // IANA name, empty = local
	StringsFile      string `yaml:"strings_file"`
	HorizontalLabels int    `yaml:"horizontal_labels"`
	RevealMillis     int    `yaml:"reveal_millis"`
}

// Environment names accepted in API.Environment.
const (
	EnvProd = "Prod"
	EnvTest = "Test"
)

// Default returns a configuration usable without a config file.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/stockwatch.db",
		},
		Server: Server{
			Host:     "127.0.0.1",
			Port:     8080,
			GRPCPort: 50051,
		},
		API: API{
			Engine:      "google_finance",
			Environment: EnvProd,
			Environments: map[string]string{
				EnvProd: "https://serpapi.com",
				EnvTest: "http://127.0.0.1:8090",
			},
			TimeoutSeconds:  10,
			RateLimitPerMin: 60,
		},
		Alpaca: Alpaca{
			WatchlistName: "stockwatch",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Display: Display{
			HorizontalLabels: 4,
			RevealMillis:     1500,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Default(), then applies environment variable overrides. A missing file is
// not an error; the defaults and environment are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BaseURL returns the finance API base URL for the selected environment.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.API.Environments[c.API.Environment], "/")
}

// SelectEnvironment switches the API environment, typically to the value
// persisted by a previous run. The config is left unchanged on error.
func (c *Config) SelectEnvironment(env string) error {
	if env != EnvProd && env != EnvTest {
		return fmt.Errorf("unknown environment %q", env)
	}
	if c.API.Environments[env] == "" {
		return fmt.Errorf("api.environments has no base URL for %q", env)
	}
	c.API.Environment = env
	return nil
}

// HTTPAddr returns the host:port of the REST listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns the host:port of the gRPC listener.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// Location returns the zone graph labels are rendered in.
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// Validate reports configuration errors that would otherwise surface later
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.API.Environment != EnvProd && c.API.Environment != EnvTest {
		return fmt.Errorf("api.environment must be %q or %q, got %q", EnvProd, EnvTest, c.API.Environment)
	}
	if c.BaseURL() == "" {
		return fmt.Errorf("api.environments has no base URL for %q", c.API.Environment)
	}
	if c.API.Engine == "" {
		return fmt.Errorf("api.engine is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("display.timezone: %w", err)
	}
	if c.Display.HorizontalLabels < 0 {
		return fmt.Errorf("display.horizontal_labels must not be negative")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("SERPAPI_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}

	if v := os.Getenv("STOCKWATCH_ENV"); v != "" {
		cfg.API.Environment = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

// Config holds the geosuggest service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Hosted   HostedConfig   `yaml:"hosted"`
	Packages []PackageCfg   `yaml:"packages"`
	Layers   []LayerConfig  `yaml:"layers"`
	Search   SearchConfig   `yaml:"search"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Map      MapConfig      `yaml:"map"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the hosted layer store connection. Empty addrs disables hosted layers.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (same wire protocol)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a hosted store is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// HostedConfig lists the services to load from the store.
type HostedConfig struct {
	Services []string `yaml:"services"`
}

// PackageCfg is one SQLite layer package.
type PackageCfg struct {
	Path string `yaml:"path"`
}

// LayerConfig is one configured logical layer.
type LayerConfig struct {
	LogicalName  string   `yaml:"logical_name"`
	SearchFields []string `yaml:"search_fields"`
	DisplayField string   `yaml:"display_field"`
	Enabled      *bool    `yaml:"enabled"` // default true
}

// SearchConfig holds index, cache and debounce tuning.
type SearchConfig struct {
	DebounceMS         int `yaml:"debounce_ms"`
	MinChars           int `yaml:"min_chars"`
	QueryTimeoutMS     int `yaml:"query_timeout_ms"`
	CacheSize          int `yaml:"cache_size"`
	PageSize           int `yaml:"page_size"`
	MaxSuggestions     int `yaml:"max_suggestions"`
	MaxResults         int `yaml:"max_results"`
	LazyConcurrency    int `yaml:"lazy_concurrency"`
	LazyLimitPerField  int `yaml:"lazy_limit_per_field"`
	WarmPageTimeoutSec int `yaml:"warm_page_timeout_sec"`
}

// Debounce returns the keystroke quiet period.
func (s SearchConfig) Debounce() time.Duration { return time.Duration(s.DebounceMS) * time.Millisecond }

// QueryTimeout returns the per-query deadline.
func (s SearchConfig) QueryTimeout() time.Duration {
	return time.Duration(s.QueryTimeoutMS) * time.Millisecond
}

// WarmPageTimeout returns the per-page warm-up deadline.
func (s SearchConfig) WarmPageTimeout() time.Duration {
	return time.Duration(s.WarmPageTimeoutSec) * time.Second
}

// GeocoderConfig holds location search settings. Empty base_url disables location mode.
type GeocoderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Country        string  `yaml:"country"`
	MaxSuggestions int     `yaml:"max_suggestions"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	TimeoutMS      int     `yaml:"timeout_ms"`
}

// Enabled reports whether location mode is configured.
func (g GeocoderConfig) Enabled() bool { return g.BaseURL != "" }

// Timeout returns the geocoder request deadline.
func (g GeocoderConfig) Timeout() time.Duration { return time.Duration(g.TimeoutMS) * time.Millisecond }

// MapConfig is the initial viewport. All zeros means no viewport.
type MapConfig struct {
	XMin float64 `yaml:"xmin"`
	YMin float64 `yaml:"ymin"`
	XMax float64 `yaml:"xmax"`
	YMax float64 `yaml:"ymax"`
}

// Extent converts the viewport.
func (m MapConfig) Extent() (geo.Extent, error) {
	if m == (MapConfig{}) {
		return geo.EmptyExtent(), nil
	}
	return geo.NewExtent(m.XMin, m.YMin, m.XMax, m.YMax)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	s := &c.Search
	setDefault(&s.DebounceMS, 300)
	setDefault(&s.MinChars, 2)
	setDefault(&s.QueryTimeoutMS, 3000)
	setDefault(&s.CacheSize, 64)
	setDefault(&s.PageSize, 1000)
	setDefault(&s.MaxSuggestions, 10)
	setDefault(&s.MaxResults, 50)
	setDefault(&s.LazyConcurrency, 8)
	setDefault(&s.LazyLimitPerField, 50)
	setDefault(&s.WarmPageTimeoutSec, 30)

	setDefault(&c.Geocoder.MaxSuggestions, 6)
	setDefault(&c.Geocoder.TimeoutMS, 3000)
	if c.Geocoder.RatePerSec <= 0 {
		c.Geocoder.RatePerSec = 10
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}
	if len(c.Hosted.Services) > 0 && !c.Database.Enabled() {
		return errors.New("hosted.services requires database.addrs")
	}
	for i, p := range c.Packages {
		if p.Path == "" {
			return fmt.Errorf("packages[%d].path is required", i)
		}
	}
	if _, err := c.Map.Extent(); err != nil {
		return fmt.Errorf("map: %w", err)
	}
	_, err := c.LayerConfigs()
	return err
}

// LayerConfigs converts the layers section. At least one layer is required.
func (c *Config) LayerConfigs() ([]layer.Config, error) {
	if len(c.Layers) == 0 {
		return nil, errors.New("layers: at least one layer is required")
	}
	out := make([]layer.Config, 0, len(c.Layers))
	seen := make(map[string]struct{}, len(c.Layers))
	for i, l := range c.Layers {
		enabled := l.Enabled == nil || *l.Enabled
		lc, err := layer.NewConfig(l.LogicalName, l.SearchFields, l.DisplayField, enabled)
		if err != nil {
			return nil, fmt.Errorf("layers[%d]: %w", i, err)
		}
		key := strings.ToLower(lc.LogicalName())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("layers[%d]: duplicate logical_name %q", i, lc.LogicalName())
		}
		seen[key] = struct{}{}
		out = append(out, lc)
	}
	return out, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ROUTE_PRICING_SERVER_PORT
const EnvPrefix = "ROUTE_PRICING"

// DefaultConfigPath is read when ROUTE_PRICING_CONFIG is unset
const DefaultConfigPath = "config.yaml"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Matching MatchingConfig `mapstructure:"matching"`
	RefData  RefDataConfig  `mapstructure:"refdata"`
	Routing  RoutingConfig  `mapstructure:"routing"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// APIKey protects /api/pricing; empty disables the check
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PricingConfig tunes aggregation and the request budget
type PricingConfig struct {
	OutlierThreshold float64       `mapstructure:"outlier_threshold"`
	OutlierCap       int           `mapstructure:"outlier_cap"`
	TopCarriers      int           `mapstructure:"top_carriers"`
	Workers          int           `mapstructure:"workers"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ExchangeWindows  []int         `mapstructure:"exchange_windows"`
	OrderWindows     []int         `mapstructure:"order_windows"`

	// Historical order business filters
	CompletedStatus  string   `mapstructure:"completed_status"`
	MinDistanceKm    float64  `mapstructure:"min_distance_km"`
	Categories       []string `mapstructure:"categories"`
	ExcludedClientID string   `mapstructure:"excluded_client_id"`
}

// MatchingConfig holds the fuzzy route matcher thresholds in km
type MatchingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ToleranceKm float64 `mapstructure:"tolerance_km"`
	ExactKm     float64 `mapstructure:"exact_km"`
	HighKm      float64 `mapstructure:"high_km"`
}

// RefDataConfig points at the reference lookup tables
type RefDataConfig struct {
	PostalRegionsPath string `mapstructure:"postal_regions_path"`
	CrosswalkPath     string `mapstructure:"crosswalk_path"`
	CoordinatesPath   string `mapstructure:"coordinates_path"`
}

// RoutingConfig holds the road distance provider configuration
type RoutingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Region     string        `mapstructure:"region"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RoadFactor float64       `mapstructure:"road_factor"`
}

// legacyEnv maps keys onto the environment names the deployment already uses
var legacyEnv = map[string]string{
	"server.port":       "PORT",
	"server.api_key":    "API_KEY",
	"database.host":     "POSTGRES_HOST",
	"database.port":     "POSTGRES_PORT",
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"database.database": "POSTGRES_DB",
	"routing.api_key":   "AWS_LOCATION_API_KEY",
	"routing.region":    "AWS_REGION",
}

// LoadConfig loads configuration from ROUTE_PRICING_CONFIG, falling back to
// ./config.yaml when present and to defaults plus environment otherwise
func LoadConfig() (*Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}
	return Load(path)
}

// Load reads configuration from file and environment variables.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Routing.BaseURL == "" {
		cfg.Routing.BaseURL = fmt.Sprintf("https://routes.geo.%s.amazonaws.com", cfg.Routing.Region)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.api_key", "")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.query_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Pricing defaults
	v.SetDefault("pricing.outlier_threshold", 10.0)
	v.SetDefault("pricing.outlier_cap", 5)
	v.SetDefault("pricing.top_carriers", 4)
	v.SetDefault("pricing.workers", 3)
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.exchange_windows", []int{7, 30, 90})
	v.SetDefault("pricing.order_windows", []int{30, 90, 180})
	v.SetDefault("pricing.completed_status", "completed")
	v.SetDefault("pricing.min_distance_km", 50.0)
	v.SetDefault("pricing.categories", []string{"FTL", "LTL"})
	v.SetDefault("pricing.excluded_client_id", "")

	// Matching defaults
	v.SetDefault("matching.enabled", true)
	v.SetDefault("matching.tolerance_km", 100.0)
	v.SetDefault("matching.exact_km", 1.0)
	v.SetDefault("matching.high_km", 50.0)

	// Reference data defaults
	v.SetDefault("refdata.postal_regions_path", "data/postal_code_to_region.json")
	v.SetDefault("refdata.crosswalk_path", "data/region_crosswalk.json")
	v.SetDefault("refdata.coordinates_path", "data/postal_coordinates.json")

	// Routing defaults
	v.SetDefault("routing.enabled", false)
	v.SetDefault("routing.base_url", "")
	v.SetDefault("routing.api_key", "")
	v.SetDefault("routing.region", "eu-central-1")
	v.SetDefault("routing.timeout", "5s")
	v.SetDefault("routing.road_factor", 1.3)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	var errs []error

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}

	// Database
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, fmt.Errorf("database.database is required"))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be at least 1"))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("database.query_timeout must be positive"))
	}

	// Logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Errorf("logging.format must be one of: json, console"))
	}

	// Pricing
	if c.Pricing.OutlierThreshold <= 0 {
		errs = append(errs, fmt.Errorf("pricing.outlier_threshold must be positive"))
	}
	if c.Pricing.OutlierCap < 0 {
		errs = append(errs, fmt.Errorf("pricing.outlier_cap must not be negative"))
	}
	if c.Pricing.TopCarriers < 0 {
		errs = append(errs, fmt.Errorf("pricing.top_carriers must not be negative"))
	}
	if c.Pricing.Workers < 1 {
		errs = append(errs, fmt.Errorf("pricing.workers must be at least 1"))
	}
	if c.Pricing.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pricing.request_timeout must be positive"))
	}
	if err := validateWindows("pricing.exchange_windows", c.Pricing.ExchangeWindows); err != nil {
		errs = append(errs, err)
	}
	if err := validateWindows("pricing.order_windows", c.Pricing.OrderWindows); err != nil {
		errs = append(errs, err)
	}
	if len(c.Pricing.Categories) == 0 {
		errs = append(errs, fmt.Errorf("pricing.categories must contain at least one category"))
	}

	// Matching
	if c.Matching.Enabled {
		if c.Matching.ToleranceKm <= 0 {
			errs = append(errs, fmt.Errorf("matching.tolerance_km must be positive"))
		}
		if !(c.Matching.ExactKm <= c.Matching.HighKm && c.Matching.HighKm <= c.Matching.ToleranceKm) {
			errs = append(errs, fmt.Errorf("matching thresholds must satisfy exact_km <= high_km <= tolerance_km"))
		}
	}

	// Reference data
	if c.RefData.PostalRegionsPath == "" {
		errs = append(errs, fmt.Errorf("refdata.postal_regions_path is required"))
	}

	// Routing
	if c.Routing.RoadFactor < 1 {
		errs = append(errs, fmt.Errorf("routing.road_factor must be at least 1"))
	}
	if c.Routing.Enabled && c.Routing.APIKey == "" {
		errs = append(errs, fmt.Errorf("routing.api_key is required when routing is enabled"))
	}

	return errors.Join(errs...)
}

func validateWindows(field string, windows []int) error {
	if len(windows) == 0 {
		return fmt.Errorf("%s must contain at least one window", field)
	}
	for _, w := range windows {
		if w < 1 {
			return fmt.Errorf("%s must only contain positive day counts", field)
		}
	}
	return nil
}

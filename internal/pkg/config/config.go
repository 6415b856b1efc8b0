package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Hotspot    HotspotConfig    `mapstructure:"hotspot"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
	Refresher  RefresherConfig  `mapstructure:"refresher"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
	SpecPath     string `mapstructure:"spec_path"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	SSLMode       string `mapstructure:"sslmode"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrationsPath returns the migrations directory for the configured driver.
func (d DatabaseConfig) MigrationsPath() string {
	return strings.TrimRight(d.MigrationsDir, "/") + "/" + d.Driver
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"` // otlp | stdout
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Enabled     bool    `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// HotspotConfig holds the default detection parameters.
type HotspotConfig struct {
	Bounds              hotspot.BoundingBox `mapstructure:"bounds"`
	Bandwidth           float64             `mapstructure:"bandwidth"`
	ThresholdPercentile float64             `mapstructure:"threshold_percentile"`
	GridResolution      int                 `mapstructure:"grid_resolution"`
	ClusterEps          float64             `mapstructure:"cluster_eps"`
	MinPoints           int                 `mapstructure:"min_points"`
	MaxIncidents        int                 `mapstructure:"max_incidents"`
	CacheTTL            time.Duration       `mapstructure:"cache_ttl"`
}

// Pipeline converts the defaults into a detection config.
func (h HotspotConfig) Pipeline() hotspot.Config {
	return hotspot.Config{
		Bounds:              h.Bounds,
		Bandwidth:           h.Bandwidth,
		ThresholdPercentile: h.ThresholdPercentile,
		GridResolution:      h.GridResolution,
		ClusterEps:          h.ClusterEps,
		MinPoints:           h.MinPoints,
	}
}

type ExperimentConfig struct {
	Workers          int     `mapstructure:"workers"`
	EfficiencyWeight float64 `mapstructure:"efficiency_weight"`
	CoverageWeight   float64 `mapstructure:"coverage_weight"`
	OutputDir        string  `mapstructure:"output_dir"`
	MaxIncidents     int     `mapstructure:"max_incidents"`
}

type RefresherConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.spec_path", "api/openapi.yaml")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chicrime")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chicrime")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "data/crimes.db")
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.endpoint", "tempo:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "chicrime-experiments")
	v.SetDefault("hotspot.bounds.lat_min", hotspot.ChicagoBounds.LatMin)
	v.SetDefault("hotspot.bounds.lat_max", hotspot.ChicagoBounds.LatMax)
	v.SetDefault("hotspot.bounds.lon_min", hotspot.ChicagoBounds.LonMin)
	v.SetDefault("hotspot.bounds.lon_max", hotspot.ChicagoBounds.LonMax)
	v.SetDefault("hotspot.bandwidth", 0.01)
	v.SetDefault("hotspot.threshold_percentile", 90.0)
	v.SetDefault("hotspot.grid_resolution", 50)
	v.SetDefault("hotspot.cluster_eps", 0.0)
	v.SetDefault("hotspot.min_points", 5)
	v.SetDefault("hotspot.max_incidents", 10000)
	v.SetDefault("hotspot.cache_ttl", "10m")
	v.SetDefault("experiment.workers", 4)
	v.SetDefault("experiment.efficiency_weight", 0.6)
	v.SetDefault("experiment.coverage_weight", 0.4)
	v.SetDefault("experiment.output_dir", "output")
	v.SetDefault("experiment.max_incidents", 50000)
	v.SetDefault("refresher.interval", "15m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CHICRIME_DATABASE_HOST → database.host
	v.SetEnvPrefix("CHICRIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio))
	}
	switch c.Telemetry.Exporter {
	case "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.exporter must be otlp or stdout, got %q", c.Telemetry.Exporter))
	}

	if err := c.Hotspot.Bounds.Validate(); err != nil {
		errs = append(errs, "hotspot.bounds: "+err.Error())
	}
	if c.Hotspot.Bandwidth <= 0 {
		errs = append(errs, "hotspot.bandwidth must be positive")
	}
	if c.Hotspot.ThresholdPercentile < 0 || c.Hotspot.ThresholdPercentile > 100 {
		errs = append(errs, "hotspot.threshold_percentile must be within [0, 100]")
	}
	if c.Hotspot.GridResolution < 2 {
		errs = append(errs, "hotspot.grid_resolution must be at least 2")
	}
	if c.Hotspot.ClusterEps < 0 {
		errs = append(errs, "hotspot.cluster_eps must not be negative")
	}
	if c.Hotspot.MinPoints < 1 {
		errs = append(errs, "hotspot.min_points must be at least 1")
	}
	if c.Hotspot.MaxIncidents <= 0 {
		errs = append(errs, "hotspot.max_incidents must be positive")
	}

	if c.Experiment.Workers <= 0 {
		errs = append(errs, "experiment.workers must be positive")
	}
	if c.Experiment.EfficiencyWeight < 0 || c.Experiment.CoverageWeight < 0 {
		errs = append(errs, "experiment weights must not be negative")
	}
	if c.Refresher.Interval <= 0 {
		errs = append(errs, "refresher.interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

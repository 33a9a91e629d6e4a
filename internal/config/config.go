package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port                int    `yaml:"port"`
		APIKey              string `yaml:"api_key"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone             string `yaml:"timezone"`
		RequestLimit         int    `yaml:"request_limit"`
		RequestWindowSeconds int    `yaml:"request_window_seconds"`
		AdmissionTimeoutMS   int    `yaml:"admission_timeout_ms"`
	} `yaml:"booking"`

	Directory struct {
		Path                 string `yaml:"path"`
		Watch                bool   `yaml:"watch"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"directory"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`
}

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads path (default configs/config.yaml). A .env file next to the
// working directory is loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if _, err = cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/walkpack.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
	if c.Directory.Path == "" {
		c.Directory.Path = "configs/directory.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Location is the zone walk block dates and times are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Booking.Timezone)
}

// RequestWindow is the rate-limit window for booking requests.
func (c *Config) RequestWindow() time.Duration {
	if c.Booking.RequestWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Booking.RequestWindowSeconds) * time.Second
}

// RequestLimit is how many booking requests a customer may send per window.
func (c *Config) RequestLimit() int {
	if c.Booking.RequestLimit <= 0 {
		return 10
	}
	return c.Booking.RequestLimit
}

// AdmissionTimeout bounds one approve or reject call.
func (c *Config) AdmissionTimeout() time.Duration {
	if c.Booking.AdmissionTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Booking.AdmissionTimeoutMS) * time.Millisecond
}

// BackupInterval is how often the database is snapshotted.
func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// DirectoryWatchInterval is the polling period for directory.yaml changes.
func (c *Config) DirectoryWatchInterval() time.Duration {
	if c.Directory.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Directory.WatchIntervalSeconds) * time.Second
}

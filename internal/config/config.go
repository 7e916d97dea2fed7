// Package config loads the exporter's configuration from a YAML file and the
// environment using Viper. A loaded Config is treated as immutable and passed
// explicitly to the packages that need it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hrexport/internal/zones"
)

// DefaultPath is the config file read when no -config flag is given
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. HREXPORT_EXPORTDIR
const EnvPrefix = "HREXPORT"

// Credential variables read for non-interactive login
const (
	EnvEmail    = "GARMIN_EMAIL"
	EnvPassword = "GARMIN_PASSWORD"
)

// Config represents the application configuration
type Config struct {
	Zones     []zones.Zone  `mapstructure:"zones"`
	ExportDir string        `mapstructure:"exportDir"`
	TokenDir  string        `mapstructure:"tokenDir"`
	Garmin    GarminConfig  `mapstructure:"garmin"`
	Log       LogConfig     `mapstructure:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
}

// GarminConfig holds Garmin Connect connection settings
type GarminConfig struct {
	Domain             string        `mapstructure:"domain"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SleepBufferMinutes int           `mapstructure:"sleepBufferMinutes"`

	// OAuth1 consumer used to sign OAuth service requests. Empty means the
	// Connect mobile app's consumer.
	ConsumerKey    string `mapstructure:"consumerKey"`
	ConsumerSecret string `mapstructure:"consumerSecret"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the per-run Prometheus textfile
type MetricsConfig struct {
	Textfile bool `mapstructure:"textfile"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ExportDir: "export",
		TokenDir:  ".garmin",
		Garmin: GarminConfig{
			Domain:             "garmin.com",
			Timeout:            30 * time.Second,
			SleepBufferMinutes: 60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path, applying defaults and
// HREXPORT_* environment overrides.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Config{}, ErrNoConfig
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("exportDir", defaults.ExportDir)
	v.SetDefault("tokenDir", defaults.TokenDir)
	v.SetDefault("garmin.domain", defaults.Garmin.Domain)
	v.SetDefault("garmin.timeout", defaults.Garmin.Timeout)
	v.SetDefault("garmin.sleepBufferMinutes", defaults.Garmin.SleepBufferMinutes)
	v.SetDefault("garmin.consumerKey", "")
	v.SetDefault("garmin.consumerSecret", "")
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// CreateExample writes an example config file if none exists
func CreateExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

const exampleConfig = `# Heart rate zones, evaluated top to bottom. The first zone whose
# inclusive [min, max] range contains a reading wins.
zones:
  - name: rest
    min: 0
    max: 99
  - name: zone1
    min: 100
    max: 119
  - name: zone2
    min: 120
    max: 139
  - name: zone3
    min: 140
    max: 159
  - name: zone4
    min: 160
    max: 179
  - name: zone5
    min: 180
    max: 250

# Where exported files are written.
exportDir: export

# Where the Garmin session cache is kept.
tokenDir: .garmin

garmin:
  domain: garmin.com
  timeout: 30s
  sleepBufferMinutes: 60
  # OAuth1 consumer for the token exchange; leave unset to use the Connect
  # app's own. Also settable as HREXPORT_GARMIN_CONSUMERKEY/CONSUMERSECRET.
  # consumerKey: ""
  # consumerSecret: ""

log:
  level: info
  format: text

metrics:
  textfile: false
`

// Validate checks if the config has required fields
func (c Config) Validate() error {
	if c.ExportDir == "" {
		return errors.New("exportDir is required")
	}
	if c.TokenDir == "" {
		return errors.New("tokenDir is required")
	}
	if err := zones.ValidateZones(c.Zones); err != nil {
		return fmt.Errorf("zones: %w", err)
	}

	if c.Garmin.Domain == "" {
		return errors.New("garmin.domain is required")
	}
	if c.Garmin.Timeout <= 0 {
		return fmt.Errorf("garmin.timeout must be positive, got %v", c.Garmin.Timeout)
	}
	if c.Garmin.SleepBufferMinutes < 0 {
		return fmt.Errorf("garmin.sleepBufferMinutes must not be negative, got %d", c.Garmin.SleepBufferMinutes)
	}
	if (c.Garmin.ConsumerKey == "") != (c.Garmin.ConsumerSecret == "") {
		return errors.New("garmin.consumerKey and garmin.consumerSecret must be set together")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// ZoneList returns a copy of the configured zones
func (c Config) ZoneList() []zones.Zone {
	out := make([]zones.Zone, len(c.Zones))
	copy(out, c.Zones)
	return out
}

// EnsureDirs resolves the export and token directories to real absolute
// paths, creating them if they don't exist. The receiver is left untouched.
func (c Config) EnsureDirs() (Config, error) {
	exportDir, err := ensureDir(c.ExportDir)
	if err != nil {
		return c, fmt.Errorf("export directory: %w", err)
	}
	tokenDir, err := ensureDir(c.TokenDir)
	if err != nil {
		return c, fmt.Errorf("token directory: %w", err)
	}

	out := c
	out.Zones = c.ZoneList()
	out.ExportDir = exportDir
	out.TokenDir = tokenDir
	return out, nil
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// LoadDotEnv loads variables from a .env file if one is present.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// CredentialsFromEnv returns Garmin credentials from GARMIN_EMAIL and
// GARMIN_PASSWORD. ok is false unless both are set.
func CredentialsFromEnv() (email, password string, ok bool) {
	email = os.Getenv(EnvEmail)
	password = os.Getenv(EnvPassword)
	return email, password, email != "" && password != ""
}

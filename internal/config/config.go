// Package config loads the daemon configuration from a TOML or YAML file,
// LIFECYCLED_* style environment overrides and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is consumed once at startup. Only modules re-read it, on reload.
type Config struct {
	WorkingUser     string `mapstructure:"working_user"`
	WorkingGroup    string `mapstructure:"working_group"`
	DataPath        string `mapstructure:"data_path" validate:"required"`
	LockFile        string `mapstructure:"lock_file" validate:"required"`
	LockMemory      bool   `mapstructure:"lock_memory"`
	NiceLevel       int    `mapstructure:"nice_level" validate:"gte=-20,lte=19"`
	SyslogIdent     string `mapstructure:"syslog_ident" validate:"required"`
	LockTimeout     int    `mapstructure:"lock_timeout" validate:"gte=1"`
	LogLevel        string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	StatusSocket    string `mapstructure:"status_socket"`
	HeartbeatPeriod int    `mapstructure:"heartbeat_period" validate:"gte=1,lte=86400"`

	// Path is the file the values were read from.
	Path string `mapstructure:"-"`
	// Found is false when Path did not exist and only defaults and
	// environment apply.
	Found bool `mapstructure:"-"`
	// Defaulted lists the keys set by neither file nor environment.
	Defaulted []string `mapstructure:"-"`
}

// Defaults returns the built-in values for app.
func Defaults(app string) map[string]any {
	return map[string]any{
		"working_user":     "nobody",
		"working_group":    "",
		"data_path":        filepath.Join("/var/lib", app),
		"lock_file":        filepath.Join("/var/run", app, app+".lock"),
		"lock_memory":      false,
		"nice_level":       -19,
		"syslog_ident":     app,
		"lock_timeout":     60,
		"log_level":        "info",
		"status_socket":    "." + app + ".sock",
		"heartbeat_period": 60,
	}
}

// DefaultPath returns the configuration file used when none is given.
func DefaultPath(app string) string {
	return filepath.Join("/etc", app, app+".toml")
}

// EnvPrefix returns the environment variable prefix for app.
func EnvPrefix(app string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(app))
}

// Load reads path (DefaultPath(app) when empty). A missing file is not an
// error; the returned config then has Found false.
func Load(path, app string) (*Config, error) {
	if path == "" {
		path = DefaultPath(app)
	}

	v := viper.New()
	defaults := Defaults(app)
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix(app))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" || ext == "cfg" || ext == "conf" {
		v.SetConfigType("toml")
	}

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		found = false
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Path = path
	cfg.Found = found

	for k := range defaults {
		_, inEnv := os.LookupEnv(EnvPrefix(app) + "_" + strings.ToUpper(k))
		if !inEnv && !v.InConfig(k) {
			cfg.Defaulted = append(cfg.Defaulted, k)
		}
	}
	sort.Strings(cfg.Defaulted)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

// Value returns the effective value of key as text, for diagnostics.
func (c *Config) Value(key string) string {
	switch key {
	case "working_user":
		return c.WorkingUser
	case "working_group":
		return c.WorkingGroup
	case "data_path":
		return c.DataPath
	case "lock_file":
		return c.LockFile
	case "lock_memory":
		return fmt.Sprint(c.LockMemory)
	case "nice_level":
		return fmt.Sprint(c.NiceLevel)
	case "syslog_ident":
		return c.SyslogIdent
	case "lock_timeout":
		return fmt.Sprint(c.LockTimeout)
	case "log_level":
		return c.LogLevel
	case "status_socket":
		return c.StatusSocket
	case "heartbeat_period":
		return fmt.Sprint(c.HeartbeatPeriod)
	default:
		return ""
	}
}

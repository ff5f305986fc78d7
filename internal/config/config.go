// Package config loads application settings from an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "DOWNLOAD_MANAGER"

// Keys for every setting, as used in config files; environment variables use EnvPrefix and replace "." with "_".
const (
	KeyDownloadDir            = "download.dir"
	KeyTempDir                = "download.temp_dir"
	KeyRateLimit              = "download.rate_limit"
	KeyRequestTimeout         = "download.request_timeout"
	KeyInactivityTimeout      = "download.inactivity_timeout"
	KeyRetryAttempts          = "download.retry_attempts"
	KeyRetryBackoff           = "download.retry_backoff"
	KeyProgressUpdateInterval = "session.progress_update_interval"
	KeyDatabaseDriver         = "database.driver"
	KeyDatabasePath           = "database.path"
	KeyLogLevel               = "log.level"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

type Config struct {
	Download struct {
		Dir               string        `mapstructure:"dir"`
		TempDir           string        `mapstructure:"temp_dir"`
		RateLimit         int64         `mapstructure:"rate_limit"`
		RequestTimeout    time.Duration `mapstructure:"request_timeout"`
		InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
		RetryAttempts     int           `mapstructure:"retry_attempts"`
		RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	} `mapstructure:"download"`
	Session struct {
		ProgressUpdateInterval time.Duration `mapstructure:"progress_update_interval"`
	} `mapstructure:"session"`
	Database struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"database"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDownloadDir, ".")
	v.SetDefault(KeyTempDir, "")
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyInactivityTimeout, 60*time.Second)
	v.SetDefault(KeyRetryAttempts, 5)
	v.SetDefault(KeyRetryBackoff, time.Second)
	v.SetDefault(KeyProgressUpdateInterval, 500*time.Millisecond)
	v.SetDefault(KeyDatabaseDriver, DriverBolt)
	v.SetDefault(KeyDatabasePath, "download-manager.db")
	v.SetDefault(KeyLogLevel, "info")
}

// New creates a viper instance with defaults and environment binding, reading path if it is not empty.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	}
	return v, nil
}

// Decode unmarshals the settings held by v and validates them.
func Decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Download.Dir == "" {
		result = multierror.Append(result, errors.New("download.dir must not be empty"))
	}
	if c.Download.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("download.rate_limit must not be negative, got %d", c.Download.RateLimit))
	}
	if c.Download.RequestTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("download.request_timeout must not be negative, got %v", c.Download.RequestTimeout))
	}
	if c.Download.InactivityTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("download.inactivity_timeout must not be negative, got %v", c.Download.InactivityTimeout))
	}
	if c.Download.RetryAttempts < 0 {
		result = multierror.Append(result, fmt.Errorf("download.retry_attempts must not be negative, got %d", c.Download.RetryAttempts))
	}
	if c.Download.RetryBackoff < 0 {
		result = multierror.Append(result, fmt.Errorf("download.retry_backoff must not be negative, got %v", c.Download.RetryBackoff))
	}
	if c.Session.ProgressUpdateInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("session.progress_update_interval must not be negative, got %v", c.Session.ProgressUpdateInterval))
	}
	switch c.Database.Driver {
	case DriverBolt, DriverSQLite:
	default:
		result = multierror.Append(result, fmt.Errorf("database.driver must be %q or %q, got %q", DriverBolt, DriverSQLite, c.Database.Driver))
	}
	if c.Database.Path == "" {
		result = multierror.Append(result, errors.New("database.path must not be empty"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}
	return result.ErrorOrNil()
}

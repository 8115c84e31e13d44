// Package config loads the jdbcx configuration file, environment and
// .env files.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration and query files are read from.
var AppFs = afero.NewOsFs()

// FileName is the configuration file name, without extension.
const FileName = ".jdbcx"

// Datasource is a database addressable as db.<id>.
type Datasource struct {
	URL                 string        `mapstructure:"url"`
	Driver              string        `mapstructure:"driver"`
	MaxOpenConns        int           `mapstructure:"max_open_conns"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// Extension holds per-extension settings.
type Extension struct {
	OnError string `mapstructure:"on_error"`
}

// Config holds the application configuration
type Config struct {
	LogLevel         string
	Timeout          time.Duration
	OnError          string
	OnErrorOutput    string
	DefaultExtension string
	Variables        map[string]string
	Datasources      map[string]Datasource
	Extensions       map[string]Extension
	CacheSize        int
	CacheTTL         time.Duration
	RequiredVersion  string

	// File is the configuration file that was read, if any.
	File string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetEnvPrefix("JDBCX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "warn")
	v.SetDefault("timeout", "30s")
	v.SetDefault("on_error", "abort")
	v.SetDefault("on_error_output", "empty")
	v.SetDefault("default_extension", "")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("required_version", "")
	return v
}

// LoadConfig loads configuration from file, or from the first .jdbcx.yaml
// found in the working directory, $HOME and $HOME/.config/jdbcx when file
// is empty. A missing configuration file is not an error.
func LoadConfig(file string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "jdbcx"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:         v.GetString("log_level"),
		Timeout:          v.GetDuration("timeout"),
		OnError:          v.GetString("on_error"),
		OnErrorOutput:    v.GetString("on_error_output"),
		DefaultExtension: v.GetString("default_extension"),
		Variables:        v.GetStringMapString("variables"),
		CacheSize:        v.GetInt("cache.size"),
		CacheTTL:         v.GetDuration("cache.ttl"),
		RequiredVersion:  v.GetString("required_version"),
		File:             v.ConfigFileUsed(),
	}
	if err := v.UnmarshalKey("datasources", &cfg.Datasources); err != nil {
		return nil, fmt.Errorf("invalid datasources: %w", err)
	}
	if err := v.UnmarshalKey("extensions", &cfg.Extensions); err != nil {
		return nil, fmt.Errorf("invalid extensions: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env and then .env.local, which wins.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// SaveConfig writes cfg to file, defaulting to .jdbcx.yaml in the working
// directory.
func SaveConfig(cfg *Config, file string) error {
	if file == "" {
		file = FileName + ".yaml"
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := AppFs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.Set("log_level", cfg.LogLevel)
	v.Set("timeout", cfg.Timeout.String())
	v.Set("on_error", cfg.OnError)
	v.Set("on_error_output", cfg.OnErrorOutput)
	if cfg.DefaultExtension != "" {
		v.Set("default_extension", cfg.DefaultExtension)
	}
	if len(cfg.Variables) > 0 {
		v.Set("variables", cfg.Variables)
	}
	for id, ds := range cfg.Datasources {
		v.Set("datasources."+id+".url", ds.URL)
		if ds.Driver != "" {
			v.Set("datasources."+id+".driver", ds.Driver)
		}
		if ds.MaxOpenConns > 0 {
			v.Set("datasources."+id+".max_open_conns", ds.MaxOpenConns)
		}
		if ds.HealthCheckInterval > 0 {
			v.Set("datasources."+id+".health_check_interval", ds.HealthCheckInterval.String())
		}
	}
	for name, ext := range cfg.Extensions {
		if ext.OnError != "" {
			v.Set("extensions."+name+".on_error", ext.OnError)
		}
	}
	v.Set("cache.size", cfg.CacheSize)
	v.Set("cache.ttl", cfg.CacheTTL.String())
	if cfg.RequiredVersion != "" {
		v.Set("required_version", cfg.RequiredVersion)
	}
	return v.WriteConfigAs(file)
}

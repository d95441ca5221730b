// Package config loads dicomity settings from defaults, an optional YAML
// file and DICOMITY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

const (
	EnvPrefix  = "DICOMITY"
	configName = "dicomity"
)

// DiscriminatorConfig is one row of grouping.discriminators.
type DiscriminatorConfig struct {
	Attribute string  `mapstructure:"attribute"`
	Tolerance float64 `mapstructure:"tolerance"`
}

// Config holds every setting the binaries read.
type Config struct {
	Workers int `mapstructure:"workers"`

	Cache struct {
		Path    string `mapstructure:"path"`
		Enabled bool   `mapstructure:"enabled"`
	} `mapstructure:"cache"`

	Grouping struct {
		Discriminators []DiscriminatorConfig `mapstructure:"discriminators"`
	} `mapstructure:"grouping"`

	Ordering struct {
		CVThreshold          float64 `mapstructure:"cv_threshold"`
		OrientationTolerance float64 `mapstructure:"orientation_tolerance"`
	} `mapstructure:"ordering"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
}

// New returns a viper instance with defaults and env binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("workers", 0)
	v.SetDefault("cache.path", CachePath())
	v.SetDefault("cache.enabled", true)
	v.SetDefault("ordering.cv_threshold", domain.DefaultCVThreshold)
	v.SetDefault("ordering.orientation_tolerance", domain.DefaultOrientationTolerance)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.textfile", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or dicomity.yaml from the user config dir and the working
// directory when path is empty. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(configName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := domain.ValidateDiscriminators(cfg.GroupingOptions().Discriminators); err != nil {
		return nil, fmt.Errorf("grouping.discriminators: %w", err)
	}
	return &cfg, nil
}

// CachePath returns the header cache location from DICOMITY_CACHE_PATH,
// falling back to dicomity/headers.db under the user cache dir.
func CachePath() string {
	if env := os.Getenv(EnvPrefix + "_CACHE_PATH"); env != "" {
		return env
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join("~", ".cache", configName, "headers.db")
	}
	return filepath.Join(dir, configName, "headers.db")
}

// GroupingOptions converts the discriminator table, using the default table
// when none is configured.
func (c *Config) GroupingOptions() domain.GroupingOptions {
	opts := domain.DefaultGroupingOptions()
	opts.OrientationTolerance = c.Ordering.OrientationTolerance
	if len(c.Grouping.Discriminators) == 0 {
		return opts
	}
	opts.Discriminators = make([]domain.Discriminator, len(c.Grouping.Discriminators))
	for i, d := range c.Grouping.Discriminators {
		opts.Discriminators[i] = domain.Discriminator{
			Attribute: domain.Attribute(d.Attribute),
			Tolerance: d.Tolerance,
		}
	}
	return opts
}

func (c *Config) OrderingOptions() domain.OrderingOptions {
	return domain.OrderingOptions{
		CVThreshold:          c.Ordering.CVThreshold,
		OrientationTolerance: c.Ordering.OrientationTolerance,
	}
}

func (c *Config) RegistryOptions() domain.RegistryOptions {
	return domain.RegistryOptions{Grouping: c.GroupingOptions(), Ordering: c.OrderingOptions()}
}

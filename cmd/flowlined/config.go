package main

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon. The mapstructure tags are
// used by viper to unmarshal the data; validate tags are enforced on load.
type Config struct {
	DatabasePath   string        `mapstructure:"database_path" validate:"required"`
	Queues         []string      `mapstructure:"queues" validate:"min=1,dive,required"`
	Concurrency    int           `mapstructure:"concurrency" validate:"min=1,max=1000"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"min=10ms"`
	MetricsAddr    string        `mapstructure:"metrics_addr" validate:"required"`
	Exclusive      bool          `mapstructure:"exclusive"`
	StaleLockSweep time.Duration `mapstructure:"stale_lock_sweep"`
	ShellTimeout   time.Duration `mapstructure:"shell_timeout" validate:"min=1s"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout" validate:"min=1s"`
}

// loadConfig loads configuration from file and environment variables.
func loadConfig() (*Config, error) {
	viper.SetDefault("database_path", "flowline.db")
	viper.SetDefault("queues", []string{"default"})
	viper.SetDefault("concurrency", 10)
	viper.SetDefault("poll_interval", "100ms")
	viper.SetDefault("metrics_addr", ":9090")
	viper.SetDefault("stale_lock_sweep", "10m")
	viper.SetDefault("shell_timeout", "30s")
	viper.SetDefault("http_timeout", "15s")

	viper.SetConfigName("flowlined")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/flowline")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("FLOWLINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// No config file is fine; defaults and environment carry the rest.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. TASKPLAN_DATABASE_URL for database.url.
const EnvPrefix = "TASKPLAN"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("horizon.refresh_schedule", "@daily")
	v.SetDefault("horizon.refresh_lead_days", 7)
	v.SetDefault("notify.worker_count", 2)
	v.SetDefault("notify.queue_size", 100)
}

// bindEnv registers the keys that have no default so that AutomaticEnv
// picks them up during Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{"database.url", "auth.jwt_secret"} {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key)
	}
}

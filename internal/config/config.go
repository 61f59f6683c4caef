package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Horizon  HorizonConfig  `mapstructure:"horizon"  validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// HorizonConfig controls the background extension of rule generation horizons.
// An empty RefreshSchedule disables the background refresh; horizons are then
// only extended on demand when daily tasks are queried.
type HorizonConfig struct {
	RefreshSchedule string `mapstructure:"refresh_schedule"`
	RefreshLeadDays int    `mapstructure:"refresh_lead_days" validate:"gte=1,lte=366"`
}

// NotifyConfig sizes the asynchronous change-notification dispatcher.
type NotifyConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize   int `mapstructure:"queue_size"   validate:"gte=1"`
}

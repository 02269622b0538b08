package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

// Config holds all configuration for the gateway. Tags use mapstructure for
// Viper unmarshalling; every key can also come from the environment.
type Config struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	Environment string `mapstructure:"ENVIRONMENT"` // "production" enables the maintenance gate
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"` // memory | file | redis | mongo
	StorageDir     string `mapstructure:"STORAGE_DIR"`     // file backend profile directory
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPrefix    string `mapstructure:"REDIS_PREFIX"`
	MongoURI       string `mapstructure:"MONGO_URI"`
	MongoDBName    string `mapstructure:"MONGO_DB_NAME"`

	AtlasBaseURL    string `mapstructure:"ATLAS_BASE_URL"`
	AtlasIngressURL string `mapstructure:"ATLAS_INGRESS_URL"`
	PayNowBaseURL   string `mapstructure:"PAYNOW_BASE_URL"`
	PayNowAPIKey    string `mapstructure:"PAYNOW_API_KEY"`

	CheckoutReturnURL string `mapstructure:"CHECKOUT_RETURN_URL"`
	CheckoutCancelURL string `mapstructure:"CHECKOUT_CANCEL_URL"`

	MaintenanceEnabled    bool     `mapstructure:"MAINTENANCE_ENABLED"`
	MaintenanceTargets    []string `mapstructure:"MAINTENANCE_TARGETS"`
	MaintenanceExclusions []string `mapstructure:"MAINTENANCE_EXCLUSIONS"`
}

// IsProduction reports whether the deployment is production-like.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/atlas-storefront/")
	v.AddConfigPath("$HOME/.atlas-storefront")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("STORAGE_BACKEND", StorageFile)
	v.SetDefault("STORAGE_DIR", ".atlas-profile")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PREFIX", "storefront")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/storefront_dev")
	v.SetDefault("MONGO_DB_NAME", "storefront_dev")
	v.SetDefault("ATLAS_BASE_URL", "https://api.atlasgg.net")
	v.SetDefault("ATLAS_INGRESS_URL", "https://ingress.atlasgg.net")
	v.SetDefault("PAYNOW_BASE_URL", "https://api.paynow.gg/v1")
	v.SetDefault("CHECKOUT_RETURN_URL", "/checkout/complete")
	v.SetDefault("CHECKOUT_CANCEL_URL", "/checkout/cancel")
	v.SetDefault("MAINTENANCE_ENABLED", false)
	v.SetDefault("MAINTENANCE_TARGETS", []string{})
	v.SetDefault("MAINTENANCE_EXCLUSIONS", []string{})

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults and env vars apply. Any
		// other read error is real and surfaces.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

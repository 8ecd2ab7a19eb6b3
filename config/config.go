package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the linking service.
// Tags use mapstructure for Viper unmarshalling; every key is overridable via
// environment variables.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`

	// CacheBackend selects the resource-cache implementation: "memory" or
	// "redis".
	CacheBackend        string `mapstructure:"CACHE_BACKEND"`
	ResourceCacheTTLMin int    `mapstructure:"RESOURCE_CACHE_TTL_MIN"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// External advertising platform application settings.
	PlatformClientID     string `mapstructure:"PLATFORM_CLIENT_ID"`
	PlatformClientSecret string `mapstructure:"PLATFORM_CLIENT_SECRET"`
	PlatformRedirectURL  string `mapstructure:"PLATFORM_REDIRECT_URL"`
	PlatformGraphURL     string `mapstructure:"PLATFORM_GRAPH_URL"`

	// SessionJWTSecret verifies the dashboard session tokens presented on
	// every request.
	SessionJWTSecret string `mapstructure:"SESSION_JWT_SECRET"`

	DiscoveryRetryDelaySec int `mapstructure:"DISCOVERY_RETRY_DELAY_SEC"`
	DiscoveryTimeoutSec    int `mapstructure:"DISCOVERY_TIMEOUT_SEC"`
	DiscoveryMaxRetries    int `mapstructure:"DISCOVERY_MAX_RETRIES"`
}

// ResourceCacheTTL returns the configured cache TTL as a duration.
func (c *ServerConfig) ResourceCacheTTL() time.Duration {
	return time.Duration(c.ResourceCacheTTLMin) * time.Minute
}

// DiscoveryRetryDelay returns the delay between empty discovery attempts.
func (c *ServerConfig) DiscoveryRetryDelay() time.Duration {
	return time.Duration(c.DiscoveryRetryDelaySec) * time.Second
}

// DiscoveryTimeout returns the hard wall-clock ceiling for one discovery run.
func (c *ServerConfig) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutSec) * time.Second
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/adlink/")
	v.AddConfigPath("$HOME/.adlink")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/adlink_dev")
	v.SetDefault("MONGO_DB_NAME", "adlink_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("RESOURCE_CACHE_TTL_MIN", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "adlink-server")
	v.SetDefault("PLATFORM_GRAPH_URL", "https://graph.facebook.com/v19.0")
	v.SetDefault("SESSION_JWT_SECRET", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("DISCOVERY_RETRY_DELAY_SEC", 5)
	v.SetDefault("DISCOVERY_TIMEOUT_SEC", 15)
	v.SetDefault("DISCOVERY_MAX_RETRIES", 3)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on defaults/env. Anything
		// else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server binary.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Storage. When MONGO_URI is empty the server runs on in-memory stores.
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// REDIS_ADDR enables the shared bearer-token cache.
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	// Protocol parameters.
	Issuer                string `mapstructure:"ISSUER"`
	ScopesSupported       string `mapstructure:"SCOPES_SUPPORTED"` // space-separated
	VerificationURI       string `mapstructure:"VERIFICATION_URI"`
	AuthCodeTTLSec        int    `mapstructure:"AUTH_CODE_TTL_SEC"`
	AccessTokenTTLMin     int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour   int    `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`
	DeviceCodeTTLSec      int    `mapstructure:"DEVICE_CODE_TTL_SEC"`
	DeviceCodeIntervalSec int    `mapstructure:"DEVICE_CODE_INTERVAL_SEC"`
	RotateRefreshTokens   bool   `mapstructure:"ROTATE_REFRESH_TOKENS"`
}

// AuthCodeTTL returns the authorization-code TTL as a duration.
func (c *ServerConfig) AuthCodeTTL() time.Duration {
	return time.Duration(c.AuthCodeTTLSec) * time.Second
}

// AccessTokenTTL returns the access-token TTL as a duration.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the refresh-token TTL as a duration.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// DeviceCodeTTL returns the device-credential TTL as a duration.
func (c *ServerConfig) DeviceCodeTTL() time.Duration {
	return time.Duration(c.DeviceCodeTTLSec) * time.Second
}

// Scopes returns the server-wide scope whitelist as a slice.
func (c *ServerConfig) Scopes() []string {
	return strings.Fields(c.ScopesSupported)
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authserverd/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("MONGO_DB_NAME", "oauth2")
	v.SetDefault("REDIS_PREFIX", "oauth2")
	v.SetDefault("ISSUER", "http://localhost:8080")
	v.SetDefault("VERIFICATION_URI", "http://localhost:8080/activate")
	v.SetDefault("AUTH_CODE_TTL_SEC", 600)
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 720)
	v.SetDefault("DEVICE_CODE_TTL_SEC", 1800)
	v.SetDefault("DEVICE_CODE_INTERVAL_SEC", 5)
	v.SetDefault("ROTATE_REFRESH_TOKENS", false)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

/**
 * @description
 * This package handles the configuration management for the payments portal
 * API. It uses the Viper library to read configuration from environment
 * variables (with an optional .env file), providing a centralized and
 * straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payments portal API.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	TokenTTLHours         int    `mapstructure:"TOKEN_TTL_HOURS"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisRevocationPrefix string `mapstructure:"REDIS_REVOCATION_PREFIX"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	PaymentEventExchange  string `mapstructure:"PAYMENT_EVENT_EXCHANGE"`
	AllowedOrigins        string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TOKEN_TTL_HOURS", 8)
	viper.SetDefault("REDIS_REVOCATION_PREFIX", "portal:revoked_sessions")
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "portal.events")
	viper.SetDefault("ALLOWED_ORIGINS", "https://*,http://*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "PORTAL_JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_HOURS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_REVOCATION_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.JWTSecret) == "" {
		config.JWTSecret = strings.TrimSpace(os.Getenv("PORTAL_JWT_SECRET"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRevocationPrefix = strings.TrimSpace(config.RedisRevocationPrefix)
	if config.RedisRevocationPrefix == "" {
		config.RedisRevocationPrefix = "portal:revoked_sessions"
	}
	config.PaymentEventExchange = strings.TrimSpace(config.PaymentEventExchange)
	if config.PaymentEventExchange == "" {
		config.PaymentEventExchange = "portal.events"
	}

	// Session tokens carry an expiry measured in hours, not days. Clamp
	// anything unreasonable back to the default.
	if config.TokenTTLHours <= 0 || config.TokenTTLHours > 24 {
		config.TokenTTLHours = 8
	}

	return
}

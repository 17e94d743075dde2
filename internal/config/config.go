/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
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

// Config holds all the configuration variables for the impact-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	AdminAPIKey          string `mapstructure:"ADMIN_API_KEY"`
	ManagerJWKSURL       string `mapstructure:"MANAGER_JWKS_URL"`
	ManagerRoleClaims    string `mapstructure:"MANAGER_ROLE_CLAIMS"`
	ManagerAllowedRoles  string `mapstructure:"MANAGER_ALLOWED_ROLES"`
	ManagerAllowedEmails string `mapstructure:"MANAGER_ALLOWED_EMAILS"`

	IndexerBaseURL        string `mapstructure:"INDEXER_BASE_URL"`
	IndexerTimeoutSeconds int    `mapstructure:"INDEXER_TIMEOUT_SECONDS"`

	ProjectCreateRateLimit     int `mapstructure:"PROJECT_CREATE_RATE_LIMIT"`
	ProjectCreateWindowSeconds int `mapstructure:"PROJECT_CREATE_WINDOW_SECONDS"`
	ApplicationRateLimit       int `mapstructure:"APPLICATION_RATE_LIMIT"`
	ApplicationWindowSeconds   int `mapstructure:"APPLICATION_WINDOW_SECONDS"`
	RateLimiterMaxEntries      int `mapstructure:"RATE_LIMITER_MAX_ENTRIES"`
	RateLimiterSweepSeconds    int `mapstructure:"RATE_LIMITER_SWEEP_SECONDS"`
	ProjectListMaxLimit        int `mapstructure:"PROJECT_LIST_MAX_LIMIT"`
}

// CSVList splits a comma-separated config value into trimmed, non-empty entries.
func CSVList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "impact:rate_limit")
	viper.SetDefault("MANAGER_ROLE_CLAIMS", "role,roles,org_role")
	viper.SetDefault("MANAGER_ALLOWED_ROLES", "manager,admin")
	viper.SetDefault("INDEXER_TIMEOUT_SECONDS", 5)
	viper.SetDefault("PROJECT_CREATE_RATE_LIMIT", 10)
	viper.SetDefault("PROJECT_CREATE_WINDOW_SECONDS", 60)
	viper.SetDefault("APPLICATION_RATE_LIMIT", 20)
	viper.SetDefault("APPLICATION_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMITER_MAX_ENTRIES", 10000)
	viper.SetDefault("RATE_LIMITER_SWEEP_SECONDS", 60)
	viper.SetDefault("PROJECT_LIST_MAX_LIMIT", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ADMIN_API_KEY", "ADMIN_API_KEY", "IMPACT_SERVICE_ADMIN_API_KEY")
	_ = viper.BindEnv("MANAGER_JWKS_URL")
	_ = viper.BindEnv("MANAGER_ROLE_CLAIMS")
	_ = viper.BindEnv("MANAGER_ALLOWED_ROLES")
	_ = viper.BindEnv("MANAGER_ALLOWED_EMAILS")
	_ = viper.BindEnv("INDEXER_BASE_URL")
	_ = viper.BindEnv("INDEXER_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PROJECT_CREATE_RATE_LIMIT")
	_ = viper.BindEnv("PROJECT_CREATE_WINDOW_SECONDS")
	_ = viper.BindEnv("APPLICATION_RATE_LIMIT")
	_ = viper.BindEnv("APPLICATION_WINDOW_SECONDS")
	_ = viper.BindEnv("RATE_LIMITER_MAX_ENTRIES")
	_ = viper.BindEnv("RATE_LIMITER_SWEEP_SECONDS")
	_ = viper.BindEnv("PROJECT_LIST_MAX_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
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
	config.AdminAPIKey = strings.TrimSpace(config.AdminAPIKey)
	if config.AdminAPIKey == "" {
		config.AdminAPIKey = strings.TrimSpace(os.Getenv("IMPACT_SERVICE_ADMIN_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "impact:rate_limit"
	}
	config.ManagerJWKSURL = strings.TrimSpace(config.ManagerJWKSURL)

	if config.IndexerTimeoutSeconds <= 0 {
		config.IndexerTimeoutSeconds = 5
	}
	if config.ProjectCreateRateLimit < 0 {
		log.Printf("level=warn component=config msg=\"negative project-create limit; disabling\" limit=%d", config.ProjectCreateRateLimit)
		config.ProjectCreateRateLimit = 0
	}
	if config.ProjectCreateWindowSeconds <= 0 {
		config.ProjectCreateWindowSeconds = 60
	}
	if config.ApplicationRateLimit < 0 {
		log.Printf("level=warn component=config msg=\"negative application limit; disabling\" limit=%d", config.ApplicationRateLimit)
		config.ApplicationRateLimit = 0
	}
	if config.ApplicationWindowSeconds <= 0 {
		config.ApplicationWindowSeconds = 60
	}
	if config.RateLimiterMaxEntries <= 0 {
		config.RateLimiterMaxEntries = 10000
	}
	if config.RateLimiterSweepSeconds <= 0 {
		config.RateLimiterSweepSeconds = 60
	}
	if config.ProjectListMaxLimit <= 0 {
		config.ProjectListMaxLimit = 100
	}

	return
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Store backends
const (
	BackendDynamoDB = "dynamodb"
	BackendBolt     = "bolt"
)

const minSessionSecretLength = 32

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort  string
	Environment string

	// Storage
	StoreBackend     string
	ToWatchTable     string // DynamoDB table name
	AWSRegion        string
	DynamoDBEndpoint string // optional, for a local DynamoDB
	DatabaseFile     string // $CONFIG_DIR/towatch.db

	// Session
	SessionSecret string
	SessionTTL    time.Duration

	// TMDB
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBLanguage     string

	// Catalog
	CatalogCacheTTL        time.Duration
	CatalogRefreshSchedule string

	// Observability
	LogLevel       string
	LogFormat      string
	TracingEnabled bool
}

// IsProduction reports whether cookies must be marked Secure
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE_BACKEND", BackendDynamoDB)
	v.SetDefault("DDB_TO_WATCH_TABLE", "user-media")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SESSION_TTL_HOURS", 24*7)
	v.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	v.SetDefault("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("TMDB_LANGUAGE", "en-US")
	v.SetDefault("CATALOG_CACHE_TTL_MINUTES", 60)
	v.SetDefault("CATALOG_REFRESH_SCHEDULE", "@every 1h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRACING_ENABLED", false)

	configDir, err := resolveConfigDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		ServerPort:  v.GetString("SERVER_PORT"),
		Environment: v.GetString("ENVIRONMENT"),

		StoreBackend:     v.GetString("STORE_BACKEND"),
		ToWatchTable:     v.GetString("DDB_TO_WATCH_TABLE"),
		AWSRegion:        v.GetString("AWS_REGION"),
		DynamoDBEndpoint: v.GetString("DYNAMODB_ENDPOINT"),
		DatabaseFile:     filepath.Join(configDir, "towatch.db"),

		SessionSecret: v.GetString("SESSION_SECRET"),
		SessionTTL:    time.Duration(v.GetInt("SESSION_TTL_HOURS")) * time.Hour,

		TMDBAPIKey:       v.GetString("TMDB_API_KEY"),
		TMDBBaseURL:      v.GetString("TMDB_BASE_URL"),
		TMDBImageBaseURL: v.GetString("TMDB_IMAGE_BASE_URL"),
		TMDBLanguage:     v.GetString("TMDB_LANGUAGE"),

		CatalogCacheTTL:        time.Duration(v.GetInt("CATALOG_CACHE_TTL_MINUTES")) * time.Minute,
		CatalogRefreshSchedule: v.GetString("CATALOG_REFRESH_SCHEDULE"),

		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		TracingEnabled: v.GetBool("TRACING_ENABLED"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.ToWatchTable == "" {
			return fmt.Errorf("DDB_TO_WATCH_TABLE is required")
		}
	case BackendBolt:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendDynamoDB, BackendBolt, c.StoreBackend)
	}

	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if len(c.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}

	tag, err := language.Parse(c.TMDBLanguage)
	if err != nil {
		return fmt.Errorf("TMDB_LANGUAGE is not a valid language tag: %w", err)
	}
	c.TMDBLanguage = tag.String()

	if c.CatalogCacheTTL <= 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL_MINUTES must be positive")
	}

	return nil
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "towatch")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

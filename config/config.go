package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	Search   SearchConfig   `mapstructure:"search"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	Host              string        `mapstructure:"host"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RateBurst         int           `mapstructure:"rate_burst"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MinConnections   int           `mapstructure:"min_connections"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// EmbedderConfig holds the OpenAI embeddings client configuration
type EmbedderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTLSec    int           `mapstructure:"cache_ttl_sec"`
}

// SearchConfig holds retrieval and ranking configuration
type SearchConfig struct {
	V2Enabled        bool    `mapstructure:"v2_enabled"`
	ShadowSampleRate float64 `mapstructure:"shadow_sample_rate"`
	CacheSize        int     `mapstructure:"cache_size"`
	CacheTTLSec      int     `mapstructure:"cache_ttl_sec"`
	PreferredStore   string  `mapstructure:"preferred_store"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Load .env file
	if err := loadEnvFile(); err != nil {
		// .env is optional, log but don't fail
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	// Enable environment variable override
	v.AutomaticEnv()

	// Bind env keys for nested config
	bindEnvVars(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyFloors(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

// applyFloors clamps cache knobs to their operational minimums so a
// misconfigured environment cannot disable caching outright.
func applyFloors(cfg *Config) {
	if cfg.Search.CacheSize < 50 {
		cfg.Search.CacheSize = 50
	}
	if cfg.Search.CacheTTLSec < 5 {
		cfg.Search.CacheTTLSec = 5
	}
	if cfg.Embedder.CacheSize < 100 {
		cfg.Embedder.CacheSize = 100
	}
	if cfg.Embedder.CacheTTLSec < 60 {
		cfg.Embedder.CacheTTLSec = 60
	}
	if cfg.Search.ShadowSampleRate < 0 {
		cfg.Search.ShadowSampleRate = 0
	}
	if cfg.Search.ShadowSampleRate > 1 {
		cfg.Search.ShadowSampleRate = 1
	}
}

// loadEnvFile loads a .env file by parsing KEY=VALUE lines and setting them
// as environment variables
func loadEnvFile() error {
	envPaths := []string{".", "./config"}

	for _, path := range envPaths {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads a .env file and sets environment variables
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			// Remove quotes if present
			value = strings.Trim(value, "\"'")
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")

	// Embedder
	v.BindEnv("embedder.api_key", "OPENAI_API_KEY")
	v.BindEnv("embedder.model", "OPENAI_EMBED_MODEL")
	v.BindEnv("embedder.base_url", "OPENAI_BASE_URL")
	v.BindEnv("embedder.cache_size", "MCP_EMBED_QUERY_CACHE_SIZE")
	v.BindEnv("embedder.cache_ttl_sec", "MCP_EMBED_QUERY_CACHE_TTL_SEC")

	// Search
	v.BindEnv("search.v2_enabled", "MCP_V2_ENABLED")
	v.BindEnv("search.shadow_sample_rate", "MCP_V2_SHADOW_SAMPLE_RATE")
	v.BindEnv("search.cache_size", "MCP_SEARCH_CACHE_SIZE")
	v.BindEnv("search.cache_ttl_sec", "MCP_SEARCH_CACHE_TTL_SEC")
	v.BindEnv("search.preferred_store", "MCP_PREFERRED_STORE")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.requests_per_second", 20)
	v.SetDefault("server.rate_burst", 40)

	// Database defaults
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	// Embedder defaults
	v.SetDefault("embedder.model", "text-embedding-3-small")
	v.SetDefault("embedder.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedder.request_timeout", 10*time.Second)
	v.SetDefault("embedder.max_retries", 2)
	v.SetDefault("embedder.cache_size", 5000)
	v.SetDefault("embedder.cache_ttl_sec", 900)

	// Search defaults
	v.SetDefault("search.v2_enabled", false)
	v.SetDefault("search.shadow_sample_rate", 0.0)
	v.SetDefault("search.cache_size", 2000)
	v.SetDefault("search.cache_ttl_sec", 45)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

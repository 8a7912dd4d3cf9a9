package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OCRConfig holds vision-OCR configuration. OCR is the fallback path for
// scanned PDFs and images; it is disabled when the API key is empty.
type OCRConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds bank statement analysis configuration
type AnalysisConfig struct {
	// SyntheticFallback permits the lossy estimate path when no transactions
	// or balances could be parsed. Tunable policy, not a fixed law.
	SyntheticFallback bool `mapstructure:"synthetic_fallback"`
	// MaxConcurrentDocs caps per-batch document fan-out.
	MaxConcurrentDocs int `mapstructure:"max_concurrent_docs"`
}

// RemoteConfig holds the optional remote parsing backend configuration.
// When BaseURL is empty all analysis runs locally.
type RemoteConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/fundmatch.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("ocr.model", "gpt-4o")
	viper.SetDefault("ocr.timeout", 45*time.Second)

	viper.SetDefault("analysis.synthetic_fallback", true)
	viper.SetDefault("analysis.max_concurrent_docs", 3)

	viper.SetDefault("remote.timeout", 30*time.Second)
	viper.SetDefault("remote.max_retries", 3)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("ocr.api_key", "OPENAI_API_KEY")
	viper.BindEnv("remote.base_url", "REMOTE_ANALYSIS_URL")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Analysis.MaxConcurrentDocs <= 0 {
		return fmt.Errorf("analysis.max_concurrent_docs must be positive, got %d", c.Analysis.MaxConcurrentDocs)
	}
	if c.Remote.BaseURL != "" && c.Remote.MaxRetries <= 0 {
		return fmt.Errorf("remote.max_retries must be positive when remote.base_url is set")
	}
	return nil
}

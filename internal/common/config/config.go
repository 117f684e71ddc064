// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PipelineConfig holds reconciliation thresholds and batch concurrency.
type PipelineConfig struct {
	FuzzyMatchThreshold float64 `mapstructure:"fuzzy_match_threshold"`
	ConfidenceWarning   float64 `mapstructure:"confidence_warning"`
	UnmatchedFloor      float64 `mapstructure:"unmatched_floor"`
	OCRConcurrency      int     `mapstructure:"ocr_concurrency"`
	MaxSuggestions      int     `mapstructure:"max_suggestions"`
	ItemTimeout         int     `mapstructure:"item_timeout"` // milliseconds
}

type UploadConfig struct {
	MaxUploadSizeMB int `mapstructure:"max_upload_size_mb"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// ReferenceConfig selects and configures the reference data backend.
type ReferenceConfig struct {
	Backend  string         `mapstructure:"backend"` // "sheet" or "postgres"
	Sheet    SheetConfig    `mapstructure:"sheet"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SheetConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ProvidersConfig holds settings for the vision OCR and chat model providers.
type ProvidersConfig struct {
	Vision VisionConfig `mapstructure:"vision"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

type VisionConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	Timeout       int     `mapstructure:"timeout"` // milliseconds
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

type ChatConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	Timeout       int     `mapstructure:"timeout"` // milliseconds
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like PIPELINE_OCR_CONCURRENCY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideFromEnv applies the public environment knobs on top of file config.
func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("FUZZY_MATCH_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pipeline.FuzzyMatchThreshold = f
		}
	}
	if val := os.Getenv("CONFIDENCE_WARNING"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pipeline.ConfidenceWarning = f
		}
	}
	if val := os.Getenv("OCR_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Pipeline.OCRConcurrency = n
		}
	}
	if val := os.Getenv("MAX_UPLOAD_SIZE_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Upload.MaxUploadSizeMB = n
		}
	}
	if val := os.Getenv("CACHE_TTL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Cache.TTLSeconds = n
		}
	}

	// Provider credentials
	if cfg.Providers.Vision.APIKey == "" {
		if val := os.Getenv("VISION_API_KEY"); val != "" {
			cfg.Providers.Vision.APIKey = val
		}
	}
	if cfg.Providers.Chat.APIKey == "" {
		if val := os.Getenv("CHAT_API_KEY"); val != "" {
			cfg.Providers.Chat.APIKey = val
		}
	}

	// Reference backend overrides
	if val := os.Getenv("REFERENCE_BACKEND"); val != "" {
		cfg.Reference.Backend = val
	}
	if cfg.Reference.Sheet.Path == "" {
		if val := os.Getenv("REFERENCE_SHEET_PATH"); val != "" {
			cfg.Reference.Sheet.Path = val
		}
	}
	if cfg.Reference.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Reference.Postgres.User = val
		}
	}
	if cfg.Reference.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Reference.Postgres.Password = val
		}
	}

	if cfg.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Redis.Address = val
			cfg.Redis.Enabled = true
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Pipeline defaults
	if cfg.Pipeline.FuzzyMatchThreshold == 0 {
		cfg.Pipeline.FuzzyMatchThreshold = 0.75
	}
	if cfg.Pipeline.ConfidenceWarning == 0 {
		cfg.Pipeline.ConfidenceWarning = 0.7
	}
	if cfg.Pipeline.UnmatchedFloor == 0 {
		cfg.Pipeline.UnmatchedFloor = 0.3
	}
	if cfg.Pipeline.OCRConcurrency == 0 {
		cfg.Pipeline.OCRConcurrency = 2
	}
	if cfg.Pipeline.MaxSuggestions == 0 {
		cfg.Pipeline.MaxSuggestions = 3
	}
	if cfg.Pipeline.ItemTimeout == 0 {
		cfg.Pipeline.ItemTimeout = 120000
	}

	if cfg.Upload.MaxUploadSizeMB == 0 {
		cfg.Upload.MaxUploadSizeMB = 10
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}

	// Reference defaults
	if cfg.Reference.Backend == "" {
		cfg.Reference.Backend = "sheet"
	}
	if cfg.Reference.Postgres.MaxConnections == 0 {
		cfg.Reference.Postgres.MaxConnections = 25
	}
	if cfg.Reference.Postgres.MaxIdle == 0 {
		cfg.Reference.Postgres.MaxIdle = 5
	}
	if cfg.Reference.Postgres.SSLMode == "" {
		cfg.Reference.Postgres.SSLMode = "disable"
	}

	// Provider defaults
	if cfg.Providers.Vision.Timeout == 0 {
		cfg.Providers.Vision.Timeout = 60000
	}
	if cfg.Providers.Vision.RatePerSecond == 0 {
		cfg.Providers.Vision.RatePerSecond = 2
	}
	if cfg.Providers.Chat.Timeout == 0 {
		cfg.Providers.Chat.Timeout = 60000
	}
	if cfg.Providers.Chat.Temperature == 0 {
		cfg.Providers.Chat.Temperature = 0.1
	}
	if cfg.Providers.Chat.MaxTokens == 0 {
		cfg.Providers.Chat.MaxTokens = 2000
	}
	if cfg.Providers.Chat.RatePerSecond == 0 {
		cfg.Providers.Chat.RatePerSecond = 2
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Pipeline.FuzzyMatchThreshold < 0 || cfg.Pipeline.FuzzyMatchThreshold > 1 {
		return fmt.Errorf("pipeline.fuzzy_match_threshold must be in [0,1]")
	}
	if cfg.Pipeline.ConfidenceWarning < 0 || cfg.Pipeline.ConfidenceWarning > 1 {
		return fmt.Errorf("pipeline.confidence_warning must be in [0,1]")
	}
	if cfg.Pipeline.UnmatchedFloor < 0 || cfg.Pipeline.UnmatchedFloor > 1 {
		return fmt.Errorf("pipeline.unmatched_floor must be in [0,1]")
	}

	switch cfg.Reference.Backend {
	case "sheet":
		if cfg.Reference.Sheet.Path == "" {
			return fmt.Errorf("reference.sheet.path is required for the sheet backend")
		}
	case "postgres":
		if cfg.Reference.Postgres.Host == "" {
			return fmt.Errorf("reference.postgres.host is required for the postgres backend")
		}
		if cfg.Reference.Postgres.Database == "" {
			return fmt.Errorf("reference.postgres.database is required for the postgres backend")
		}
		if cfg.Reference.Postgres.User == "" {
			return fmt.Errorf("reference.postgres.user is required for the postgres backend")
		}
	default:
		return fmt.Errorf("reference.backend must be 'sheet' or 'postgres', got %q", cfg.Reference.Backend)
	}

	if cfg.Redis.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadSizeMB) * 1024 * 1024
}

// TTL returns the cache time-to-live as a Duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the catalog pipeline
type Config struct {
	// TMDB catalog source credentials and fetch limits
	TMDB TMDBConfig `yaml:"tmdb" json:"tmdb"`

	// Link wrapping service settings
	Wrap WrapConfig `yaml:"wrap" json:"wrap"`

	// Pipeline scheduling and batching
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Row store and checkpoint locations
	Store StoreConfig `yaml:"store" json:"store"`

	// Read-only catalog server
	Serve ServeConfig `yaml:"serve" json:"serve"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TMDBConfig holds TMDB-specific configuration. ReadToken (v4 bearer) is
// preferred over APIKey (v3) when both are set.
type TMDBConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	ReadToken string `yaml:"read_token" json:"read_token"`
	Language  string `yaml:"language" json:"language"`

	// Page caps per endpoint; 0 means fetch everything TMDB will serve.
	MaxPagesMovies   int `yaml:"max_pages_movies" json:"max_pages_movies"`
	MaxPagesTV       int `yaml:"max_pages_tv" json:"max_pages_tv"`
	MaxPagesAnime    int `yaml:"max_pages_anime" json:"max_pages_anime"`
	MaxPagesChannels int `yaml:"max_pages_channels" json:"max_pages_channels"`

	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
	Incremental  bool          `yaml:"incremental" json:"incremental"`
}

// WrapConfig holds link-wrapping service configuration
type WrapConfig struct {
	AccountID    string        `yaml:"account_id" json:"account_id"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
}

// PipelineConfig holds cycle scheduling and batch processing configuration
type PipelineConfig struct {
	Interval   time.Duration `yaml:"interval" json:"interval"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// StoreConfig holds row store and checkpoint store locations
type StoreConfig struct {
	WorkbookPath  string `yaml:"workbook_path" json:"workbook_path"`
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// ServeConfig holds the read-only catalog server configuration
type ServeConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			Language:         "en-US",
			MaxPagesMovies:   0,
			MaxPagesTV:       0,
			MaxPagesAnime:    0,
			MaxPagesChannels: 10,
			RequestDelay:     250 * time.Millisecond,
			Incremental:      true,
		},
		Wrap: WrapConfig{
			BaseURL:      "https://link-to.net",
			Timeout:      30 * time.Second,
			RequestDelay: 250 * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			Interval:   12 * time.Hour,
			BatchSize:  500,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Store: StoreConfig{
			WorkbookPath:  "./data/catalog.xlsx",
			CheckpointDir: "./data/checkpoints",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// TMDB credentials keep their conventional names so an existing .env works
	if apiKey := os.Getenv("TMDB_API_KEY"); apiKey != "" {
		c.TMDB.APIKey = apiKey
	}
	if readToken := os.Getenv("TMDB_READ_TOKEN"); readToken != "" {
		c.TMDB.ReadToken = readToken
	}

	if accountID := os.Getenv("CINEPIPE_WRAP_ACCOUNT_ID"); accountID != "" {
		c.Wrap.AccountID = accountID
	}
	if baseURL := os.Getenv("CINEPIPE_WRAP_BASE_URL"); baseURL != "" {
		c.Wrap.BaseURL = baseURL
	}

	if interval := os.Getenv("CINEPIPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			c.Pipeline.Interval = d
		}
	}
	if batch := os.Getenv("CINEPIPE_BATCH_SIZE"); batch != "" {
		var val int
		fmt.Sscanf(batch, "%d", &val)
		if val > 0 {
			c.Pipeline.BatchSize = val
		}
	}

	if workbook := os.Getenv("CINEPIPE_WORKBOOK"); workbook != "" {
		c.Store.WorkbookPath = workbook
	}
	if checkpointDir := os.Getenv("CINEPIPE_CHECKPOINT_DIR"); checkpointDir != "" {
		c.Store.CheckpointDir = checkpointDir
	}

	if addr := os.Getenv("CINEPIPE_SERVE_ADDR"); addr != "" {
		c.Serve.Addr = addr
	}

	if logLevel := os.Getenv("CINEPIPE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".cinepipe.yaml",
		".cinepipe.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "cinepipe", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "cinepipe", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".cinepipe.yaml"),
		filepath.Join(os.Getenv("HOME"), ".cinepipe.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.Interval <= 0 {
		errs = append(errs, errors.New("pipeline interval must be positive"))
	}
	if c.Pipeline.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Pipeline.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Store.WorkbookPath == "" {
		errs = append(errs, errors.New("workbook path is required"))
	}
	if c.Store.CheckpointDir == "" {
		errs = append(errs, errors.New("checkpoint directory is required"))
	}

	if c.TMDB.RequestDelay < 0 {
		errs = append(errs, errors.New("TMDB request delay cannot be negative"))
	}
	if c.Wrap.Timeout <= 0 {
		errs = append(errs, errors.New("wrap timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if workbook, ok := flags["workbook"].(string); ok && workbook != "" {
		c.Store.WorkbookPath = workbook
	}
	if checkpointDir, ok := flags["checkpoint-dir"].(string); ok && checkpointDir != "" {
		c.Store.CheckpointDir = checkpointDir
	}
	if interval, ok := flags["interval"].(time.Duration); ok && interval > 0 {
		c.Pipeline.Interval = interval
	}
	if batchSize, ok := flags["batch-size"].(int); ok && batchSize > 0 {
		c.Pipeline.BatchSize = batchSize
	}
	if accountID, ok := flags["wrap-account"].(string); ok && accountID != "" {
		c.Wrap.AccountID = accountID
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Serve.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cinepipe.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

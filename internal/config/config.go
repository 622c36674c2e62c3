package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration. It is loaded once at startup
// and read-only for the lifetime of the process.
type Config struct {
	// AccessToken is the bearer secret clients must present on protected routes.
	AccessToken string `mapstructure:"access_token"`
	// AccountID and APIToken authenticate against the Cloudflare API, both for
	// model invocation and the model catalog listing.
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
	BaseURL   string `mapstructure:"base_url"`
	// ModelMapper optionally maps public-facing model names to backend-native
	// ones. Unmapped names pass through unchanged.
	ModelMapper map[string]string `mapstructure:"model_mapper"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Host        string            `mapstructure:"host"`
	Port        int               `mapstructure:"port"`
	Debug       bool              `mapstructure:"debug"`
	Verbose     bool              `mapstructure:"verbose"`
}

// StorageConfig selects and configures the blob store backing image storage.
type StorageConfig struct {
	// Backend is "local" (default) or "s3".
	Backend   string   `mapstructure:"backend"`
	Directory string   `mapstructure:"directory"`
	S3        S3Config `mapstructure:"s3"`
}

// S3Config configures the S3-compatible blob store. Endpoint is set when
// pointing at R2 or another non-AWS implementation.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.cloudflare.com/client/v4",
		Host:    "127.0.0.1",
		Port:    8787,
		Storage: StorageConfig{
			Backend:   "local",
			Directory: "./data/images",
		},
	}
}

// Load loads configuration with precedence: ENV vars > config file > defaults
func Load() (*Config, error) {
	v := viper.New()

	defaultCfg := DefaultConfig()
	v.SetDefault("access_token", defaultCfg.AccessToken)
	v.SetDefault("account_id", defaultCfg.AccountID)
	v.SetDefault("api_token", defaultCfg.APIToken)
	v.SetDefault("base_url", defaultCfg.BaseURL)
	v.SetDefault("host", defaultCfg.Host)
	v.SetDefault("port", defaultCfg.Port)
	v.SetDefault("debug", defaultCfg.Debug)
	v.SetDefault("storage.backend", defaultCfg.Storage.Backend)
	v.SetDefault("storage.directory", defaultCfg.Storage.Directory)

	v.SetConfigName("config")
	v.SetConfigType("json")

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()

	_ = v.BindEnv("access_token", "GATEWAY_ACCESS_TOKEN")
	_ = v.BindEnv("account_id", "GATEWAY_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID")
	_ = v.BindEnv("api_token", "GATEWAY_API_TOKEN", "CLOUDFLARE_API_TOKEN")
	_ = v.BindEnv("base_url", "GATEWAY_BASE_URL")
	_ = v.BindEnv("host", "GATEWAY_HOST")
	_ = v.BindEnv("port", "GATEWAY_PORT")
	_ = v.BindEnv("debug", "GATEWAY_DEBUG")
	_ = v.BindEnv("storage.backend", "GATEWAY_STORAGE_BACKEND")
	_ = v.BindEnv("storage.directory", "GATEWAY_STORAGE_DIRECTORY")
	_ = v.BindEnv("storage.s3.bucket", "GATEWAY_S3_BUCKET")
	_ = v.BindEnv("storage.s3.region", "GATEWAY_S3_REGION")
	_ = v.BindEnv("storage.s3.endpoint", "GATEWAY_S3_ENDPOINT")
	_ = v.BindEnv("storage.s3.access_key_id", "GATEWAY_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.s3.secret_access_key", "GATEWAY_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is fine, we'll use defaults/env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Save saves the configuration to file
func Save(cfg *Config) error {
	configDir, err := getConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	v.Set("access_token", cfg.AccessToken)
	v.Set("account_id", cfg.AccountID)
	v.Set("api_token", cfg.APIToken)
	v.Set("base_url", cfg.BaseURL)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("debug", cfg.Debug)
	v.Set("model_mapper", cfg.ModelMapper)
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.directory", cfg.Storage.Directory)
	v.Set("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.Set("storage.s3.region", cfg.Storage.S3.Region)
	v.Set("storage.s3.endpoint", cfg.Storage.S3.Endpoint)

	configPath := filepath.Join(configDir, "config.json")
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MapModel resolves a caller-supplied model name through the configured
// mapping table. Unmapped names are returned unchanged.
func (c *Config) MapModel(name string) string {
	if mapped, ok := c.ModelMapper[name]; ok {
		return mapped
	}
	return name
}

// getConfigDir returns the configuration directory path (XDG-compliant)
func getConfigDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "workers-ai-proxy"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "workers-ai-proxy"), nil
}

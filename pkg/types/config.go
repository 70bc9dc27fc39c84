package types

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Translation TranslationConfig
	Cache       CacheConfig
	SiliconFlow ProviderConfig
	Dify        ProviderConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AppEnv          string
	LogLevel        string
}

// DatabaseConfig configures the optional cache persistence.
// An empty Driver disables persistence.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Name     string
	Host     string
	Port     string
	User     string
	Password string
	SSLMode  string
}

type TranslationConfig struct {
	PrimaryProvider   ProviderID
	TargetLanguage    string
	RequestTimeout    time.Duration
	TestTimeout       time.Duration
	MaxConcurrentJobs int
}

type CacheConfig struct {
	Enabled         bool
	TTL             time.Duration
	MaxEntries      int
	CleanupSchedule string
}

type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	RateLimit  int
	RateWindow time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "6777")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("PRIMARY_PROVIDER", string(ProviderSiliconFlow))
	v.SetDefault("TARGET_LANGUAGE", "zh-CN")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("TEST_TIMEOUT", 20*time.Second)
	v.SetDefault("MAX_CONCURRENT_JOBS", 8)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", 24*time.Hour)
	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	v.SetDefault("CACHE_CLEANUP_SCHEDULE", "@every 1h")

	v.SetDefault("SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	v.SetDefault("SILICONFLOW_MODEL", "Qwen/Qwen2.5-7B-Instruct")
	v.SetDefault("SILICONFLOW_RATE_LIMIT", 100)
	v.SetDefault("SILICONFLOW_RATE_WINDOW", time.Minute)

	v.SetDefault("DIFY_BASE_URL", "https://api.dify.ai/v1")
	v.SetDefault("DIFY_RATE_LIMIT", 60)
	v.SetDefault("DIFY_RATE_WINDOW", time.Minute)

	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "translate-bridge.db")
}

func validateRequiredEnvs(v *viper.Viper, requiredEnvs []string) error {
	for _, env := range requiredEnvs {
		if v.GetString(env) == "" {
			return fmt.Errorf("%s is required", env)
		}
	}
	return nil
}

// LoadConfig reads configuration from environment variables and ./.env
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom reads configuration from environment variables and the given env file.
// A missing file is not an error.
func LoadConfigFrom(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable reading first
	v.AutomaticEnv()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Print("No config file found, falling back to environment variables")
	}

	switch v.GetString("DB_DRIVER") {
	case "":
	case "postgres":
		if err := validateRequiredEnvs(v, []string{"DB_NAME", "DB_HOST", "DB_PORT", "DB_USER"}); err != nil {
			return nil, err
		}
	case "sqlite":
		if err := validateRequiredEnvs(v, []string{"DB_PATH"}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", v.GetString("DB_DRIVER"))
	}

	config := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			AppEnv:          v.GetString("APP_ENV"),
			LogLevel:        v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Path:     v.GetString("DB_PATH"),
			Name:     v.GetString("DB_NAME"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Translation: TranslationConfig{
			PrimaryProvider:   ProviderID(v.GetString("PRIMARY_PROVIDER")),
			TargetLanguage:    v.GetString("TARGET_LANGUAGE"),
			RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
			TestTimeout:       v.GetDuration("TEST_TIMEOUT"),
			MaxConcurrentJobs: v.GetInt("MAX_CONCURRENT_JOBS"),
		},
		Cache: CacheConfig{
			Enabled:         v.GetBool("CACHE_ENABLED"),
			TTL:             v.GetDuration("CACHE_TTL"),
			MaxEntries:      v.GetInt("CACHE_MAX_ENTRIES"),
			CleanupSchedule: v.GetString("CACHE_CLEANUP_SCHEDULE"),
		},
		SiliconFlow: ProviderConfig{
			APIKey:     v.GetString("SILICONFLOW_API_KEY"),
			BaseURL:    v.GetString("SILICONFLOW_BASE_URL"),
			Model:      v.GetString("SILICONFLOW_MODEL"),
			RateLimit:  v.GetInt("SILICONFLOW_RATE_LIMIT"),
			RateWindow: v.GetDuration("SILICONFLOW_RATE_WINDOW"),
		},
		Dify: ProviderConfig{
			APIKey:     v.GetString("DIFY_API_KEY"),
			BaseURL:    v.GetString("DIFY_BASE_URL"),
			RateLimit:  v.GetInt("DIFY_RATE_LIMIT"),
			RateWindow: v.GetDuration("DIFY_RATE_WINDOW"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would make the pipeline misbehave
func (c *Config) Validate() error {
	if !c.Translation.PrimaryProvider.Valid() {
		return fmt.Errorf("PRIMARY_PROVIDER %q: %w", c.Translation.PrimaryProvider, ErrUnknownProvider)
	}
	if c.Translation.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.Translation.MaxConcurrentJobs < 1 {
		return errors.New("MAX_CONCURRENT_JOBS must be at least 1")
	}
	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{{"SILICONFLOW", c.SiliconFlow}, {"DIFY", c.Dify}} {
		if p.cfg.RateLimit < 1 {
			return fmt.Errorf("%s_RATE_LIMIT must be at least 1", p.name)
		}
		if p.cfg.RateWindow <= 0 {
			return fmt.Errorf("%s_RATE_WINDOW must be positive", p.name)
		}
	}
	if c.Cache.MaxEntries < 1 {
		return errors.New("CACHE_MAX_ENTRIES must be at least 1")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	return nil
}

// Provider returns the configuration block for id
func (c *Config) Provider(id ProviderID) ProviderConfig {
	if id == ProviderDify {
		return c.Dify
	}
	return c.SiliconFlow
}

// Settings builds the per-request settings snapshot
func (c *Config) Settings() Settings {
	return Settings{
		PrimaryProvider: c.Translation.PrimaryProvider,
		Providers: map[ProviderID]ProviderSettings{
			ProviderSiliconFlow: {
				Credential: c.SiliconFlow.APIKey,
				Endpoint:   c.SiliconFlow.BaseURL,
				Model:      c.SiliconFlow.Model,
			},
			ProviderDify: {
				Credential: c.Dify.APIKey,
				Endpoint:   c.Dify.BaseURL,
			},
		},
		RequestTimeout: c.Translation.RequestTimeout,
		CacheEnabled:   c.Cache.Enabled,
	}
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

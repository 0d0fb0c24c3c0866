package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Server ServerConfig
	Model  ModelConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	CORSOrigins    []string
	MaxUploadBytes int64
}

// Addr is the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type ModelConfig struct {
	Provider  string
	Name      string
	MaxTokens int
	Timeout   time.Duration

	AnthropicAPIKey  string
	AnthropicBaseURL string
	GeminiAPIKey     string
}

// APIKey returns the key for the selected provider.
func (m ModelConfig) APIKey() string {
	if m.Provider == ProviderGemini {
		return m.GeminiAPIKey
	}
	return m.AnthropicAPIKey
}

type LogConfig struct {
	Level string
}

// Options controls where Load looks for settings besides the environment.
type Options struct {
	// EnvFile is loaded into the process environment first. A missing file is ignored.
	EnvFile string
	// ConfigFile is an optional yaml file read by viper. Environment variables win over it.
	ConfigFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("MAX_UPLOAD_BYTES", 5*1024*1024) // 5MB
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MODEL_PROVIDER", ProviderAnthropic)
	v.SetDefault("MODEL_NAME", "claude-sonnet-4-20250514")
	v.SetDefault("MODEL_MAX_TOKENS", 4000)
	v.SetDefault("MODEL_TIMEOUT", 5*time.Minute)
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1")
	v.SetDefault("GEMINI_API_KEY", "")
}

func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetString("SERVER_PORT"),
			CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		},
		Model: ModelConfig{
			Provider:         strings.ToLower(strings.TrimSpace(v.GetString("MODEL_PROVIDER"))),
			Name:             v.GetString("MODEL_NAME"),
			MaxTokens:        v.GetInt("MODEL_MAX_TOKENS"),
			Timeout:          v.GetDuration("MODEL_TIMEOUT"),
			AnthropicAPIKey:  v.GetString("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: strings.TrimRight(v.GetString("ANTHROPIC_BASE_URL"), "/"),
			GeminiAPIKey:     v.GetString("GEMINI_API_KEY"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be positive, got %d", c.Model.MaxTokens)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Server.MaxUploadBytes)
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be \"*\" or start with http:// or https://", origin)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

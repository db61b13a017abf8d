// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"

	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	State struct {
		Backend    string
		Table      string
		RedisAddr  string
		TTL        time.Duration
		MaxHistory int
	}
	Remote struct {
		Provider      string
		Model         string
		Timeout       time.Duration
		HistoryWindow int
		RatePerSecond float64
		Burst         int
	}
	Mistral struct {
		APIKey string
		URL    string
	}
	Gemini struct {
		APIKey string
	}
	Rasp struct {
		APIKey string
		URL    string
	}
	ParamPrefix   string
	MaxTextLength int
	Location      *time.Location
}

// Load reads the environment and validates cross-field requirements.
func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("TRAVEL_HTTP_ADDR", ":8080")

	cfg.State.Backend = strings.ToLower(envOrDefault("TRAVEL_STATE_BACKEND", BackendMemory))
	cfg.State.Table = os.Getenv("TRAVEL_STATE_TABLE")
	cfg.State.RedisAddr = envOrDefault("TRAVEL_REDIS_ADDR", "localhost:6379")
	cfg.State.TTL = envDuration("TRAVEL_STATE_TTL", 30*24*time.Hour)
	cfg.State.MaxHistory = envInt("TRAVEL_MAX_HISTORY", 50)

	cfg.Remote.Provider = strings.ToLower(envOrDefault("TRAVEL_REMOTE_PROVIDER", ProviderMistral))
	cfg.Remote.Model = os.Getenv("TRAVEL_REMOTE_MODEL")
	cfg.Remote.Timeout = envDuration("TRAVEL_REMOTE_TIMEOUT", 5*time.Second)
	cfg.Remote.HistoryWindow = envInt("TRAVEL_HISTORY_WINDOW", 10)
	cfg.Remote.RatePerSecond = envFloat("TRAVEL_REMOTE_RPS", 0)
	cfg.Remote.Burst = envInt("TRAVEL_REMOTE_BURST", 1)

	cfg.Mistral.APIKey = os.Getenv("MISTRAL_API_KEY")
	cfg.Mistral.URL = os.Getenv("MISTRAL_API_URL")
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Rasp.APIKey = os.Getenv("RASP_API_KEY")
	cfg.Rasp.URL = os.Getenv("RASP_API_URL")

	cfg.ParamPrefix = os.Getenv("TRAVEL_PARAM_PREFIX")
	cfg.MaxTextLength = envInt("TRAVEL_MAX_TEXT_LENGTH", 1000)

	loc, err := time.LoadLocation(envOrDefault("TRAVEL_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("config: TRAVEL_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.State.Backend {
	case BackendMemory, BackendRedis:
	case BackendDynamoDB:
		if c.State.Table == "" {
			errs = append(errs, errors.New("TRAVEL_STATE_TABLE is required for the dynamodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRAVEL_STATE_BACKEND %q", c.State.Backend))
	}

	switch c.Remote.Provider {
	case ProviderNone:
	case ProviderMistral:
		if c.Mistral.APIKey == "" && c.ParamPrefix == "" {
			errs = append(errs, errors.New("MISTRAL_API_KEY or TRAVEL_PARAM_PREFIX is required for the mistral provider"))
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRAVEL_REMOTE_PROVIDER %q", c.Remote.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

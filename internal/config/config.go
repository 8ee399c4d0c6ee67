package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StrategyPattern = "pattern"
	StrategyModel   = "model"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	StoragePath        string `yaml:"storage_path"`
	StorageKeepUploads bool   `yaml:"storage_keep_uploads"`
	UploadMaxBytes     int64  `yaml:"upload_max_bytes"`

	ExtractionStrategy  string `yaml:"extraction_strategy"`
	ModelProvider       string `yaml:"model_provider"`
	ModelTimeoutSeconds int    `yaml:"model_timeout_seconds"`

	OCRTimeoutSeconds int    `yaml:"ocr_timeout_seconds"`
	OCRLanguage       string `yaml:"ocr_language"`
	TesseractPath     string `yaml:"tesseract_path"`

	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OpenAIModel       string  `yaml:"openai_model"`
	OpenAITemperature float64 `yaml:"openai_temperature"`

	OllamaURL      string `yaml:"ollama_url"`
	OllamaGenModel string `yaml:"ollama_gen_model"`

	PostgresDSN string `yaml:"postgres_dsn"`

	APIRateLimitRPS       float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst     int     `yaml:"api_rate_limit_burst"`
	APIMaxInFlight        int     `yaml:"api_max_in_flight"`
	APIBackpressureWaitMS int     `yaml:"api_backpressure_wait_ms"`
	APIMaxConnections     int     `yaml:"api_max_connections"`

	ResilienceEnabled          bool `yaml:"resilience_enabled"`
	ResilienceRetryMaxAttempts int  `yaml:"resilience_retry_max_attempts"`
	ResilienceBreakerEnabled   bool `yaml:"resilience_breaker_enabled"`
}

// Defaults returns the configuration used when neither a file nor the
// environment override a key.
func Defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		StoragePath:    "./data/uploads",
		UploadMaxBytes: 10 << 20,

		ExtractionStrategy:  StrategyModel,
		ModelProvider:       ProviderOpenAI,
		ModelTimeoutSeconds: 60,

		OCRTimeoutSeconds: 60,
		OCRLanguage:       "eng",
		TesseractPath:     "tesseract",

		OpenAIModel:       "gpt-4-turbo",
		OpenAITemperature: 0,

		OllamaURL:      "http://localhost:11434",
		OllamaGenModel: "llama3.1:8b",

		APIRateLimitRPS:       20,
		APIRateLimitBurst:     40,
		APIMaxInFlight:        16,
		APIBackpressureWaitMS: 250,
		APIMaxConnections:     256,

		ResilienceRetryMaxAttempts: 2,
		ResilienceBreakerEnabled:   true,
	}
}

// Load resolves and validates the configuration.
func Load() (Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve applies defaults, then the YAML file named by CONFIG_FILE, then
// environment variables. Callers that override keys afterwards validate
// themselves.
func Resolve() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	return applyEnv(cfg), nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c Config) Config {
	c.APIPort = mustEnv("API_PORT", c.APIPort)
	c.LogLevel = mustEnv("LOG_LEVEL", c.LogLevel)

	c.StoragePath = mustEnv("STORAGE_PATH", c.StoragePath)
	c.StorageKeepUploads = mustEnvBool("STORAGE_KEEP_UPLOADS", c.StorageKeepUploads)
	c.UploadMaxBytes = mustEnvInt64("UPLOAD_MAX_BYTES", c.UploadMaxBytes)

	c.ExtractionStrategy = strings.ToLower(mustEnv("EXTRACTION_STRATEGY", c.ExtractionStrategy))
	c.ModelProvider = strings.ToLower(mustEnv("MODEL_PROVIDER", c.ModelProvider))
	c.ModelTimeoutSeconds = mustEnvInt("MODEL_TIMEOUT_SECONDS", c.ModelTimeoutSeconds)

	c.OCRTimeoutSeconds = mustEnvInt("OCR_TIMEOUT_SECONDS", c.OCRTimeoutSeconds)
	c.OCRLanguage = mustEnv("OCR_LANGUAGE", c.OCRLanguage)
	c.TesseractPath = mustEnv("TESSERACT_PATH", c.TesseractPath)

	c.OpenAIAPIKey = mustEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = mustEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = mustEnv("OPENAI_MODEL", c.OpenAIModel)
	c.OpenAITemperature = mustEnvFloat("OPENAI_TEMPERATURE", c.OpenAITemperature)

	c.OllamaURL = mustEnv("OLLAMA_URL", c.OllamaURL)
	c.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", c.OllamaGenModel)

	c.PostgresDSN = mustEnv("POSTGRES_DSN", c.PostgresDSN)

	c.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", c.APIRateLimitBurst)
	c.APIMaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", c.APIMaxInFlight)
	c.APIBackpressureWaitMS = mustEnvInt("API_BACKPRESSURE_WAIT_MS", c.APIBackpressureWaitMS)
	c.APIMaxConnections = mustEnvInt("API_MAX_CONNECTIONS", c.APIMaxConnections)

	c.ResilienceEnabled = mustEnvBool("RESILIENCE_ENABLED", c.ResilienceEnabled)
	c.ResilienceRetryMaxAttempts = mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", c.ResilienceRetryMaxAttempts)
	c.ResilienceBreakerEnabled = mustEnvBool("RESILIENCE_BREAKER_ENABLED", c.ResilienceBreakerEnabled)
	return c
}

// Validate reports every inconsistent key at once.
func (c Config) Validate() error {
	var errs []error
	switch c.ExtractionStrategy {
	case StrategyPattern, StrategyModel:
	default:
		errs = append(errs, fmt.Errorf("EXTRACTION_STRATEGY must be %q or %q, got %q", StrategyPattern, StrategyModel, c.ExtractionStrategy))
	}
	switch c.ModelProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("MODEL_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, c.ModelProvider))
	}
	if c.ExtractionStrategy == StrategyModel {
		switch c.ModelProvider {
		case ProviderOpenAI:
			if strings.TrimSpace(c.OpenAIAPIKey) == "" && strings.TrimSpace(c.OpenAIBaseURL) == "" {
				errs = append(errs, errors.New("OPENAI_API_KEY is required for the model strategy"))
			}
		case ProviderOllama:
			if strings.TrimSpace(c.OllamaURL) == "" {
				errs = append(errs, errors.New("OLLAMA_URL is required for the ollama provider"))
			}
		}
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes))
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		errs = append(errs, fmt.Errorf("OPENAI_TEMPERATURE must be within [0, 2], got %g", c.OpenAITemperature))
	}
	return errors.Join(errs...)
}

func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

func (c Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCRTimeoutSeconds) * time.Second
}

func (c Config) BackpressureWait() time.Duration {
	return time.Duration(c.APIBackpressureWaitMS) * time.Millisecond
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

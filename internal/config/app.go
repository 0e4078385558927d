package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	LLM      LLMConfig
	TTS      TTSConfig
	Telegram TelegramConfig
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Archive  ArchiveConfig
	Log      LogConfig

	// APIBaseURL - адрес сервера для кандидатского CLI
	APIBaseURL string
}

// LLMConfig выбирает провайдера для вопросов и оценки ответов
type LLMConfig struct {
	Provider    string // openai | gemini | none
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string
}

type TTSConfig struct {
	Enabled bool
	APIKey  string
	Model   string
	Voice   string
	BaseURL string
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
	RateLimit       int
	RateWindow      time.Duration
	SessionTTL      time.Duration
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// ArchiveConfig - куда сохраняются итоговые отчеты
type ArchiveConfig struct {
	Dir        string
	S3Bucket   string
	S3Endpoint string
	S3Region   string
	S3KeyID    string
	S3Secret   string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

func LoadAppConfig() *AppConfig {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	llm := LLMConfig{
		Provider:    provider,
		MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 1000),
		Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.4),
	}
	switch provider {
	case "gemini":
		llm.APIKey = getEnv("GEMINI_API_KEY", "")
		llm.Model = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
	default:
		llm.APIKey = getEnv("OPENAI_API_KEY", "")
		llm.Model = getEnv("OPENAI_MODEL", "gpt-4o")
		llm.BaseURL = getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")
	}

	return &AppConfig{
		LLM: llm,
		TTS: TTSConfig{
			Enabled: getEnvAsBool("TTS_ENABLED", true),
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("TTS_MODEL", "tts-1"),
			Voice:   getEnv("TTS_VOICE", "alloy"),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Telegram: TelegramConfig{
			Token:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID: int64(getEnvAsInt("TELEGRAM_RECRUITER_CHAT_ID", 0)),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowOrigins:    getEnvAsList("SERVER_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:       getEnvAsInt("SERVER_RATE_LIMIT", 30),
			RateWindow:      getEnvAsDuration("SERVER_RATE_WINDOW", time.Minute),
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "session_updates"),
		},
		APIBaseURL: getEnv("INTERVIEW_API_URL", "http://localhost:8080"),
		Archive: ArchiveConfig{
			Dir:        getEnv("REPORTS_DIR", "results"),
			S3Bucket:   getEnv("S3_BUCKET", ""),
			S3Endpoint: getEnv("S3_ENDPOINT", ""),
			S3Region:   getEnv("S3_REGION", "auto"),
			S3KeyID:    getEnv("S3_ACCESS_KEY_ID", ""),
			S3Secret:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}
}

// Validate проверяет корректность конфигурации
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "none":
		return nil
	case "openai", "gemini":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai, gemini or none, got %q", c.Provider)
	}

	if c.APIKey == "" {
		return fmt.Errorf("API key for %s is required", c.Provider)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

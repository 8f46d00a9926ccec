package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backend selectors
const (
	StorageBackendPlaceholder = "placeholder"
	StorageBackendS3          = "s3"
)

// Transcription backend selectors
const (
	TranscriptionBackendStub    = "stub"
	TranscriptionBackendWhisper = "whisper"
)

// Job execution modes
const (
	ExecModeSync  = "sync"
	ExecModeAsync = "async"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env         string
	Port        string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	RedisURL    string

	// Auth
	JWTSecret   string
	TokenExpiry time.Duration

	// Object storage
	StorageBackend  string
	S3Endpoint      string
	S3Region        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
	S3PublicBaseURL string
	VerifyUploads   bool

	// Transcription
	TranscriptionBackend string
	WhisperModel         string
	WhisperDevice        string

	// Audio fetch limits
	AudioTimeout    time.Duration
	AudioMaxRetries int
	AudioMaxBytes   int64

	// LLM cleanup
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMEndpoint string

	// Job dispatch
	ExecMode string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Env:         getEnvWithDefault("MYDAY_ENV", "development"),
		Port:        getEnvWithDefault("PORT", "8080"),
		LogLevel:    getEnvWithDefault("MYDAY_LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("MYDAY_LOG_FORMAT", "text"),
		DatabaseURL: os.Getenv("MYDAY_DATABASE_URL"),
		RedisURL:    getEnvWithDefault("MYDAY_REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:   os.Getenv("MYDAY_SECRET_KEY"),
		TokenExpiry: getEnvDuration("MYDAY_TOKEN_EXPIRY_MINUTES", 60) * time.Minute,

		StorageBackend:  strings.ToLower(getEnvWithDefault("MYDAY_STORAGE_BACKEND", StorageBackendPlaceholder)),
		S3Endpoint:      os.Getenv("MYDAY_S3_ENDPOINT"),
		S3Region:        getEnvWithDefault("MYDAY_S3_REGION", "us-east-1"),
		S3AccessKeyID:   os.Getenv("MYDAY_S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("MYDAY_S3_SECRET_ACCESS_KEY"),
		S3Bucket:        getEnvWithDefault("MYDAY_S3_BUCKET", "myday-dev"),
		S3UseSSL:        getEnvBool("MYDAY_S3_USE_SSL", true),
		S3PublicBaseURL: os.Getenv("MYDAY_S3_PUBLIC_BASE_URL"),
		VerifyUploads:   getEnvBool("MYDAY_VERIFY_UPLOADS", false),

		TranscriptionBackend: strings.ToLower(getEnvWithDefault("MYDAY_TRANSCRIPTION_BACKEND", TranscriptionBackendStub)),
		WhisperModel:         getEnvWithDefault("MYDAY_WHISPER_MODEL", "tiny"),
		WhisperDevice:        getEnvWithDefault("MYDAY_WHISPER_DEVICE", "cpu"),

		AudioTimeout:    getEnvDuration("MYDAY_AUDIO_TIMEOUT_SECONDS", 30) * time.Second,
		AudioMaxRetries: getEnvInt("MYDAY_AUDIO_MAX_RETRIES", 3),
		AudioMaxBytes:   int64(getEnvInt("MYDAY_AUDIO_MAX_BYTES", 50*1024*1024)),

		LLMProvider: strings.ToLower(getEnvWithDefault("MYDAY_LLM_PROVIDER", "none")),
		LLMModel:    getEnvWithDefault("MYDAY_LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:   os.Getenv("MYDAY_LLM_API_KEY"),
		LLMEndpoint: getEnvWithDefault("MYDAY_LLM_ENDPOINT", "https://api.openai.com/v1"),

		ExecMode: strings.ToLower(getEnvWithDefault("MYDAY_EXEC_MODE", ExecModeSync)),
	}

	// Warn if using default secret (insecure for production)
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "myday-secret"
		log.Println("WARNING: Using default MYDAY_SECRET_KEY. Generate a secure secret with: openssl rand -hex 32")
	}

	return cfg
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("WARNING: invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue))
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

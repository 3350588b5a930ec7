package config

import (
	"os"
	"strconv"
	"time"

	"github.com/galoberlyn/beezbuddy-be/pkg/config"
)

// Config stores environment configuration for the BeezBuddy API.
type Config struct {
	Port        string
	DatabaseURL string

	// Default strategy selection. Non-production deployments are forced to
	// the local ollama strategy regardless of this value.
	Strategy string

	LLMProvider  string
	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int
	// LLMTemperature is nil when LLM_TEMPERATURE is unset, so an explicit
	// 0 survives as a deterministic-sampling request.
	LLMTemperature *float64

	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingAPIURL   string

	WorkflowBaseURL string
	WorkflowTimeout time.Duration

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	RetrievalTopK   int
	HistoryLimit    int
	RenderTimeout   time.Duration
	Production      bool
	EnableRendering bool
}

// LoadConfig loads the service configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:        config.GetEnv("PORT", "8080"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		Strategy: config.GetEnv("MODEL_STRATEGY", "ollama"),

		LLMProvider:    config.GetEnv("LLM_PROVIDER", "ollama"),
		LLMModel:       config.GetEnv("LLM_MODEL", "llama3.2:latest"),
		LLMAPIKey:      config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:      config.GetEnv("LLM_API_URL", "http://127.0.0.1:11434"),
		LLMMaxTokens:   config.GetEnvInt("LLM_MAX_TOKENS", 4096),
		LLMTemperature: optionalFloat("LLM_TEMPERATURE"),

		EmbeddingProvider: config.GetEnv("EMBEDDING_PROVIDER", config.GetEnv("LLM_PROVIDER", "ollama")),
		EmbeddingModel:    config.GetEnv("EMBEDDING_MODEL", "nomic-embed-text:v1.5"),
		EmbeddingAPIKey:   config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		EmbeddingAPIURL:   config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "http://127.0.0.1:11434")),

		WorkflowBaseURL: config.GetEnv("WORKFLOW_BASE_URL", ""),
		WorkflowTimeout: parseDuration(config.GetEnv("WORKFLOW_TIMEOUT", "120s"), 120*time.Second),

		S3Bucket:    config.GetEnv("S3_BUCKET", ""),
		S3Region:    config.GetEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  config.GetEnv("S3_ENDPOINT", ""),
		S3AccessKey: config.GetEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: config.GetEnv("S3_SECRET_KEY", ""),

		RetrievalTopK:   config.GetEnvInt("RETRIEVAL_TOP_K", 4),
		HistoryLimit:    config.GetEnvInt("CHAT_HISTORY_LIMIT", 10),
		RenderTimeout:   parseDuration(config.GetEnv("RENDER_TIMEOUT", "30s"), 30*time.Second),
		Production:      config.IsProduction(),
		EnableRendering: config.GetEnvBool("ENABLE_RENDERING", true),
	}
}

func optionalFloat(key string) *float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

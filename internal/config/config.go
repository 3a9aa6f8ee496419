package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Workflow WorkflowConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string
	NatsURL     string
	RedisURL    string
	JwtSecret   string
	AgentPrompt string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "ollama", "huggingface" or "mock"
	LLMModel          string
	OllamaBaseURL     string
	HuggingFaceAPIKey string
	Temperature       float64
	MaxTokens         int
}

type WorkflowConfig struct {
	TopicName   string
	Workers     int
	LeaseTTL    time.Duration
	ResumeLimit int
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
	Service  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "8787"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/app.log"),
			NatsURL:     getEnv("NATS_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
			JwtSecret:   getEnv("JWT_SECRET", ""),
			AgentPrompt: getEnv("AGENT_SYSTEM_PROMPT", ""),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "sqlite"),
			Connection: getEnv("DB_CONNECTION_STRING", "clarvis.db"),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "mock"),
			LLMModel:          getEnv("LLM_MODEL", "llama3.1"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 2048),
		},
		Workflow: WorkflowConfig{
			TopicName:   getEnv("WORKFLOW_TOPIC_NAME", "STUDY_MATERIAL_RUNS"),
			Workers:     getEnvAsInt("WORKFLOW_WORKERS", 4),
			LeaseTTL:    getEnvAsDuration("WORKFLOW_LEASE_TTL", 15*time.Minute),
			ResumeLimit: getEnvAsInt("WORKFLOW_RESUME_LIMIT", 100),
		},
		Otel: OtelConfig{
			Enabled:  getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Service:  getEnv("OTEL_SERVICE_NAME", "clarvis-backend"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

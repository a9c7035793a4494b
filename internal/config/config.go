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
	SMTP     SMTPConfig
	Ai       AIConfig
	Agent    AgentConfig
	Profile  ProfileConfig
	Timeouts TimeoutConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	TurnTopic          string // in-process topic for conversation turn events
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AIConfig struct {
	LLMProvider    string // "ollama" or "huggingface"
	LLMModel       string // e.g. "gemma3n:e4b"
	LLMBaseURL     string
	HuggingFaceKey string

	OllamaBaseURL string

	// Embedding ladder
	EmbeddingPrimaryModel string
	EmbeddingMediumModel  string
	EmbeddingSmallModel   string
	EmbeddingHalfTag      string // model tag suffix used for reduced precision
	EmbeddingAccelerator  bool
	EmbeddingQueryPrefix  string // e5 models expect "query: "

	// Zero-shot classifier
	ZeroShotBaseURL   string
	ZeroShotModel     string
	ZeroShotKey       string
	ZeroShotThreshold float64
}

type AgentConfig struct {
	CompanyName  string
	Language     string
	MaxSentences int
	TopK         int
}

type ProfileConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string // OTLP/HTTP collector, host:port
	SampleRatio float64
}

type TimeoutConfig struct {
	Profile     time.Duration
	VectorStore time.Duration
	ZeroShot    time.Duration
	Embedding   time.Duration
	Generation  time.Duration
	// Turn bounds a whole websocket turn. Zero means TurnBudget derives it.
	Turn time.Duration
}

// TurnBudget covers every stage of one Respond: profile refresh,
// classification, reformulation, embedding, vector search and generation.
// Reformulation and generation each get a full Generation timeout.
func (t TimeoutConfig) TurnBudget() time.Duration {
	if t.Turn > 0 {
		return t.Turn
	}
	return t.Profile + t.ZeroShot + 2*t.Generation + t.Embedding + t.VectorStore
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/agent.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			TurnTopic:          getEnv("TURN_TOPIC_NAME", "CONVERSATION_TURN"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "BH Assurance"),
		},
		Ai: AIConfig{
			LLMProvider:    getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:       getEnv("LLM_MODEL", "gemma3n:e4b"),
			LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
			HuggingFaceKey: getEnv("HUGGINGFACE_API_KEY", ""),

			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),

			EmbeddingPrimaryModel: getEnv("EMBEDDING_PRIMARY_MODEL", "jeffh/intfloat-multilingual-e5-large"),
			EmbeddingMediumModel:  getEnv("EMBEDDING_MEDIUM_MODEL", "jeffh/intfloat-multilingual-e5-base"),
			EmbeddingSmallModel:   getEnv("EMBEDDING_SMALL_MODEL", "all-minilm"),
			EmbeddingHalfTag:      getEnv("EMBEDDING_HALF_TAG", "f16"),
			EmbeddingAccelerator:  getEnvAsBool("EMBEDDING_ACCELERATOR", false),
			EmbeddingQueryPrefix:  getEnv("EMBEDDING_QUERY_PREFIX", "query: "),

			ZeroShotBaseURL:   getEnv("ZERO_SHOT_BASE_URL", ""),
			ZeroShotModel:     getEnv("ZERO_SHOT_MODEL", "joeddav/xlm-roberta-large-xnli"),
			ZeroShotKey:       getEnv("ZERO_SHOT_API_KEY", ""),
			ZeroShotThreshold: getEnvAsFloat("ZERO_SHOT_THRESHOLD", 0.7),
		},
		Agent: AgentConfig{
			CompanyName:  getEnv("COMPANY_NAME", "BH Assurance"),
			Language:     getEnv("AGENT_LANGUAGE", "French"),
			MaxSentences: getEnvAsInt("AGENT_MAX_SENTENCES", 5),
			TopK:         getEnvAsInt("RAG_TOP_K", 3),
		},
		Profile: ProfileConfig{
			BaseURL:  getEnv("PROFILE_BASE_URL", "http://localhost:8083"),
			CacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 30*time.Second),
		},
		Timeouts: TimeoutConfig{
			Profile:     getEnvAsDuration("PROFILE_TIMEOUT", 5*time.Second),
			VectorStore: getEnvAsDuration("VECTOR_STORE_TIMEOUT", 10*time.Second),
			ZeroShot:    getEnvAsDuration("ZERO_SHOT_TIMEOUT", 15*time.Second),
			Embedding:   getEnvAsDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			Generation:  getEnvAsDuration("GENERATION_TIMEOUT", 120*time.Second),
			Turn:        getEnvAsDuration("TURN_TIMEOUT", 0),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("5s", "2m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

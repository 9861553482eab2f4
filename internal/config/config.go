package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string
	ChatModel      string
	EmbedProvider  string
	EmbedModel     string
	OllamaHost     string
	DatabaseURL    string
	IndexDir       string
	RulesFile      string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	JWTSecret      string
	AdminUser      string
	AdminPassword  string
	AgentMaxRounds int

	TavilyAPIKey        string
	WebSearchMaxResults int

	// EnvFileLoaded reports whether a .env file was found. The logger does not
	// exist yet when config is loaded, so callers log this afterwards.
	EnvFileLoaded bool
}

var (
	ErrMissingAPIKey   = errors.New("GEMINI_API_KEY environment variable is required")
	ErrMissingJWT      = errors.New("JWT_SECRET environment variable is required")
	ErrMissingAdmin    = errors.New("ADMIN_USER and ADMIN_PASSWORD environment variables are required")
	ErrInvalidProvider = errors.New("EMBED_PROVIDER must be gemini or ollama")
)

// Load reads configuration from the environment, after loading .env if it exists.
func Load(envFiles ...string) (*Config, error) {
	err := godotenv.Load(envFiles...)

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		EmbedProvider:  getEnv("EMBED_PROVIDER", "gemini"),
		EmbedModel:     getEnv("EMBED_MODEL", ""),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		DatabaseURL:    getEnv("DATABASE_URL", "taskmaster.db"),
		IndexDir:       getEnv("INDEX_DIR", "data/index"),
		RulesFile:      getEnv("RULES_FILE", "config.yaml"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AdminUser:      getEnv("ADMIN_USER", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AgentMaxRounds: getEnvAsInt("AGENT_MAX_ROUNDS", 8),

		TavilyAPIKey:        getEnv("TAVILY_API_KEY", ""),
		WebSearchMaxResults: getEnvAsInt("WEB_SEARCH_MAX_RESULTS", 4),

		EnvFileLoaded: err == nil,
	}

	if cfg.EmbedModel == "" {
		if cfg.EmbedProvider == "ollama" {
			cfg.EmbedModel = "nomic-embed-text"
		} else {
			cfg.EmbedModel = "text-embedding-004"
		}
	}

	if cfg.EmbedProvider != "gemini" && cfg.EmbedProvider != "ollama" {
		return nil, ErrInvalidProvider
	}
	return cfg, nil
}

// RequireModel checks the settings needed to talk to the model backend.
func (c *Config) RequireModel() error {
	if c.GeminiAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RequireAuth checks the settings needed to serve the authenticated API.
func (c *Config) RequireAuth() error {
	if c.JWTSecret == "" {
		return ErrMissingJWT
	}
	if c.AdminUser == "" || c.AdminPassword == "" {
		return ErrMissingAdmin
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConfigDir is where the installed service keeps its settings.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mimic")
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config")
}

type Config struct {
	// Generation backend
	LLMProvider   string // ollama, openai
	OllamaBaseURL string
	OpenAIKey     string
	OpenAIBaseURL string
	LLMModel      string

	// Decoding defaults. NumPredict of -1 means unbounded output.
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	NumPredict    int

	// Storage
	DatabasePath string
	PersonasDir  string

	// Enrichment backends
	BraveKey     string
	CoinGeckoKey string

	// Front-ends
	DiscordToken string

	// Scheduler
	PollInterval   time.Duration
	HandlerTimeout time.Duration
}

func Load() *Config {
	_ = godotenv.Load()             // ignore error if no .env
	_ = godotenv.Load(ConfigFile()) // installed-service settings, if present

	return &Config{
		LLMProvider:    envOr("LLM_PROVIDER", "ollama"),
		OllamaBaseURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		LLMModel:       envOr("LLM_MODEL", "llama3.1:70b"),
		Temperature:    envFloat("LLM_TEMPERATURE", 0.8),
		TopP:           envFloat("LLM_TOP_P", 0.9),
		RepeatPenalty:  envFloat("LLM_REPEAT_PENALTY", 1.1),
		NumPredict:     envInt("LLM_NUM_PREDICT", -1),
		DatabasePath:   envOr("DATABASE_PATH", "./memory/memory.db"),
		PersonasDir:    envOr("PERSONAS_DIR", "./personas"),
		BraveKey:       os.Getenv("BRAVE_API_KEY"),
		CoinGeckoKey:   os.Getenv("COINGECKO_API_KEY"),
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		PollInterval:   envDuration("SCHEDULER_POLL_INTERVAL", time.Minute),
		HandlerTimeout: envDuration("SCHEDULER_HANDLER_TIMEOUT", 5*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"

	BackendScripted = "scripted"
	BackendOpenAI   = "openai"
	BackendOllama   = "ollama"

	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Client holds the terminal client configuration
type Client struct {
	Endpoint  string        // Base URL of the chat server; turns go to {Endpoint}/chat
	Transport string        // http|ws
	Timeout   time.Duration // 0 waits until the turn is cancelled
	Debug     bool
	LogDir    string
}

// Server holds the chat server configuration
type Server struct {
	Addr          string
	AllowedOrigin string
	Backend       string
	PromptFile    string // Optional YAML prompt spec
	HistoryLimit  int

	Store    string
	SQLiteDB string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OllamaURL   string
	OllamaModel string

	Debug     bool
	LogDir    string
	LogFormat string // text|json
}

// LoadClient reads .env (if present) and the environment. Flags override
// the returned values.
func LoadClient() Client {
	_ = godotenv.Load()
	return Client{
		Endpoint:  getEnvDefault("MEDICHAT_ENDPOINT", "http://localhost:5000"),
		Transport: getEnvDefault("MEDICHAT_TRANSPORT", TransportHTTP),
		Timeout:   getEnvDurationDefault("MEDICHAT_TIMEOUT", 0),
		Debug:     getEnvBoolDefault("MEDICHAT_DEBUG", false),
		LogDir:    getEnvDefault("MEDICHAT_LOG_DIR", "logs"),
	}
}

// LoadServer reads .env (if present) and the environment. Flags override
// the returned values.
func LoadServer() Server {
	_ = godotenv.Load()
	return Server{
		Addr:          getEnvDefault("MEDICHAT_ADDR", ":5000"),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", "*"),
		Backend:       getEnvDefault("MEDICHAT_BACKEND", BackendScripted),
		PromptFile:    os.Getenv("MEDICHAT_PROMPT_FILE"),
		HistoryLimit:  getEnvIntDefault("MEDICHAT_HISTORY_LIMIT", 40),
		Store:         getEnvDefault("MEDICHAT_STORE", StoreSQLite),
		SQLiteDB:      getEnvDefault("MEDICHAT_SQLITE_DB", "file:medichat?mode=memory&cache=shared"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaURL:     getEnvDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getEnvDefault("OLLAMA_MODEL", "llama3:latest"),
		Debug:         getEnvBoolDefault("MEDICHAT_DEBUG", false),
		LogDir:        getEnvDefault("MEDICHAT_LOG_DIR", "logs"),
		LogFormat:     getEnvDefault("MEDICHAT_LOG_FORMAT", "text"),
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

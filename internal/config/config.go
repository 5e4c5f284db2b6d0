package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Ollama    OllamaConfig
	Search    SearchConfig
	Document  DocumentConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Session   SessionConfig
	Router    RouterConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	ChatModel   string
	EmbedModel  string
	Temperature float64
	Timeout     time.Duration
	APIKey      string
}

type OllamaConfig struct {
	BaseURL string
}

type SearchConfig struct {
	BaseURL    string
	MaxResults int
	Depth      string
	Timeout    time.Duration
	APIKey     string
}

type DocumentConfig struct {
	Path         string
	ChunkSize    int
	ChunkOverlap int
}

type RetrievalConfig struct {
	TopK int
}

type StorageConfig struct {
	DataDir string
}

type SessionConfig struct {
	Backend     string
	TTL         time.Duration
	MaxMessages int
	RedisURL    string
}

type RouterConfig struct {
	LoopBack bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8501,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			ChatModel:   "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			Temperature: 0,
			Timeout:     120 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Search: SearchConfig{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 5,
			Depth:      "advanced",
			Timeout:    60 * time.Second,
		},
		Document: DocumentConfig{
			Path:         "iesc111.pdf",
			ChunkSize:    200,
			ChunkOverlap: 40,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			Backend: "sqlite",
			TTL:     24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers: defaults, the JSON file at
// $XDG_CONFIG_HOME/ragroute/config.json, a .env file in the working
// directory, and finally RAGROUTE_* environment variables.
//
// Secrets come from the environment (RAGROUTE_OPENAI_API_KEY or
// OPENAI_API_KEY, RAGROUTE_TAVILY_API_KEY or TAVILY_API_KEY,
// RAGROUTE_API_TOKEN) or from $XDG_DATA_HOME/ragroute/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(ConfigFilePath()), secretsFile{path: SecretsFilePath()}, ".env")
}

func loadWith(b ConfigBackend, secrets secretStore, envFiles ...string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFiles exports the variables of the given dotenv files that are not
// already set. Missing files are skipped.
func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v := os.Getenv(s.altEnv); s.altEnv != "" && v != "" {
			s.apply(cfg, v)
			continue
		}
		if v, err := secrets.Get(s.secretName); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. "+
				"Set OPENAI_API_KEY (or RAGROUTE_OPENAI_API_KEY), add it to .env, or store it in %s", SecretsFilePath())
		}
	case "ollama":
	default:
		return fmt.Errorf("invalid llm.provider %q: want openai or ollama", c.LLM.Provider)
	}

	switch c.Session.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.backend redis requires session.redis_url")
		}
	default:
		return fmt.Errorf("invalid session.backend %q: want memory, sqlite or redis", c.Session.Backend)
	}

	if c.Document.ChunkSize <= 0 {
		return fmt.Errorf("document.chunk_size must be positive, got %d", c.Document.ChunkSize)
	}
	if c.Document.ChunkOverlap < 0 || c.Document.ChunkOverlap >= c.Document.ChunkSize {
		return fmt.Errorf("document.chunk_overlap must be in [0, %d), got %d", c.Document.ChunkSize, c.Document.ChunkOverlap)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

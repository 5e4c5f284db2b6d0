package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// altEnv and secretName are consulted for secrets when env is unset.
	altEnv     string
	secretName string
	apply      func(cfg *Config, v any)
	extract    func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "RAGROUTE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "RAGROUTE_API_TOKEN",
		secret: true, secretName: "api_token",
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "llm.provider", typ: kString, env: "RAGROUTE_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "RAGROUTE_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.chat_model", typ: kString, env: "RAGROUTE_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.embed_model", typ: kString, env: "RAGROUTE_LLM_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "RAGROUTE_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "RAGROUTE_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.api_key", typ: kString, env: "RAGROUTE_OPENAI_API_KEY",
		secret: true, altEnv: "OPENAI_API_KEY", secretName: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "RAGROUTE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "search.base_url", typ: kString, env: "RAGROUTE_SEARCH_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Search.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.BaseURL },
	},
	{
		key: "search.max_results", typ: kInt, env: "RAGROUTE_SEARCH_MAX_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Search.MaxResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.MaxResults },
	},
	{
		key: "search.depth", typ: kString, env: "RAGROUTE_SEARCH_DEPTH",
		apply:   func(cfg *Config, v any) { cfg.Search.Depth = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.Depth },
	},
	{
		key: "search.timeout", typ: kDuration, env: "RAGROUTE_SEARCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Search.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Search.Timeout },
	},
	{
		key: "search.api_key", typ: kString, env: "RAGROUTE_TAVILY_API_KEY",
		secret: true, altEnv: "TAVILY_API_KEY", secretName: "tavily_api_key",
		apply:   func(cfg *Config, v any) { cfg.Search.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.APIKey },
	},
	{
		key: "document.path", typ: kString, env: "RAGROUTE_DOCUMENT_PATH",
		apply:   func(cfg *Config, v any) { cfg.Document.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Document.Path },
	},
	{
		key: "document.chunk_size", typ: kInt, env: "RAGROUTE_DOCUMENT_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Document.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Document.ChunkSize },
	},
	{
		key: "document.chunk_overlap", typ: kInt, env: "RAGROUTE_DOCUMENT_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Document.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Document.ChunkOverlap },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "RAGROUTE_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RAGROUTE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "session.backend", typ: kString, env: "RAGROUTE_SESSION_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Session.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Session.Backend },
	},
	{
		key: "session.ttl", typ: kDuration, env: "RAGROUTE_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Session.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.TTL },
	},
	{
		key: "session.max_messages", typ: kInt, env: "RAGROUTE_SESSION_MAX_MESSAGES",
		apply:   func(cfg *Config, v any) { cfg.Session.MaxMessages = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.MaxMessages },
	},
	{
		key: "session.redis_url", typ: kString, env: "RAGROUTE_SESSION_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Session.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Session.RedisURL },
	},
	{
		key: "router.loop_back", typ: kBool, env: "RAGROUTE_ROUTER_LOOP_BACK",
		apply:   func(cfg *Config, v any) { cfg.Router.LoopBack = v.(bool) },
		extract: func(cfg Config) any { return cfg.Router.LoopBack },
	},
	{
		key: "log.level", typ: kString, env: "RAGROUTE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts raw text to the Go type of the key.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

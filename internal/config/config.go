package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18890
	DefaultBufSize        = 100

	DefaultSimilarityThreshold = 0.7
	DefaultKeywordRelevance    = 0.8

	DefaultAuditRetentionDays = 90
	DeepSeekBaseURL           = "https://api.deepseek.com/v1"
)

type Config struct {
	Provider  ProviderConfig  `json:"provider"`
	Channels  ChannelsConfig  `json:"channels"`
	Storage   StorageConfig   `json:"storage"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Risk      RiskConfig      `json:"risk"`
	Gateway   GatewayConfig   `json:"gateway"`
}

type ProviderConfig struct {
	APIKey         string `json:"apiKey"`
	BaseURL        string `json:"baseUrl,omitempty"`
	ChatModel      string `json:"chatModel"`
	EmbeddingModel string `json:"embeddingModel"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	API      APIConfig      `json:"api"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type APIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

type StorageConfig struct {
	DBPath             string `json:"dbPath"`
	AuditRetentionDays int    `json:"auditRetentionDays"`
}

type RetrievalConfig struct {
	SimilarityThreshold float64 `json:"similarityThreshold"`
	KeywordRelevance    float64 `json:"keywordRelevance"`
}

type RiskConfig struct {
	RulesPath string `json:"rulesPath,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			ChatModel:      DefaultChatModel,
			EmbeddingModel: DefaultEmbeddingModel,
		},
		Channels: ChannelsConfig{
			API: APIConfig{Enabled: true},
		},
		Storage: StorageConfig{
			DBPath:             filepath.Join(ConfigDir(), "data", "serenia.db"),
			AuditRetentionDays: DefaultAuditRetentionDays,
		},
		Retrieval: RetrievalConfig{
			SimilarityThreshold: DefaultSimilarityThreshold,
			KeywordRelevance:    DefaultKeywordRelevance,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".serenia")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("SERENIA_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.BaseURL == "" {
			cfg.Provider.BaseURL = DeepSeekBaseURL
		}
	}
	if url := os.Getenv("SERENIA_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("SERENIA_CHAT_MODEL"); model != "" {
		cfg.Provider.ChatModel = model
	}
	if model := os.Getenv("SERENIA_EMBEDDING_MODEL"); model != "" {
		cfg.Provider.EmbeddingModel = model
	}
	if path := os.Getenv("SERENIA_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if token := os.Getenv("SERENIA_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if port := os.Getenv("SERENIA_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if path := os.Getenv("SERENIA_RISK_RULES"); path != "" {
		cfg.Risk.RulesPath = path
	}

	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = DefaultChatModel
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultConfig().Storage.DBPath
	}
	if cfg.Storage.AuditRetentionDays <= 0 {
		cfg.Storage.AuditRetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Retrieval.SimilarityThreshold <= 0 {
		cfg.Retrieval.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Retrieval.KeywordRelevance <= 0 {
		cfg.Retrieval.KeywordRelevance = DefaultKeywordRelevance
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Provider.ChatModel != DefaultChatModel {
		t.Errorf("chatModel = %q, want %q", cfg.Provider.ChatModel, DefaultChatModel)
	}
	if cfg.Provider.EmbeddingModel != DefaultEmbeddingModel {
		t.Errorf("embeddingModel = %q, want %q", cfg.Provider.EmbeddingModel, DefaultEmbeddingModel)
	}
	if cfg.Gateway.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Gateway.Host, DefaultHost)
	}
	if cfg.Gateway.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Gateway.Port, DefaultPort)
	}
	if cfg.Retrieval.SimilarityThreshold != DefaultSimilarityThreshold {
		t.Errorf("similarityThreshold = %v, want %v", cfg.Retrieval.SimilarityThreshold, DefaultSimilarityThreshold)
	}
	if cfg.Retrieval.KeywordRelevance != DefaultKeywordRelevance {
		t.Errorf("keywordRelevance = %v, want %v", cfg.Retrieval.KeywordRelevance, DefaultKeywordRelevance)
	}
	if !cfg.Channels.API.Enabled {
		t.Error("API channel should be enabled by default")
	}
	if cfg.Storage.DBPath == "" {
		t.Error("dbPath should not be empty")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	// Clear any env overrides
	t.Setenv("SERENIA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.ChatModel != DefaultChatModel {
		t.Errorf("expected default chat model %q, got %q", DefaultChatModel, cfg.Provider.ChatModel)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("SERENIA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")

	cfgDir := filepath.Join(tmpDir, ".serenia")
	os.MkdirAll(cfgDir, 0755)

	testCfg := map[string]any{
		"provider": map[string]any{
			"apiKey":    "sk-test-key",
			"chatModel": "gpt-4o",
		},
		"retrieval": map[string]any{
			"similarityThreshold": 0.8,
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-test-key" {
		t.Errorf("apiKey = %q, want sk-test-key", cfg.Provider.APIKey)
	}
	if cfg.Provider.ChatModel != "gpt-4o" {
		t.Errorf("chatModel = %q, want gpt-4o", cfg.Provider.ChatModel)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.8 {
		t.Errorf("similarityThreshold = %v, want 0.8", cfg.Retrieval.SimilarityThreshold)
	}
	// Unset fields keep defaults.
	if cfg.Provider.EmbeddingModel != DefaultEmbeddingModel {
		t.Errorf("embeddingModel = %q, want default", cfg.Provider.EmbeddingModel)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("SERENIA_API_KEY", "sk-env-key")
	t.Setenv("SERENIA_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("SERENIA_DB_PATH", "/tmp/custom.db")
	t.Setenv("SERENIA_PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-env-key" {
		t.Errorf("apiKey = %q, want sk-env-key", cfg.Provider.APIKey)
	}
	if cfg.Channels.Telegram.Token != "tg-token" {
		t.Errorf("telegram token = %q, want tg-token", cfg.Channels.Telegram.Token)
	}
	if cfg.Storage.DBPath != "/tmp/custom.db" {
		t.Errorf("dbPath = %q, want /tmp/custom.db", cfg.Storage.DBPath)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Gateway.Port)
	}
}

func TestLoadConfig_DeepSeekKeySetsBaseURL(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("SERENIA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-deepseek" {
		t.Errorf("apiKey = %q, want sk-deepseek", cfg.Provider.APIKey)
	}
	if cfg.Provider.BaseURL != DeepSeekBaseURL {
		t.Errorf("baseUrl = %q, want %q", cfg.Provider.BaseURL, DeepSeekBaseURL)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "sk-saved"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("parse saved config: %v", err)
	}
	if loaded.Provider.APIKey != "sk-saved" {
		t.Errorf("apiKey = %q, want sk-saved", loaded.Provider.APIKey)
	}
}

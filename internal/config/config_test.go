package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("HISTORY_BACKEND", "")
	t.Setenv("WEBCHAT_SESSION_KEY", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.HistoryBackend != "redis" {
		t.Fatalf("expected redis history backend, got %s", cfg.HistoryBackend)
	}
	if cfg.HistoryTTL != 24*time.Hour {
		t.Fatalf("expected 24h history ttl, got %s", cfg.HistoryTTL)
	}
	if cfg.WebchatSessionKey != "webchat:default" {
		t.Fatalf("expected default webchat session key, got %s", cfg.WebchatSessionKey)
	}
	if !cfg.ClearOnTerminal {
		t.Fatalf("expected clear-on-terminal enabled by default")
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("HISTORY_BACKEND", " DynamoDB ")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("SESSION_LOCK_TTL", "bogus")
	t.Setenv("AGENT_MAX_TOKENS", "1024")
	t.Setenv("AGENT_TEMPERATURE", "0.2")
	t.Setenv("CLEAR_ON_TERMINAL", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.HistoryBackend != "dynamodb" {
		t.Fatalf("expected normalized dynamodb backend, got %q", cfg.HistoryBackend)
	}
	if cfg.HistoryTTL != 2*time.Hour {
		t.Fatalf("expected history ttl override, got %s", cfg.HistoryTTL)
	}
	if cfg.SessionLockTTL != 30*time.Second {
		t.Fatalf("expected invalid duration to fall back to default, got %s", cfg.SessionLockTTL)
	}
	if cfg.AgentMaxTokens != 1024 {
		t.Fatalf("expected max tokens override, got %d", cfg.AgentMaxTokens)
	}
	if cfg.AgentTemperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.AgentTemperature)
	}
	if cfg.ClearOnTerminal {
		t.Fatalf("expected clear-on-terminal disabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

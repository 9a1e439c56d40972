package config

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Faction.WarThreshold != 100 {
		t.Fatalf("war threshold = %d, want 100", cfg.Faction.WarThreshold)
	}
	if cfg.World.Seed != "jianghu-seed" {
		t.Fatalf("seed = %q", cfg.World.Seed)
	}
	if cfg.AI.LLM.Timeout != 120*time.Second {
		t.Fatalf("timeout = %v", cfg.AI.LLM.Timeout)
	}
	if cfg.Logging.Level != "" {
		t.Fatalf("log level = %q, want it left to the logger", cfg.Logging.Level)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("LLM_MODEL", "deepseek-chat")
	t.Setenv("NATS_URL", "nats://example:4222")

	cfg, err := Parse([]byte("ai:\n  llm:\n    model: local\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AI.LLM.APIKey != "secret" {
		t.Fatalf("api key = %q", cfg.AI.LLM.APIKey)
	}
	if cfg.AI.LLM.Model != "deepseek-chat" {
		t.Fatalf("model = %q", cfg.AI.LLM.Model)
	}
	if cfg.Messaging.NATSURL != "nats://example:4222" {
		t.Fatalf("nats url = %q", cfg.Messaging.NATSURL)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("server: [unterminated")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

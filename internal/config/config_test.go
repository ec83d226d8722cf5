package config

import "testing"

func TestParseEnvDefaults(t *testing.T) {
	t.Setenv("AGENT_ID", "agt_lynn")

	cfg, err := ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv: %v", err)
	}
	if cfg.AgentID != "agt_lynn" {
		t.Fatalf("agent id = %q", cfg.AgentID)
	}
	if cfg.ListenAddr != ":8088" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.HashAlg != "sha256" {
		t.Fatalf("hash alg = %q", cfg.HashAlg)
	}
	if cfg.IdempotencyTTL.Hours() != 24 {
		t.Fatalf("idempotency ttl = %v", cfg.IdempotencyTTL)
	}
}

func TestParseEnvRequiresAgent(t *testing.T) {
	t.Setenv("AGENT_ID", "")

	if _, err := ParseEnv(); err == nil {
		t.Fatal("expected error for missing AGENT_ID")
	}
}

func TestParseEnvRejectsUnknownHashAlg(t *testing.T) {
	t.Setenv("AGENT_ID", "agt_lynn")
	t.Setenv("HASH_ALG", "md5")

	if _, err := ParseEnv(); err == nil {
		t.Fatal("expected error for unsupported hash algorithm")
	}
}

// Package config loads agentd settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8088"`

	// AgentID identifies this node's agent on the ledger.
	AgentID string `env:"AGENT_ID,required,notEmpty"`

	// SigningSeed is a hex-encoded 32-byte ed25519 seed. When empty the
	// node generates an ephemeral key at startup.
	SigningSeed string `env:"SIGNING_SEED"`

	// HashAlg selects the attestation digest algorithm.
	HashAlg string `env:"HASH_ALG" envDefault:"sha256"`

	// DatabaseURL, when set, backs the shared ledger with postgres.
	// Otherwise the ledger is in-memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// ClaimsDBPath, when set, persists private claims in a local sqlite
	// file. Otherwise claims are in-memory.
	ClaimsDBPath string `env:"CLAIMS_DB_PATH"`

	// APIToken authenticates the node agent's own HTTP calls. When empty
	// a random token is generated and printed at startup.
	APIToken string `env:"API_TOKEN"`

	// NATSURL, when set, enables ledger replication between agents.
	NATSURL string `env:"NATS_URL"`

	// RoleDirectoryURL, when set, resolves role credentials from a
	// remote directory instead of the static table.
	RoleDirectoryURL string `env:"ROLE_DIRECTORY_URL"`

	// ReputationWindow bounds the default reputation lookback used by
	// governance checks.
	ReputationWindow time.Duration `env:"REPUTATION_WINDOW" envDefault:"4320h"`

	// IdempotencyTTL bounds how long replayed responses are retained.
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.HashAlg != "sha256" && cfg.HashAlg != "blake2b-256" {
		return Config{}, fmt.Errorf("unsupported HASH_ALG %q", cfg.HashAlg)
	}
	return cfg, nil
}

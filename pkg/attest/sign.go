// Package attest computes and verifies bilateral attestations over
// participation-claim payloads. A claim records one party's signature at
// mint time; the counterparty may corroborate minutes or days later, so an
// unsigned-but-valid claim is a legitimate intermediate state.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

const envelopeVersion = "att-v1"

// Signer holds an agent's ed25519 signing identity.
type Signer struct {
	Agent   domain.AgentID
	HashAlg string

	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh ed25519 keypair for the agent.
func NewSigner(agent domain.AgentID) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Signer{Agent: agent, HashAlg: canonhash.AlgSHA256, priv: priv, pub: pub}, nil
}

// SignerFromSeed derives a deterministic signer from a hex-encoded 32-byte
// seed. Used when the node's key is supplied via configuration.
func SignerFromSeed(agent domain.AgentID, seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		Agent:   agent,
		HashAlg: canonhash.AlgSHA256,
		priv:    priv,
		pub:     priv.Public().(ed25519.PublicKey),
	}, nil
}

// PublicKeyB64 returns the signer's public key, std base64.
func (s *Signer) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(s.pub)
}

// HashAndSign digests the canonical JSON encoding of payload and signs the
// digest bytes. Returns the full envelope and the digest hex.
func HashAndSign(payload any, s *Signer) (Envelope, string, error) {
	hashAlg := s.HashAlg
	if hashAlg == "" {
		hashAlg = canonhash.AlgSHA256
	}
	digestHex, _, err := canonhash.SumObjectWith(hashAlg, payload)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("hash payload: %w", err)
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return Envelope{}, "", ErrInvalidEncoding
	}
	sig := ed25519.Sign(s.priv, digest)
	env := Envelope{
		Version:     envelopeVersion,
		Algorithm:   "ed25519",
		HashAlg:     hashAlg,
		Signer:      string(s.Agent),
		PublicKey:   s.PublicKeyB64(),
		Signature:   base64.StdEncoding.EncodeToString(sig),
		PayloadHash: digestHex,
		IssuedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	return env, digestHex, nil
}

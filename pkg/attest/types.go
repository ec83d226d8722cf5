package attest

import (
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Envelope is the wire form of one party's attestation over a claim
// payload. The signature covers the 32-byte payload digest, not the raw
// payload bytes.
type Envelope struct {
	Version     string `json:"version"`
	Algorithm   string `json:"algorithm"`
	HashAlg     string `json:"hash_alg"`
	Signer      string `json:"signer"`
	PublicKey   string `json:"public_key"`
	Signature   string `json:"signature"`
	PayloadHash string `json:"payload_hash"`
	IssuedAt    string `json:"issued_at"`
	KeyID       string `json:"key_id,omitempty"`
}

// ToSignature converts an envelope to the stored signature record.
func (e Envelope) ToSignature() (domain.Signature, error) {
	issuedAt, err := time.Parse(time.RFC3339Nano, e.IssuedAt)
	if err != nil {
		return domain.Signature{}, ErrInvalidIssuedAt
	}
	return domain.Signature{
		Signer:         domain.AgentID(e.Signer),
		Signature:      e.Signature,
		SignedDataHash: e.PayloadHash,
		Algorithm:      e.Algorithm + "+" + e.HashAlg,
		CreatedAt:      issuedAt.UTC(),
	}, nil
}

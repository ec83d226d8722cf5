package attest

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidIssuedAt      = errors.New("invalid issued_at")
	ErrPayloadHashMismatch  = errors.New("payload hash mismatch")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidEncoding      = errors.New("invalid encoding")
)

type VerifyResult struct {
	IssuedAt time.Time
}

// Verify recomputes the payload digest and checks the envelope's signature
// against it. Hash mismatch or malformed signature is rejected outright,
// never coerced or retried with a different digest.
func Verify(payload any, env Envelope) (VerifyResult, error) {
	if strings.TrimSpace(env.Version) != envelopeVersion {
		return VerifyResult{}, ErrUnsupportedAlgorithm
	}
	issuedAt, err := parseIssuedAt(env.IssuedAt)
	if err != nil {
		return VerifyResult{}, err
	}

	hashAlg := strings.TrimSpace(env.HashAlg)
	if hashAlg == "" {
		hashAlg = canonhash.AlgSHA256
	}
	expectedHashHex, _, err := canonhash.SumObjectWith(hashAlg, payload)
	if err != nil {
		if errors.Is(err, canonhash.ErrUnknownAlgorithm) {
			return VerifyResult{}, ErrUnsupportedAlgorithm
		}
		return VerifyResult{}, err
	}
	expectedHash, err := hex.DecodeString(expectedHashHex)
	if err != nil {
		return VerifyResult{}, ErrInvalidEncoding
	}
	payloadHash, err := decodeLowerHex32(strings.TrimSpace(env.PayloadHash))
	if err != nil {
		return VerifyResult{}, err
	}
	if subtle.ConstantTimeCompare(expectedHash, payloadHash) != 1 {
		return VerifyResult{}, ErrPayloadHashMismatch
	}

	if strings.ToLower(strings.TrimSpace(env.Algorithm)) != "ed25519" {
		return VerifyResult{}, ErrUnsupportedAlgorithm
	}
	if err := verifyEd25519(payloadHash, env.PublicKey, env.Signature); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{IssuedAt: issuedAt.UTC()}, nil
}

// VerifyChain checks that a counter-signature correctly references an
// original claim digest: the envelope's payload hash must equal the
// original digest and the signature must validate under the envelope's
// public key.
func VerifyChain(originalDigestHex string, env Envelope) error {
	original, err := decodeLowerHex32(strings.TrimSpace(originalDigestHex))
	if err != nil {
		return err
	}
	if strings.TrimSpace(env.Version) != envelopeVersion {
		return ErrUnsupportedAlgorithm
	}
	if _, err := parseIssuedAt(env.IssuedAt); err != nil {
		return err
	}
	referenced, err := decodeLowerHex32(strings.TrimSpace(env.PayloadHash))
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(original, referenced) != 1 {
		return ErrPayloadHashMismatch
	}
	if strings.ToLower(strings.TrimSpace(env.Algorithm)) != "ed25519" {
		return ErrUnsupportedAlgorithm
	}
	return verifyEd25519(referenced, env.PublicKey, env.Signature)
}

func parseIssuedAt(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, ErrInvalidIssuedAt
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, ErrInvalidIssuedAt
	}
	if !strings.HasSuffix(raw, "Z") || !issuedAt.Equal(issuedAt.UTC()) {
		return time.Time{}, ErrInvalidIssuedAt
	}
	return issuedAt, nil
}

func verifyEd25519(messageHash []byte, publicKeyB64, sigB64 string) error {
	publicKey, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyB64))
	if err != nil {
		return ErrInvalidEncoding
	}
	signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigB64))
	if err != nil {
		return ErrInvalidEncoding
	}
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrInvalidEncoding
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), messageHash, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func decodeLowerHex32(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidEncoding
	}
	if s != strings.ToLower(s) {
		return nil, ErrInvalidEncoding
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: payload_hash length", ErrInvalidEncoding)
	}
	return b, nil
}

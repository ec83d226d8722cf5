// Package canonhash computes canonical content digests of receipt payloads:
// json.Marshal bytes hashed with the selected algorithm, lower hex.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/blake2b"
)

const (
	AlgSHA256     = "sha256"
	AlgBLAKE2b256 = "blake2b-256"
)

var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// SumObject hashes the canonical JSON encoding of v with SHA-256.
func SumObject(v any) (hexHash string, bytes []byte, err error) {
	return SumObjectWith(AlgSHA256, v)
}

// SumObjectWith hashes the canonical JSON encoding of v with the named
// algorithm. Digests are always 32 bytes.
func SumObjectWith(alg string, v any) (hexHash string, bytes []byte, err error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	switch alg {
	case AlgSHA256:
		sum := sha256.Sum256(b)
		return hex.EncodeToString(sum[:]), b, nil
	case AlgBLAKE2b256:
		sum := blake2b.Sum256(b)
		return hex.EncodeToString(sum[:]), b, nil
	default:
		return "", nil, ErrUnknownAlgorithm
	}
}

// SumString hashes a raw string with SHA-256, lower hex.
func SumString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

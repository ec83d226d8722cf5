package canonhash

import (
	"errors"
	"testing"
)

func TestSumObject_Deterministic(t *testing.T) {
	payload := map[string]any{"b": "two", "a": 1}
	h1, b1, err := SumObject(payload)
	if err != nil {
		t.Fatalf("SumObject: %v", err)
	}
	h2, b2, err := SumObject(payload)
	if err != nil {
		t.Fatalf("SumObject: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("digest not deterministic: %s vs %s", h1, h2)
	}
	if string(b1) != string(b2) {
		t.Fatalf("canonical bytes not deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 32-byte digest in hex, got %d chars", len(h1))
	}
}

func TestSumObjectWith_Algorithms(t *testing.T) {
	payload := map[string]any{"a": 1}
	sha, _, err := SumObjectWith(AlgSHA256, payload)
	if err != nil {
		t.Fatalf("sha256: %v", err)
	}
	blake, _, err := SumObjectWith(AlgBLAKE2b256, payload)
	if err != nil {
		t.Fatalf("blake2b: %v", err)
	}
	if sha == blake {
		t.Fatalf("algorithms should produce distinct digests")
	}
	if len(blake) != 64 {
		t.Fatalf("blake2b-256 digest should be 32 bytes, got %d chars", len(blake))
	}
}

func TestSumObjectWith_UnknownAlgorithm(t *testing.T) {
	_, _, err := SumObjectWith("md5", map[string]any{"a": 1})
	if !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestSumObject_SensitiveToContent(t *testing.T) {
	h1, _, _ := SumObject(map[string]any{"a": 1})
	h2, _, _ := SumObject(map[string]any{"a": 2})
	if h1 == h2 {
		t.Fatalf("distinct payloads should not collide")
	}
}

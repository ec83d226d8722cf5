package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// TokenTable maps bearer tokens to agent identities. Tokens are stored
// hashed; the plaintext never persists past registration.
type TokenTable struct {
	mu     sync.RWMutex
	byHash map[string]domain.AgentID
}

func NewTokenTable() *TokenTable {
	return &TokenTable{byHash: map[string]domain.AgentID{}}
}

func (t *TokenTable) Add(token string, agent domain.AgentID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byHash[hashToken(token)] = agent
}

func (t *TokenTable) Revoke(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byHash, hashToken(token))
}

// Authenticate resolves the request's bearer token to an agent.
func (t *TokenTable) Authenticate(r *http.Request) (domain.AgentID, error) {
	token, ok := parseBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", ErrUnauthorized
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	agent, ok := t.byHash[hashToken(token)]
	if !ok {
		return "", ErrUnauthorized
	}
	return agent, nil
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

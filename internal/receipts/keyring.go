package receipts

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Keyring maps agents to their ed25519 verification keys. Keys arrive out
// of band (registration, or a verified counter-signature envelope) and are
// append-only: re-registering an agent with a different key is refused so a
// later envelope cannot silently rotate an identity.
type Keyring struct {
	mu   sync.RWMutex
	keys map[domain.AgentID]ed25519.PublicKey
}

func NewKeyring() *Keyring {
	return &Keyring{keys: map[domain.AgentID]ed25519.PublicKey{}}
}

func (k *Keyring) Register(agent domain.AgentID, publicKeyB64 string) error {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return domain.NewValidationError("public key is not valid base64", "")
	}
	if len(raw) != ed25519.PublicKeySize {
		return domain.NewValidationError(fmt.Sprintf("public key must be %d bytes", ed25519.PublicKeySize), "")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if existing, ok := k.keys[agent]; ok {
		if !existing.Equal(ed25519.PublicKey(raw)) {
			return domain.NewIntegrityError(fmt.Sprintf("agent %s already registered with a different key", agent))
		}
		return nil
	}
	k.keys[agent] = ed25519.PublicKey(raw)
	return nil
}

func (k *Keyring) Lookup(agent domain.AgentID) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[agent]
	return key, ok
}

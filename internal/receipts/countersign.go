package receipts

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// CounterSign attaches the node agent's corroborating signature to a claim
// the owner holds. The node agent must be the claim's counterparty; the
// signature covers the same payload digest the owner signed, so both
// attestations corroborate one record.
func (e *Engine) CounterSign(ctx context.Context, owner domain.AgentID, claimID string) (domain.Signature, string, error) {
	if e.signer == nil {
		return domain.Signature{}, "", domain.NewValidationError("node has no signing key", "configure a signing seed")
	}
	c, err := e.claims.Get(ctx, owner, claimID)
	if err != nil {
		return domain.Signature{}, "", err
	}
	if e.signer.Agent != c.Counterparty {
		return domain.Signature{}, "", domain.NewAuthorizationError(
			fmt.Sprintf("agent %s is not the counterparty of claim %s", e.signer.Agent, claimID),
			"only the interaction counterparty may counter-sign")
	}
	env, digest, err := attest.HashAndSign(c.SigningPayload(), e.signer)
	if err != nil {
		return domain.Signature{}, "", fmt.Errorf("counter-sign claim %s: %w", claimID, err)
	}
	sig, err := env.ToSignature()
	if err != nil {
		return domain.Signature{}, "", fmt.Errorf("counter-sign claim %s: %w", claimID, err)
	}
	if err := e.claims.AttachCounterSignature(ctx, owner, claimID, sig); err != nil {
		return domain.Signature{}, "", err
	}
	return sig, digest, nil
}

// AttachCounterSignature stores a counter-signature produced elsewhere,
// after verifying the envelope against the claim payload and confirming
// the signer is the claim's counterparty. The envelope's key is recorded
// in the keyring so later validations can check it.
func (e *Engine) AttachCounterSignature(ctx context.Context, owner domain.AgentID, claimID string, env attest.Envelope) error {
	c, err := e.claims.Get(ctx, owner, claimID)
	if err != nil {
		return err
	}
	if domain.AgentID(env.Signer) != c.Counterparty {
		return domain.NewAuthorizationError(
			fmt.Sprintf("signer %s is not the counterparty of claim %s", env.Signer, claimID),
			"only the interaction counterparty may counter-sign")
	}
	if _, err := attest.Verify(c.SigningPayload(), env); err != nil {
		return domain.NewIntegrityError(fmt.Sprintf("counter-signature rejected: %v", err))
	}
	if err := e.keys.Register(c.Counterparty, env.PublicKey); err != nil {
		return err
	}
	sig, err := env.ToSignature()
	if err != nil {
		return domain.NewIntegrityError(fmt.Sprintf("counter-signature rejected: %v", err))
	}
	return e.claims.AttachCounterSignature(ctx, owner, claimID, sig)
}

// SignPayload signs arbitrary claim material with the node's key and
// returns the envelope plus the payload digest.
func (e *Engine) SignPayload(payload any) (attest.Envelope, string, error) {
	if e.signer == nil {
		return attest.Envelope{}, "", domain.NewValidationError("node has no signing key", "configure a signing seed")
	}
	return attest.HashAndSign(payload, e.signer)
}

// Corroborate answers a peer's counter-signature request. The node signs
// only claims that record an interaction it actually took part in: the
// payload must be a participation claim naming this agent as counterparty,
// its digest must match, and the referenced commitment and event must
// resolve in the local replica with this agent as a party of the event.
func (e *Engine) Corroborate(ctx context.Context, payload json.RawMessage, digest string) (attest.Envelope, error) {
	if e.signer == nil {
		return attest.Envelope{}, domain.NewValidationError("node has no signing key", "configure a signing seed")
	}
	sum, _, err := canonhash.SumObject(payload)
	if err != nil {
		return attest.Envelope{}, err
	}
	if !strings.EqualFold(sum, digest) {
		return attest.Envelope{}, domain.NewIntegrityError("corroboration payload does not match its digest")
	}
	var c domain.ParticipationClaim
	if err := json.Unmarshal(payload, &c); err != nil {
		return attest.Envelope{}, domain.NewValidationError("corroboration payload is not a participation claim", "")
	}
	if c.Counterparty != e.signer.Agent {
		return attest.Envelope{}, domain.NewAuthorizationError(
			fmt.Sprintf("agent %s is not the counterparty of claim %s", e.signer.Agent, c.ID),
			"only the interaction counterparty may counter-sign")
	}
	if e.ledger == nil {
		return attest.Envelope{}, domain.NewValidationError("node has no ledger replica to corroborate against", "")
	}
	if _, err := e.ledger.GetCommitment(ctx, c.Fulfills); err != nil {
		return attest.Envelope{}, err
	}
	evt, err := e.ledger.GetEvent(ctx, c.FulfilledBy)
	if err != nil {
		return attest.Envelope{}, err
	}
	if evt.Provider != e.signer.Agent && evt.Receiver != e.signer.Agent {
		return attest.Envelope{}, domain.NewAuthorizationError(
			fmt.Sprintf("event %s does not involve agent %s", evt.ID, e.signer.Agent),
			"corroboration covers only interactions this agent took part in")
	}
	env, _, err := attest.HashAndSign(payload, e.signer)
	if err != nil {
		return attest.Envelope{}, fmt.Errorf("corroborate claim %s: %w", c.ID, err)
	}
	return env, nil
}

// ValidateSignature re-derives the claim digest and checks every attached
// signature against it. A claim with no signatures validates false, not
// with an error; a dangling claim reference is still an error.
func (e *Engine) ValidateSignature(ctx context.Context, owner domain.AgentID, claimID string) (bool, error) {
	c, err := e.claims.Get(ctx, owner, claimID)
	if err != nil {
		return false, err
	}
	if c.Signature == nil && c.CounterSig == nil {
		return false, nil
	}
	for _, sig := range []*domain.Signature{c.Signature, c.CounterSig} {
		if sig == nil {
			continue
		}
		ok, err := e.validateOne(c, *sig)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) validateOne(c domain.ParticipationClaim, sig domain.Signature) (bool, error) {
	hashAlg := canonhash.AlgSHA256
	if _, alg, ok := strings.Cut(sig.Algorithm, "+"); ok && alg != "" {
		hashAlg = alg
	}
	digestHex, _, err := canonhash.SumObjectWith(hashAlg, c.SigningPayload())
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(digestHex, sig.SignedDataHash) {
		return false, nil
	}
	// Signatures cover the digest bytes, not the canonical JSON itself.
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return false, err
	}
	key, known := e.keys.Lookup(sig.Signer)
	if !known {
		// Digest matches but the signer's key was never registered; the
		// cryptographic check cannot run, so the claim does not validate.
		return false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(key, digest, raw), nil
}

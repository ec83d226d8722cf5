// Package receipts turns one consummated interaction into two
// independently held participation claims, one per participant. Issuance
// is local-agent work: no cross-agent coordination happens at mint time,
// and the counterparty's corroborating signature arrives later, if ever.
package receipts

import (
	"context"
	"fmt"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
	"github.com/Sensorica/nondominium-sub002/pkg/metrics"
	"github.com/Sensorica/nondominium-sub002/pkg/rules"
)

type Engine struct {
	claims claims.Store
	ledger *ledger.Ledger // optional: resolves fulfills/fulfilled_by refs
	signer *attest.Signer // optional: signs the claim owned by the node's agent
	keys   *Keyring
}

func NewEngine(store claims.Store, l *ledger.Ledger, signer *attest.Signer) *Engine {
	e := &Engine{claims: store, ledger: l, signer: signer, keys: NewKeyring()}
	if signer != nil {
		_ = e.keys.Register(signer.Agent, signer.PublicKeyB64())
	}
	return e
}

// Keys exposes the engine's verification keyring so callers can register
// counterparty keys learned out of band.
func (e *Engine) Keys() *Keyring { return e.keys }

// IssueParams carries one interaction's worth of receipt input.
type IssueParams struct {
	Fulfills    string
	FulfilledBy string
	Provider    domain.AgentID
	Receiver    domain.AgentID

	// ClaimTypes must be a known complementary pair: index 0 is minted for
	// the provider, index 1 for the receiver.
	ClaimTypes []domain.ClaimType

	ProviderMetrics domain.PerformanceMetrics
	ReceiverMetrics domain.PerformanceMetrics
	ResourceRef     string
	Notes           string
}

// Issue mints the claim pair. Atomic from the caller's perspective: any
// failed precondition aborts issuance for both sides, and the pair is
// written in a single store call so no reader sees a lone claim.
func (e *Engine) Issue(ctx context.Context, p IssueParams) (domain.ParticipationClaim, domain.ParticipationClaim, error) {
	none := domain.ParticipationClaim{}
	if len(p.ClaimTypes) != 2 {
		return none, none, domain.NewValidationError(
			fmt.Sprintf("expected exactly two claim types, got %d", len(p.ClaimTypes)),
			"supply the provider-side and receiver-side claim types")
	}
	if _, err := domain.ParseClaimType(string(p.ClaimTypes[0])); err != nil {
		return none, none, err
	}
	if _, err := domain.ParseClaimType(string(p.ClaimTypes[1])); err != nil {
		return none, none, err
	}
	if !rules.ValidClaimPair(p.ClaimTypes[0], p.ClaimTypes[1]) {
		return none, none, domain.NewValidationError(
			fmt.Sprintf("%s/%s is not a complementary claim pair", p.ClaimTypes[0], p.ClaimTypes[1]),
			"use a documented claim-type pairing")
	}
	if p.Provider == "" || p.Receiver == "" {
		return none, none, domain.NewValidationError("issuance requires provider and receiver", "")
	}
	if p.Provider == p.Receiver {
		return none, none, domain.NewValidationError(
			fmt.Sprintf("provider and receiver are both %s", p.Provider),
			"a participation claim pair records a bilateral interaction")
	}
	if p.Fulfills == "" || p.FulfilledBy == "" {
		return none, none, domain.NewValidationError("issuance requires fulfills and fulfilled_by references", "")
	}
	if err := metrics.Validate(p.ProviderMetrics); err != nil {
		return none, none, err
	}
	if err := metrics.Validate(p.ReceiverMetrics); err != nil {
		return none, none, err
	}
	if e.ledger != nil {
		if _, err := e.ledger.GetCommitment(ctx, p.Fulfills); err != nil {
			return none, none, err
		}
		if _, err := e.ledger.GetEvent(ctx, p.FulfilledBy); err != nil {
			return none, none, err
		}
	}

	now := time.Now().UTC()
	providerClaim := domain.ParticipationClaim{
		ID:           domain.NewClaimID(),
		Owner:        p.Provider,
		ClaimType:    p.ClaimTypes[0],
		Counterparty: p.Receiver,
		Fulfills:     p.Fulfills,
		FulfilledBy:  p.FulfilledBy,
		ResourceRef:  p.ResourceRef,
		Metrics:      p.ProviderMetrics,
		Note:         p.Notes,
		CreatedAt:    now,
	}
	receiverClaim := domain.ParticipationClaim{
		ID:           domain.NewClaimID(),
		Owner:        p.Receiver,
		ClaimType:    p.ClaimTypes[1],
		Counterparty: p.Provider,
		Fulfills:     p.Fulfills,
		FulfilledBy:  p.FulfilledBy,
		ResourceRef:  p.ResourceRef,
		Metrics:      p.ReceiverMetrics,
		Note:         p.Notes,
		CreatedAt:    now,
	}

	if err := e.signOwn(&providerClaim); err != nil {
		return none, none, err
	}
	if err := e.signOwn(&receiverClaim); err != nil {
		return none, none, err
	}

	if err := e.claims.PutPair(ctx, providerClaim, receiverClaim); err != nil {
		return none, none, err
	}
	return providerClaim, receiverClaim, nil
}

// IssueForAction derives the claim pair from the governance tables instead
// of requiring the caller to name it. This is the path the transition
// evaluator uses.
func (e *Engine) IssueForAction(ctx context.Context, action domain.Action, process domain.ProcessType, p IssueParams) (domain.ParticipationClaim, domain.ParticipationClaim, error) {
	pair, ok := rules.ClaimPairFor(action, process)
	if !ok {
		none := domain.ParticipationClaim{}
		return none, none, domain.NewValidationError(
			fmt.Sprintf("no claim pair registered for action %s", action),
			"register the action in the claim-pair table")
	}
	p.ClaimTypes = []domain.ClaimType{pair.First, pair.Second}
	return e.Issue(ctx, p)
}

// signOwn attaches the node agent's signature when it owns the claim. The
// other side stays unsigned until its owner counter-signs.
func (e *Engine) signOwn(c *domain.ParticipationClaim) error {
	if e.signer == nil || e.signer.Agent != c.Owner {
		return nil
	}
	env, _, err := attest.HashAndSign(c.SigningPayload(), e.signer)
	if err != nil {
		return fmt.Errorf("sign claim %s: %w", c.ID, err)
	}
	sig, err := env.ToSignature()
	if err != nil {
		return fmt.Errorf("sign claim %s: %w", c.ID, err)
	}
	c.Signature = &sig
	return nil
}

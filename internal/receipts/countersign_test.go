package receipts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// issuePair mints a custody-transfer pair with agt_alice as the node agent
// and returns bob's claim (counterparty agt_alice) and alice's claim.
func issuePair(t *testing.T, f fixture) (bobClaim, aliceClaim domain.ParticipationClaim) {
	t.Helper()
	ctx := context.Background()
	cmt, evt := f.fulfilledPair(t)
	a, b, err := f.engine.Issue(ctx, IssueParams{
		Fulfills: cmt, FulfilledBy: evt,
		Provider: "agt_alice", Receiver: "agt_bob",
		ClaimTypes:      []domain.ClaimType{domain.ClaimCustodyTransfer, domain.ClaimCustodyAcceptance},
		ProviderMetrics: perfectMetrics(), ReceiverMetrics: perfectMetrics(),
		ResourceRef: "res_drill",
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return b, a
}

func TestCounterSign_NodeAgentIsCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bobClaim, _ := issuePair(t, f)

	sig, digest, err := f.engine.CounterSign(ctx, "agt_bob", bobClaim.ID)
	if err != nil {
		t.Fatalf("CounterSign: %v", err)
	}
	if sig.Signer != "agt_alice" {
		t.Fatalf("counter-signature signer = %s, want agt_alice", sig.Signer)
	}
	if sig.SignedDataHash != digest {
		t.Fatalf("signature hash %s does not match digest %s", sig.SignedDataHash, digest)
	}

	stored, err := f.store.Get(ctx, "agt_bob", bobClaim.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.CounterSig == nil {
		t.Fatal("counter-signature not attached")
	}

	// Both sides now carry a valid attestation over the same payload.
	ok, err := f.engine.ValidateSignature(ctx, "agt_bob", bobClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if !ok {
		t.Fatal("counter-signed claim should validate")
	}
}

func TestCounterSign_RejectsNonCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	// Alice's claim names agt_bob as counterparty; the node signs as
	// agt_alice and so may not counter-sign it.
	if _, _, err := f.engine.CounterSign(ctx, "agt_alice", aliceClaim.ID); !domain.IsKind(err, domain.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestAttachCounterSignature_VerifiesEnvelope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	bob, err := attest.NewSigner("agt_bob")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	env, _, err := attest.HashAndSign(aliceClaim.SigningPayload(), bob)
	if err != nil {
		t.Fatalf("HashAndSign: %v", err)
	}
	if err := f.engine.AttachCounterSignature(ctx, "agt_alice", aliceClaim.ID, env); err != nil {
		t.Fatalf("AttachCounterSignature: %v", err)
	}

	ok, err := f.engine.ValidateSignature(ctx, "agt_alice", aliceClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if !ok {
		t.Fatal("claim with verified counter-signature should validate")
	}
}

func TestAttachCounterSignature_RejectsTamperedEnvelope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	bob, err := attest.NewSigner("agt_bob")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	env, _, err := attest.HashAndSign(aliceClaim.SigningPayload(), bob)
	if err != nil {
		t.Fatalf("HashAndSign: %v", err)
	}
	env.PayloadHash = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := f.engine.AttachCounterSignature(ctx, "agt_alice", aliceClaim.ID, env); !domain.IsKind(err, domain.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	stored, err := f.store.Get(ctx, "agt_alice", aliceClaim.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.CounterSig != nil {
		t.Fatal("tampered counter-signature must not be attached")
	}
}

func TestAttachCounterSignature_RejectsWrongSigner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	mallory, err := attest.NewSigner("agt_mallory")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	env, _, err := attest.HashAndSign(aliceClaim.SigningPayload(), mallory)
	if err != nil {
		t.Fatalf("HashAndSign: %v", err)
	}
	if err := f.engine.AttachCounterSignature(ctx, "agt_alice", aliceClaim.ID, env); !domain.IsKind(err, domain.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestValidateSignature_UnsignedClaimIsFalse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bobClaim, _ := issuePair(t, f)

	// Bob's claim was minted on alice's node and is unsigned until bob or
	// alice attests it.
	ok, err := f.engine.ValidateSignature(ctx, "agt_bob", bobClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if ok {
		t.Fatal("unsigned claim must not validate")
	}
}

func TestValidateSignature_FreshClaimValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	stored, err := f.store.Get(ctx, "agt_alice", aliceClaim.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Signature == nil {
		t.Fatal("node agent's own claim should be signed at issuance")
	}

	ok, err := f.engine.ValidateSignature(ctx, "agt_alice", aliceClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if !ok {
		t.Fatal("freshly signed, untampered claim must validate")
	}
}

func TestValidateSignature_MismatchedStoredHashIsFalse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	// Attach a counter-signature whose recorded hash does not cover the
	// claim payload, bypassing the engine's envelope verification.
	bad := domain.Signature{
		Signer:         "agt_bob",
		Signature:      "AAAA",
		SignedDataHash: "0000000000000000000000000000000000000000000000000000000000000000",
		Algorithm:      "ed25519+sha256",
	}
	if err := f.store.AttachCounterSignature(ctx, "agt_alice", aliceClaim.ID, bad); err != nil {
		t.Fatalf("AttachCounterSignature: %v", err)
	}

	ok, err := f.engine.ValidateSignature(ctx, "agt_alice", aliceClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if ok {
		t.Fatal("claim with a mismatched stored hash must not validate")
	}
}

func TestValidateSignature_DanglingClaim(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.ValidateSignature(context.Background(), "agt_alice", "clm_missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

// corroborationPayload marshals a claim's signing payload the way the
// requesting node publishes it, with its digest.
func corroborationPayload(t *testing.T, c domain.ParticipationClaim) (json.RawMessage, string) {
	t.Helper()
	payload, err := json.Marshal(c.SigningPayload())
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	digest, _, err := canonhash.SumObject(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("SumObject: %v", err)
	}
	return payload, digest
}

func TestCorroborate_SignsClaimNamingAgentAsCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bobClaim, _ := issuePair(t, f)

	payload, digest := corroborationPayload(t, bobClaim)
	env, err := f.engine.Corroborate(ctx, payload, digest)
	if err != nil {
		t.Fatalf("Corroborate: %v", err)
	}
	if env.Signer != "agt_alice" {
		t.Fatalf("envelope signer = %s, want agt_alice", env.Signer)
	}

	// The produced envelope closes the loop on the owner's side.
	if err := f.engine.AttachCounterSignature(ctx, "agt_bob", bobClaim.ID, env); err != nil {
		t.Fatalf("AttachCounterSignature: %v", err)
	}
	ok, err := f.engine.ValidateSignature(ctx, "agt_bob", bobClaim.ID)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if !ok {
		t.Fatal("corroborated claim should validate")
	}
}

func TestCorroborate_RefusesClaimOfAnotherCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceClaim := issuePair(t, f)

	// Alice's claim names agt_bob as counterparty; this node signs as
	// agt_alice and must not attest it on bob's behalf.
	payload, digest := corroborationPayload(t, aliceClaim)
	if _, err := f.engine.Corroborate(ctx, payload, digest); !domain.IsKind(err, domain.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestCorroborate_RefusesFabricatedClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bobClaim, _ := issuePair(t, f)

	// Correct counterparty, but the referenced commitment does not exist in
	// this node's replica.
	forged := bobClaim
	forged.Fulfills = "cmt_fabricated"
	payload, digest := corroborationPayload(t, forged)
	if _, err := f.engine.Corroborate(ctx, payload, digest); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCorroborate_RefusesEventNotInvolvingAgent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cmt, err := f.ledger.ProposeCommitment(ctx, ledger.ProposeParams{
		Action: domain.ActionTransferCustody, Provider: "agt_bob", Receiver: "agt_carol",
		ResourceRef: "res_saw", DueDate: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ProposeCommitment: %v", err)
	}
	evt, err := f.ledger.LogEvent(ctx, ledger.LogEventParams{
		Action: domain.ActionTransferCustody, Provider: "agt_bob", Receiver: "agt_carol",
		ResourceRef: "res_saw", Fulfills: cmt.ID,
	})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	// References resolve, but the event is bob and carol's interaction;
	// alice was no party to it and must not attest it.
	c := domain.ParticipationClaim{
		ID: domain.NewClaimID(), Owner: "agt_bob", ClaimType: domain.ClaimCustodyTransfer,
		Counterparty: "agt_alice", Fulfills: cmt.ID, FulfilledBy: evt.ID,
		Metrics: perfectMetrics(), CreatedAt: time.Now().UTC(),
	}
	payload, digest := corroborationPayload(t, c)
	if _, err := f.engine.Corroborate(ctx, payload, digest); !domain.IsKind(err, domain.KindAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestCorroborate_RefusesMismatchedDigest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bobClaim, _ := issuePair(t, f)

	payload, _ := corroborationPayload(t, bobClaim)
	bogus := "0000000000000000000000000000000000000000000000000000000000000000"
	if _, err := f.engine.Corroborate(ctx, payload, bogus); !domain.IsKind(err, domain.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestSignPayload_RequiresSigner(t *testing.T) {
	store := claims.NewMemoryStore()
	eng := NewEngine(store, ledger.New(ledger.NewMemoryStore()), nil)
	if _, _, err := eng.SignPayload(map[string]string{"k": "v"}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

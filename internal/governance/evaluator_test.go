package governance

import (
	"context"
	"testing"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/identity"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/internal/receipts"
	"github.com/Sensorica/nondominium-sub002/internal/reputation"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

type fixture struct {
	eval   *Evaluator
	ledger *ledger.Ledger
	store  *claims.MemoryStore
	dir    *identity.StaticDirectory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := claims.NewMemoryStore()
	l := ledger.New(ledger.NewMemoryStore())
	dir := &identity.StaticDirectory{}
	rep := reputation.NewAggregator(store)
	eng := receipts.NewEngine(store, l, nil)
	return fixture{eval: NewEvaluator(dir, rep, l, eng), ledger: l, store: store, dir: dir}
}

func perfectMetrics() *domain.PerformanceMetrics {
	return &domain.PerformanceMetrics{
		Timeliness: 1, Quality: 1, Reliability: 1, Communication: 1, OverallSatisfaction: 1,
	}
}

func drill() domain.ResourceSnapshot {
	return domain.ResourceSnapshot{
		ID: "res_drill", Custodian: "agt_alice", Location: "workshop",
		Quantity: domain.Quantity{Value: 1, Unit: "each"}, Condition: "good",
	}
}

func TestEvaluate_RoleGatedWorkRejected(t *testing.T) {
	f := newFixture(t)
	result, err := f.eval.Evaluate(context.Background(), domain.TransitionRequest{
		Action:          domain.ActionWork,
		Resource:        drill(),
		RequestingAgent: "agt_bob",
		Context:         domain.TransitionContext{ProcessType: domain.ProcessTransport},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Success {
		t.Fatalf("transition should be rejected without the Transport role")
	}
	if len(result.RejectionReasons) == 0 || len(result.NextSteps) == 0 {
		t.Fatalf("rejection must carry reasons and next steps: %+v", result)
	}
	// No event may be logged before authorization passes.
	events, _ := f.ledger.ListEvents(context.Background(), "res_drill")
	if len(events) != 0 {
		t.Fatalf("rejected transition must not log events, got %d", len(events))
	}
}

func TestEvaluate_RoleAndReputationSatisfied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.dir.Credentials = []identity.Credential{
		{Agent: "agt_bob", Role: "Transport", IssuedBy: "agt_steward", IssuedAt: time.Now().UTC().Add(-time.Hour)},
	}
	// Give bob a strong transport record so the reputation gate passes.
	now := time.Now().UTC()
	a := domain.ParticipationClaim{
		ID: domain.NewClaimID(), Owner: "agt_bob", ClaimType: domain.ClaimTransportFulfillmentCompleted,
		Counterparty: "agt_alice", Fulfills: "cmt_1", FulfilledBy: "evt_1",
		Metrics: *perfectMetrics(), CreatedAt: now.Add(-24 * time.Hour),
	}
	b := a
	b.ID = domain.NewClaimID()
	b.Owner = "agt_alice"
	b.ClaimType = domain.ClaimCustodyAcceptance
	b.Counterparty = "agt_bob"
	if err := f.store.PutPair(ctx, a, b); err != nil {
		t.Fatalf("PutPair: %v", err)
	}

	result, err := f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action:          domain.ActionWork,
		Resource:        drill(),
		RequestingAgent: "agt_bob",
		Context:         domain.TransitionContext{ProcessType: domain.ProcessTransport},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected approval: %+v", result)
	}
	if result.Event == nil || result.Event.Action != domain.ActionWork {
		t.Fatalf("approval must carry the event: %+v", result.Event)
	}
	if result.Resource.Custodian != "agt_alice" {
		t.Fatalf("work must not change custody: %+v", result.Resource)
	}
}

func TestEvaluate_InsufficientReputation(t *testing.T) {
	f := newFixture(t)
	f.dir.Credentials = []identity.Credential{
		{Agent: "agt_bob", Role: "Transport", IssuedBy: "agt_steward", IssuedAt: time.Now().UTC().Add(-time.Hour)},
	}
	// No transport claims: neutral 0.5 baseline meets 0.5, so tighten via
	// a weak record instead.
	now := time.Now().UTC()
	a := domain.ParticipationClaim{
		ID: domain.NewClaimID(), Owner: "agt_bob", ClaimType: domain.ClaimTransportFulfillmentCompleted,
		Counterparty: "agt_alice", Fulfills: "cmt_1", FulfilledBy: "evt_1",
		Metrics:   domain.PerformanceMetrics{Timeliness: 0.1, Quality: 0.1, Reliability: 0.1, Communication: 0.1, OverallSatisfaction: 0.1},
		CreatedAt: now.Add(-24 * time.Hour),
	}
	b := a
	b.ID = domain.NewClaimID()
	b.Owner = "agt_alice"
	b.ClaimType = domain.ClaimCustodyAcceptance
	b.Counterparty = "agt_bob"
	if err := f.store.PutPair(context.Background(), a, b); err != nil {
		t.Fatalf("PutPair: %v", err)
	}

	result, err := f.eval.Evaluate(context.Background(), domain.TransitionRequest{
		Action:          domain.ActionWork,
		Resource:        drill(),
		RequestingAgent: "agt_bob",
		Context:         domain.TransitionContext{ProcessType: domain.ProcessTransport},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Success {
		t.Fatalf("low reputation should reject the transition")
	}
	if len(result.NextSteps) == 0 {
		t.Fatalf("reputation rejection must suggest remediation")
	}
}

func TestEvaluate_CustodyTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cmt, err := f.ledger.ProposeCommitment(ctx, ledger.ProposeParams{
		Action: domain.ActionTransferCustody, Provider: "agt_alice", Receiver: "agt_bob",
		ResourceRef: "res_drill", DueDate: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ProposeCommitment: %v", err)
	}

	result, err := f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action:          domain.ActionTransferCustody,
		Resource:        drill(),
		RequestingAgent: "agt_alice",
		Context: domain.TransitionContext{
			TargetCustodian:  "agt_bob",
			Fulfills:         cmt.ID,
			GenerateReceipts: true,
			RequesterMetrics: perfectMetrics(),
			CustodianMetrics: perfectMetrics(),
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected approval: %+v", result)
	}
	if result.Resource.Custodian != "agt_bob" {
		t.Fatalf("custody should pass to agt_bob: %+v", result.Resource)
	}
	if result.Resource.Location != "workshop" {
		t.Fatalf("custody transfer must not move the resource")
	}
	if len(result.ClaimRefs) != 2 {
		t.Fatalf("expected a claim pair, got %v", result.ClaimRefs)
	}

	alice, _ := f.store.ListOwned(ctx, "agt_alice", claims.Filter{})
	bob, _ := f.store.ListOwned(ctx, "agt_bob", claims.Filter{})
	if len(alice) != 1 || alice[0].ClaimType != domain.ClaimCustodyTransfer || alice[0].Counterparty != "agt_bob" {
		t.Fatalf("alice claim: %+v", alice)
	}
	if len(bob) != 1 || bob[0].ClaimType != domain.ClaimCustodyAcceptance || bob[0].Counterparty != "agt_alice" {
		t.Fatalf("bob claim: %+v", bob)
	}

	// The fulfilled commitment cannot be fulfilled again.
	_, err = f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action:          domain.ActionTransferCustody,
		Resource:        drill(),
		RequestingAgent: "agt_alice",
		Context:         domain.TransitionContext{TargetCustodian: "agt_carol", Fulfills: cmt.ID},
	})
	if !domain.IsKind(err, domain.KindIntegrity) {
		t.Fatalf("double fulfillment should be integrity error, got %v", err)
	}
}

func TestEvaluate_ValidatorRequirement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := domain.TransitionRequest{
		Action:          domain.ActionInitialTransfer,
		Resource:        domain.ResourceSnapshot{ID: "res_new", Quantity: domain.Quantity{Value: 1, Unit: "each"}},
		RequestingAgent: "agt_alice",
	}
	result, err := f.eval.Evaluate(ctx, req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Success {
		t.Fatalf("initial transfer without validators should be rejected")
	}

	req.Context.Validators = []domain.AgentID{"agt_v1", "agt_v2"}
	result, err = f.eval.Evaluate(ctx, req)
	if err != nil {
		t.Fatalf("Evaluate with validators: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected approval: %+v", result)
	}
	if len(result.Receipts) != 2 {
		t.Fatalf("expected one validation receipt per validator, got %d", len(result.Receipts))
	}
	if result.Receipts[0].Scheme != "simple_majority" || result.Receipts[0].EventRef != result.Event.ID {
		t.Fatalf("receipt should reference scheme and event: %+v", result.Receipts[0])
	}
	if result.Resource.Custodian != "agt_alice" {
		t.Fatalf("initial transfer should set first custodian: %+v", result.Resource)
	}
}

func TestEvaluate_ActionSemantics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	move, err := f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action: domain.ActionMove, Resource: drill(), RequestingAgent: "agt_alice",
		Context: domain.TransitionContext{TargetLocation: "depot"},
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if move.Resource.Location != "depot" || move.Resource.Custodian != "agt_alice" {
		t.Fatalf("move should change location only: %+v", move.Resource)
	}

	modify, err := f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action: domain.ActionModify, Resource: drill(), RequestingAgent: "agt_alice",
		Context: domain.TransitionContext{NewCondition: "refurbished"},
	})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	// agt_alice has no Repair role.
	if modify.Success {
		t.Fatalf("modify without Repair role should be rejected")
	}

	_, err = f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action: domain.ActionMove, Resource: drill(), RequestingAgent: "agt_alice",
	})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("move without target_location should be a validation error, got %v", err)
	}

	_, err = f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action: domain.ActionTransferCustody, Resource: drill(), RequestingAgent: "agt_alice",
	})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("custody transfer without target should be a validation error, got %v", err)
	}
}

func TestEvaluate_NeverMutatesCallerSnapshot(t *testing.T) {
	f := newFixture(t)
	original := drill()
	_, err := f.eval.Evaluate(context.Background(), domain.TransitionRequest{
		Action: domain.ActionMove, Resource: original, RequestingAgent: "agt_alice",
		Context: domain.TransitionContext{TargetLocation: "depot"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if original.Location != "workshop" {
		t.Fatalf("caller snapshot was mutated: %+v", original)
	}
}

func TestEvaluate_ValidatorsEarnParticipationClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cmt, err := f.ledger.ProposeCommitment(ctx, ledger.ProposeParams{
		Action: domain.ActionProduce, Provider: "agt_alice", Receiver: "agt_bob",
		ResourceRef: "res_new", DueDate: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ProposeCommitment: %v", err)
	}

	result, err := f.eval.Evaluate(ctx, domain.TransitionRequest{
		Action:          domain.ActionProduce,
		Resource:        domain.ResourceSnapshot{ID: "res_new", Quantity: domain.Quantity{Value: 1, Unit: "each"}},
		RequestingAgent: "agt_alice",
		Context: domain.TransitionContext{
			TargetCustodian:  "agt_bob",
			Validators:       []domain.AgentID{"agt_v1", "agt_v2"},
			Fulfills:         cmt.ID,
			GenerateReceipts: true,
			RequesterMetrics: perfectMetrics(),
			CustodianMetrics: perfectMetrics(),
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected approval: %+v", result)
	}
	// Main pair plus one pair per validator.
	if len(result.ClaimRefs) != 6 {
		t.Fatalf("claim refs = %v", result.ClaimRefs)
	}

	for _, v := range []domain.AgentID{"agt_v1", "agt_v2"} {
		owned, err := f.store.ListOwned(ctx, v, claims.Filter{})
		if err != nil {
			t.Fatalf("ListOwned(%s): %v", v, err)
		}
		if len(owned) != 1 || owned[0].ClaimType != domain.ClaimValidationActivity {
			t.Fatalf("validator %s claims: %+v", v, owned)
		}
		if owned[0].Metrics.OverallSatisfaction != 0.5 {
			t.Fatalf("validator scores should be neutral: %+v", owned[0].Metrics)
		}
	}

	// The requester holds the contribution claim plus one compliance claim
	// per validator, all governance-tallied correctly.
	summary, err := reputationSummary(ctx, f, "agt_alice")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if summary.TotalClaims != 3 {
		t.Fatalf("total claims = %d", summary.TotalClaims)
	}
}

func reputationSummary(ctx context.Context, f fixture, agent domain.AgentID) (domain.ReputationSummary, error) {
	rep := reputation.NewAggregator(f.store)
	return rep.Derive(ctx, agent,
		time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour), "")
}

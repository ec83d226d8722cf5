package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pair(at time.Time) (domain.ParticipationClaim, domain.ParticipationClaim) {
	a := domain.ParticipationClaim{
		ID:           domain.NewClaimID(),
		Owner:        "agt_alice",
		ClaimType:    domain.ClaimCustodyTransfer,
		Counterparty: "agt_bob",
		Fulfills:     "cmt_1",
		FulfilledBy:  "evt_1",
		Metrics:      domain.PerformanceMetrics{Timeliness: 1, Quality: 1, Reliability: 1, Communication: 1, OverallSatisfaction: 1},
		CreatedAt:    at,
	}
	b := a
	b.ID = domain.NewClaimID()
	b.Owner = "agt_bob"
	b.ClaimType = domain.ClaimCustodyAcceptance
	b.Counterparty = "agt_alice"
	return a, b
}

func TestPutPairRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, b := pair(at)
	if err := s.PutPair(ctx, a, b); err != nil {
		t.Fatalf("PutPair: %v", err)
	}

	got, err := s.Get(ctx, "agt_alice", a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ClaimType != domain.ClaimCustodyTransfer || got.Counterparty != "agt_bob" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, at)
	}
	if got.Metrics.Quality != 1 {
		t.Fatalf("metrics not preserved: %+v", got.Metrics)
	}

	// Cross-owner read is scoped out.
	if _, err := s.Get(ctx, "agt_bob", a.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("cross-owner Get should be not-found, got %v", err)
	}
}

func TestListOwnedFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		a, b := pair(base.Add(time.Duration(i) * time.Hour))
		if i%2 == 1 {
			a.ClaimType = domain.ClaimValidationActivity
		}
		if err := s.PutPair(ctx, a, b); err != nil {
			t.Fatalf("PutPair: %v", err)
		}
	}

	all, err := s.ListOwned(ctx, "agt_alice", claims.Filter{})
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 claims, got %d", len(all))
	}
	byType, _ := s.ListOwned(ctx, "agt_alice", claims.Filter{Type: domain.ClaimValidationActivity})
	if len(byType) != 2 {
		t.Fatalf("type filter: got %d", len(byType))
	}
	windowed, _ := s.ListOwned(ctx, "agt_alice", claims.Filter{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
	if len(windowed) != 2 {
		t.Fatalf("window filter: got %d", len(windowed))
	}
	limited, _ := s.ListOwned(ctx, "agt_alice", claims.Filter{Limit: 3})
	if len(limited) != 3 {
		t.Fatalf("limit: got %d", len(limited))
	}
}

func TestAttachCounterSignature(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, b := pair(at)
	if err := s.PutPair(ctx, a, b); err != nil {
		t.Fatalf("PutPair: %v", err)
	}
	sig := domain.Signature{Signer: "agt_bob", Signature: "c2ln", SignedDataHash: "abc", Algorithm: "ed25519+sha256", CreatedAt: at}
	if err := s.AttachCounterSignature(ctx, "agt_alice", a.ID, sig); err != nil {
		t.Fatalf("AttachCounterSignature: %v", err)
	}
	got, _ := s.Get(ctx, "agt_alice", a.ID)
	if got.CounterSig == nil || got.CounterSig.Signer != "agt_bob" {
		t.Fatalf("counter signature not attached: %+v", got.CounterSig)
	}
	if err := s.AttachCounterSignature(ctx, "agt_alice", a.ID, sig); !domain.IsKind(err, domain.KindIntegrity) {
		t.Fatalf("double counter-sign should be integrity error, got %v", err)
	}
	if err := s.AttachCounterSignature(ctx, "agt_alice", "clm_missing", sig); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("missing claim should be not-found, got %v", err)
	}
}

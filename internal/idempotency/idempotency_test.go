package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestReplayRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewCacheStore(time.Minute)
	actor := ActorContext{Agent: "agt_alice", IdempotencyKey: "idem_1"}

	_, found, err := Replay(ctx, st, actor, "transitions:request")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if found {
		t.Fatalf("nothing should be recorded yet")
	}

	rec := Record{Status: 200, Body: map[string]any{"success": true}}
	if err := Save(ctx, st, actor, "transitions:request", rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := Replay(ctx, st, actor, "transitions:request")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !found || got.Status != 200 {
		t.Fatalf("expected replay hit: found=%v rec=%+v", found, got)
	}

	// Same key, different endpoint: no cross-talk.
	_, found, _ = Replay(ctx, st, actor, "events")
	if found {
		t.Fatalf("records must be scoped per endpoint")
	}
	// Different agent, same key.
	_, found, _ = Replay(ctx, st, ActorContext{Agent: "agt_bob", IdempotencyKey: "idem_1"}, "transitions:request")
	if found {
		t.Fatalf("records must be scoped per agent")
	}
}

func TestEmptyKeyDisablesReplay(t *testing.T) {
	ctx := context.Background()
	st := NewCacheStore(time.Minute)
	actor := ActorContext{Agent: "agt_alice"}

	if err := Save(ctx, st, actor, "events", Record{Status: 201}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, found, err := Replay(ctx, st, actor, "events")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if found {
		t.Fatalf("empty idempotency key must disable replay")
	}
}

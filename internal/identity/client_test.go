package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_RoleCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agents/agt_alice/roles/Transport":
			w.Header().Set("content-type", "application/json")
			_, _ = w.Write([]byte(`{"credential":{"agent":"agt_alice","role":"Transport","issued_by":"agt_steward","issued_at":"2026-01-01T00:00:00Z"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ok, err := c.HasRole(context.Background(), "agt_alice", "Transport")
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Fatalf("expected role to be granted")
	}
	ok, err = c.HasRole(context.Background(), "agt_bob", "Transport")
	if err != nil {
		t.Fatalf("HasRole missing: %v", err)
	}
	if ok {
		t.Fatalf("missing grant should report false")
	}
}

func TestStaticDirectory(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	dir := &StaticDirectory{Credentials: []Credential{
		{Agent: "agt_alice", Role: "Transport", IssuedBy: "agt_steward", IssuedAt: past.Add(-time.Hour)},
		{Agent: "agt_bob", Role: "Repair", IssuedBy: "agt_steward", IssuedAt: past.Add(-time.Hour), ExpiresAt: &past},
	}}

	ok, err := dir.HasRole(context.Background(), "agt_alice", "Transport")
	if err != nil || !ok {
		t.Fatalf("expected grant, got ok=%v err=%v", ok, err)
	}
	ok, _ = dir.HasRole(context.Background(), "agt_alice", "Repair")
	if ok {
		t.Fatalf("wrong role should not match")
	}
	ok, _ = dir.HasRole(context.Background(), "agt_bob", "Repair")
	if ok {
		t.Fatalf("expired credential should not grant the role")
	}
}

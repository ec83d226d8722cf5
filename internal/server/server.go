// Package server exposes the agent node's operations over HTTP JSON. Every
// handler authenticates the calling agent via bearer token; the agent
// identity scopes claim reads, reputation queries, and transition requests.
package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/governance"
	"github.com/Sensorica/nondominium-sub002/internal/idempotency"
	"github.com/Sensorica/nondominium-sub002/internal/identity"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/internal/receipts"
	"github.com/Sensorica/nondominium-sub002/internal/replication"
	"github.com/Sensorica/nondominium-sub002/internal/reputation"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
	"github.com/Sensorica/nondominium-sub002/pkg/httpx"
)

type Server struct {
	Agent       domain.AgentID
	Ledger      *ledger.Ledger
	Claims      claims.Store
	Receipts    *receipts.Engine
	Reputation  *reputation.Aggregator
	Governance  *governance.Evaluator
	Directory   identity.Directory
	Tokens      *TokenTable
	Idempotency idempotency.Store

	// Replicator is optional; without it the node is standalone and
	// ledger entries stay local.
	Replicator *replication.Replicator
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	// Peer-facing role directory, unauthenticated like the upstream
	// identity collaborator's surface.
	r.Get("/agents/{agent_id}/roles/{role}", s.handleRoleCredential)

	r.Route("/v1", func(api chi.Router) {
		api.Post("/commitments", s.handleProposeCommitment)
		api.Post("/commitments/{commitment_id}:accept", s.handleAcceptCommitment)
		api.Get("/commitments/{commitment_id}", s.handleGetCommitment)
		api.Post("/events", s.handleLogEvent)
		api.Get("/events", s.handleListEvents)
		api.Get("/events/{event_id}", s.handleGetEvent)
		api.Post("/receipts:issue", s.handleIssueReceipts)
		api.Post("/transitions:request", s.handleRequestTransition)
		api.Get("/claims", s.handleListClaims)
		api.Get("/claims/{claim_id}", s.handleGetClaim)
		api.Post("/claims/{claim_id}/countersign", s.handleCounterSign)
		api.Post("/claims/{claim_id}/signature:validate", s.handleValidateSignature)
		api.Get("/reputation", s.handleReputation)
		api.Post("/agents/{agent_id}/keys", s.handleRegisterKey)
	})
	return r
}

// authenticate resolves the caller or writes the 401 itself.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (domain.AgentID, bool) {
	agent, err := s.Tokens.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or unknown bearer token", nil)
		return "", false
	}
	return agent, true
}

func (s *Server) publishCommitment(c domain.Commitment) {
	if s.Replicator == nil {
		return
	}
	if err := s.Replicator.PublishCommitment(c); err != nil {
		log.Printf("server: publish commitment %s: %v", c.ID, err)
	}
}

func (s *Server) publishEvent(e domain.EconomicEvent) {
	if s.Replicator == nil {
		return
	}
	if err := s.Replicator.PublishEvent(e); err != nil {
		log.Printf("server: publish event %s: %v", e.ID, err)
	}
}

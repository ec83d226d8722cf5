package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/idempotency"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/internal/receipts"
	"github.com/Sensorica/nondominium-sub002/internal/replication"
	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/canonhash"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
	"github.com/Sensorica/nondominium-sub002/pkg/httpx"
)

type actorContext struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// replayed writes the stored response for a repeated request and reports
// whether the handler should stop.
func (s *Server) replayed(w http.ResponseWriter, r *http.Request, agent domain.AgentID, key, endpoint string) bool {
	actor := idempotency.ActorContext{Agent: agent, IdempotencyKey: key}
	rec, ok, err := idempotency.Replay(r.Context(), s.Idempotency, actor, endpoint)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return true
	}
	if ok {
		httpx.WriteJSON(w, rec.Status, rec.Body)
		return true
	}
	return false
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, agent domain.AgentID, key, endpoint string, status int, body map[string]any) {
	body["request_id"] = httpx.NewRequestID()
	actor := idempotency.ActorContext{Agent: agent, IdempotencyKey: key}
	_ = idempotency.Save(r.Context(), s.Idempotency, actor, endpoint, idempotency.Record{Status: status, Body: body})
	httpx.WriteJSON(w, status, body)
}

func (s *Server) handleProposeCommitment(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorContext actorContext   `json:"actor_context"`
		Action       string         `json:"action"`
		Provider     domain.AgentID `json:"provider"`
		Receiver     domain.AgentID `json:"receiver"`
		ResourceRef  string         `json:"resource_ref"`
		DueDate      time.Time      `json:"due_date"`
		Note         string         `json:"note"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	const endpoint = "commitments.propose"
	if s.replayed(w, r, agent, req.ActorContext.IdempotencyKey, endpoint) {
		return
	}
	if agent != req.Provider && agent != req.Receiver {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("agent is not a party to this commitment", "propose commitments you provide or receive"))
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	c, err := s.Ledger.ProposeCommitment(r.Context(), ledger.ProposeParams{
		Action:      action,
		Provider:    req.Provider,
		Receiver:    req.Receiver,
		ResourceRef: req.ResourceRef,
		DueDate:     req.DueDate,
		Note:        req.Note,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	s.publishCommitment(c)
	s.respond(w, r, agent, req.ActorContext.IdempotencyKey, endpoint, http.StatusCreated, map[string]any{"commitment": c})
}

func (s *Server) handleAcceptCommitment(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "commitment_id")
	c, err := s.Ledger.GetCommitment(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if agent != c.Receiver {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("only the commitment receiver may accept it", ""))
		return
	}
	if err := s.Ledger.AcceptCommitment(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	c, err = s.Ledger.GetCommitment(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	s.publishCommitment(c)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "commitment": c})
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	c, err := s.Ledger.GetCommitment(r.Context(), chi.URLParam(r, "commitment_id"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "commitment": c})
}

func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorContext actorContext    `json:"actor_context"`
		Action       string          `json:"action"`
		Provider     domain.AgentID  `json:"provider"`
		Receiver     domain.AgentID  `json:"receiver"`
		ResourceRef  string          `json:"resource_ref"`
		Quantity     domain.Quantity `json:"quantity"`
		Note         string          `json:"note"`
		Fulfills     string          `json:"fulfills"`

		GenerateReceipts bool                       `json:"generate_receipts"`
		ProcessType      string                     `json:"process_type"`
		ClaimTypes       []string                   `json:"claim_types"`
		ProviderMetrics  *domain.PerformanceMetrics `json:"provider_metrics"`
		ReceiverMetrics  *domain.PerformanceMetrics `json:"receiver_metrics"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	const endpoint = "events.log"
	if s.replayed(w, r, agent, req.ActorContext.IdempotencyKey, endpoint) {
		return
	}
	if agent != req.Provider && agent != req.Receiver {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("agent is not a party to this event", "log events you provide or receive"))
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	event, err := s.Ledger.LogEvent(r.Context(), ledger.LogEventParams{
		Action:      action,
		Provider:    req.Provider,
		Receiver:    req.Receiver,
		ResourceRef: req.ResourceRef,
		Quantity:    req.Quantity,
		Note:        req.Note,
		Fulfills:    req.Fulfills,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	s.publishEvent(event)

	body := map[string]any{"event": event}
	if req.GenerateReceipts {
		if req.ProviderMetrics == nil || req.ReceiverMetrics == nil {
			httpx.WriteDomainError(w, domain.NewValidationError("generate_receipts requires provider_metrics and receiver_metrics", ""))
			return
		}
		params := receipts.IssueParams{
			Fulfills:        req.Fulfills,
			FulfilledBy:     event.ID,
			Provider:        req.Provider,
			Receiver:        req.Receiver,
			ProviderMetrics: *req.ProviderMetrics,
			ReceiverMetrics: *req.ReceiverMetrics,
			ResourceRef:     req.ResourceRef,
			Notes:           req.Note,
		}
		var a, b domain.ParticipationClaim
		if len(req.ClaimTypes) > 0 {
			types := make([]domain.ClaimType, 0, len(req.ClaimTypes))
			for _, raw := range req.ClaimTypes {
				ct, err := domain.ParseClaimType(raw)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				types = append(types, ct)
			}
			params.ClaimTypes = types
			a, b, err = s.Receipts.Issue(r.Context(), params)
		} else {
			a, b, err = s.Receipts.IssueForAction(r.Context(), action, domain.ProcessType(req.ProcessType), params)
		}
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		body["claim_refs"] = []string{a.ID, b.ID}
	}
	s.respond(w, r, agent, req.ActorContext.IdempotencyKey, endpoint, http.StatusCreated, body)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	events, err := s.Ledger.ListEvents(r.Context(), r.URL.Query().Get("resource_ref"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.EconomicEvent{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	e, err := s.Ledger.GetEvent(r.Context(), chi.URLParam(r, "event_id"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "event": e})
}

func (s *Server) handleIssueReceipts(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorContext    actorContext              `json:"actor_context"`
		Fulfills        string                    `json:"fulfills"`
		FulfilledBy     string                    `json:"fulfilled_by"`
		Provider        domain.AgentID            `json:"provider"`
		Receiver        domain.AgentID            `json:"receiver"`
		ClaimTypes      []string                  `json:"claim_types"`
		ProviderMetrics domain.PerformanceMetrics `json:"provider_metrics"`
		ReceiverMetrics domain.PerformanceMetrics `json:"receiver_metrics"`
		ResourceRef     string                    `json:"resource_ref"`
		Notes           string                    `json:"notes"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	const endpoint = "receipts.issue"
	if s.replayed(w, r, agent, req.ActorContext.IdempotencyKey, endpoint) {
		return
	}
	if agent != req.Provider && agent != req.Receiver {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("agent is not a party to this interaction", "issue receipts for interactions you took part in"))
		return
	}
	types := make([]domain.ClaimType, 0, len(req.ClaimTypes))
	for _, raw := range req.ClaimTypes {
		ct, err := domain.ParseClaimType(raw)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		types = append(types, ct)
	}
	a, b, err := s.Receipts.Issue(r.Context(), receipts.IssueParams{
		Fulfills:        req.Fulfills,
		FulfilledBy:     req.FulfilledBy,
		Provider:        req.Provider,
		Receiver:        req.Receiver,
		ClaimTypes:      types,
		ProviderMetrics: req.ProviderMetrics,
		ReceiverMetrics: req.ReceiverMetrics,
		ResourceRef:     req.ResourceRef,
		Notes:           req.Notes,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	s.respond(w, r, agent, req.ActorContext.IdempotencyKey, endpoint, http.StatusCreated, map[string]any{
		"provider_claim_ref": a.ID,
		"receiver_claim_ref": b.ID,
	})
}

func (s *Server) handleRequestTransition(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		ActorContext actorContext             `json:"actor_context"`
		Action       string                   `json:"action"`
		Resource     domain.ResourceSnapshot  `json:"resource"`
		Context      domain.TransitionContext `json:"context"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	const endpoint = "transitions.request"
	if s.replayed(w, r, agent, req.ActorContext.IdempotencyKey, endpoint) {
		return
	}
	result, err := s.Governance.Evaluate(r.Context(), domain.TransitionRequest{
		Action:          domain.Action(req.Action),
		Resource:        req.Resource,
		RequestingAgent: agent,
		Context:         req.Context,
	})
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if result.Event != nil {
		s.publishEvent(*result.Event)
	}
	s.respond(w, r, agent, req.ActorContext.IdempotencyKey, endpoint, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var f claims.Filter
	if raw := q.Get("type"); raw != "" {
		ct, err := domain.ParseClaimType(raw)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		f.Type = ct
	}
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteDomainError(w, domain.NewValidationError(name+" must be RFC 3339", ""))
			return
		}
		*dst = ts
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteDomainError(w, domain.NewValidationError("limit must be a non-negative integer", ""))
			return
		}
		f.Limit = n
	}
	list, err := s.Claims.ListOwned(r.Context(), agent, f)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []domain.ParticipationClaim{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "claims": list})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	c, err := s.Claims.Get(r.Context(), agent, chi.URLParam(r, "claim_id"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "claim": c})
}

// handleCounterSign closes the bilateral loop on a claim the caller owns.
// When the node's agent is the claim's counterparty it signs locally; when
// the caller supplies a counterparty-produced envelope it is verified and
// attached; otherwise the request is forwarded to the counterparty's
// replica and forgotten.
func (s *Server) handleCounterSign(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	claimID := chi.URLParam(r, "claim_id")
	var req struct {
		Envelope *attest.Envelope `json:"envelope"`
	}
	if r.ContentLength > 0 {
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
			return
		}
	}

	if req.Envelope != nil {
		if err := s.Receipts.AttachCounterSignature(r.Context(), agent, claimID, *req.Envelope); err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "attached": true})
		return
	}

	c, err := s.Claims.Get(r.Context(), agent, claimID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if c.Counterparty == s.Agent {
		sig, digest, err := s.Receipts.CounterSign(r.Context(), agent, claimID)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "signature": sig, "digest": digest})
		return
	}
	if s.Replicator == nil {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("counterparty is not served by this node", "submit the counterparty's signature envelope"))
		return
	}
	payload, err := json.Marshal(c.SigningPayload())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	digest, _, err := canonhash.SumObject(c.SigningPayload())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	err = s.Replicator.RequestCounterSignature(c.Counterparty, replication.CounterSignRequest{
		ClaimID:   claimID,
		Requester: agent,
		Digest:    digest,
		Payload:   payload,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"request_id": httpx.NewRequestID(), "requested": true})
}

func (s *Server) handleValidateSignature(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	valid, err := s.Receipts.ValidateSignature(r.Context(), agent, chi.URLParam(r, "claim_id"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "valid": valid})
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	parse := func(name string) (time.Time, bool) {
		ts, err := time.Parse(time.RFC3339, q.Get(name))
		if err != nil {
			httpx.WriteDomainError(w, domain.NewValidationError(name+" must be RFC 3339", ""))
			return time.Time{}, false
		}
		return ts, true
	}
	start, ok := parse("period_start")
	if !ok {
		return
	}
	end, ok := parse("period_end")
	if !ok {
		return
	}
	var typeFilter domain.ClaimType
	if raw := q.Get("claim_type"); raw != "" {
		ct, err := domain.ParseClaimType(raw)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		typeFilter = ct
	}
	summary, err := s.Reputation.Derive(r.Context(), agent, start, end, typeFilter)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "summary": summary})
}

func (s *Server) handleRoleCredential(w http.ResponseWriter, r *http.Request) {
	agent := domain.AgentID(chi.URLParam(r, "agent_id"))
	role := chi.URLParam(r, "role")
	cred, err := s.Directory.RoleCredential(r.Context(), agent, role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	if cred == nil {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no credential for agent and role", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "credential": cred})
}

func (s *Server) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	target := domain.AgentID(chi.URLParam(r, "agent_id"))
	if agent != target {
		httpx.WriteDomainError(w, domain.NewAuthorizationError("agents may register only their own key", ""))
		return
	}
	var req struct {
		PublicKey string `json:"public_key"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	if err := s.Receipts.Keys().Register(target, req.PublicKey); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "registered": true})
}

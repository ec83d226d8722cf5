// Package replication moves public ledger entries between agent replicas
// over NATS. Commitments and events replicate; private claims never do.
// Publication is fire-and-forget: no delivery coordination, no waiting on
// other agents' local processing, and the ledger's fulfill-once check
// absorbs late-arriving duplicates on the receiving side.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/pkg/attest"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

const (
	SubjectCommitments = "nondominium.commitments"
	SubjectEvents      = "nondominium.events"

	countersignPrefix   = "nondominium.countersign."
	countersignedPrefix = "nondominium.countersigned."
)

// CounterSignRequest asks a counterparty to corroborate a claim digest.
// The issuer does not wait for an answer; the counterparty signs minutes
// or days later, or never.
type CounterSignRequest struct {
	ClaimID   string          `json:"claim_id"`
	Requester domain.AgentID  `json:"requester"`
	Digest    string          `json:"digest"`
	Payload   json.RawMessage `json:"payload"`
}

// CounterSignResponse carries the counterparty's attestation back to the
// claim owner, who attaches it after verifying the envelope.
type CounterSignResponse struct {
	ClaimID  string          `json:"claim_id"`
	Owner    domain.AgentID  `json:"owner"`
	Envelope attest.Envelope `json:"envelope"`
}

type Replicator struct {
	conn   *nats.Conn
	ledger *ledger.Ledger
	agent  domain.AgentID

	subs []*nats.Subscription
}

func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("nondominium-agentd"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func New(conn *nats.Conn, l *ledger.Ledger, agent domain.AgentID) *Replicator {
	return &Replicator{conn: conn, ledger: l, agent: agent}
}

func (r *Replicator) PublishCommitment(c domain.Commitment) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode commitment: %w", err)
	}
	return r.conn.Publish(SubjectCommitments, b)
}

func (r *Replicator) PublishEvent(e domain.EconomicEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.conn.Publish(SubjectEvents, b)
}

// RequestCounterSignature publishes a corroboration request on the
// counterparty's subject and returns immediately.
func (r *Replicator) RequestCounterSignature(counterparty domain.AgentID, req CounterSignRequest) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode countersign request: %w", err)
	}
	return r.conn.Publish(countersignPrefix+string(counterparty), b)
}

// PublishCounterSignature sends a produced counter-signature back to the
// claim owner's subject.
func (r *Replicator) PublishCounterSignature(owner domain.AgentID, resp CounterSignResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode countersign response: %w", err)
	}
	return r.conn.Publish(countersignedPrefix+string(owner), b)
}

// Start subscribes to the public subjects and applies remote entries
// through the ledger. onCounterSign, when non-nil, receives
// corroboration requests addressed to this agent; onCounterSigned
// receives produced counter-signatures for claims this agent owns.
func (r *Replicator) Start(onCounterSign func(CounterSignRequest), onCounterSigned func(CounterSignResponse)) error {
	sub, err := r.conn.Subscribe(SubjectCommitments, func(msg *nats.Msg) {
		var c domain.Commitment
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			log.Printf("replication: drop malformed commitment: %v", err)
			return
		}
		if err := r.ledger.ApplyRemoteCommitment(context.Background(), c); err != nil {
			log.Printf("replication: apply commitment %s: %v", c.ID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe commitments: %w", err)
	}
	r.subs = append(r.subs, sub)

	sub, err = r.conn.Subscribe(SubjectEvents, func(msg *nats.Msg) {
		var e domain.EconomicEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			log.Printf("replication: drop malformed event: %v", err)
			return
		}
		// Integrity failures here are the expected shape of a detected
		// double-fulfillment race, not a crash.
		if err := r.ledger.ApplyRemoteEvent(context.Background(), e); err != nil {
			log.Printf("replication: apply event %s: %v", e.ID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	r.subs = append(r.subs, sub)

	if onCounterSign != nil {
		sub, err = r.conn.Subscribe(countersignPrefix+string(r.agent), func(msg *nats.Msg) {
			var req CounterSignRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				log.Printf("replication: drop malformed countersign request: %v", err)
				return
			}
			onCounterSign(req)
		})
		if err != nil {
			return fmt.Errorf("subscribe countersign: %w", err)
		}
		r.subs = append(r.subs, sub)
	}

	if onCounterSigned != nil {
		sub, err = r.conn.Subscribe(countersignedPrefix+string(r.agent), func(msg *nats.Msg) {
			var resp CounterSignResponse
			if err := json.Unmarshal(msg.Data, &resp); err != nil {
				log.Printf("replication: drop malformed countersign response: %v", err)
				return
			}
			onCounterSigned(resp)
		})
		if err != nil {
			return fmt.Errorf("subscribe countersigned: %w", err)
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

func (r *Replicator) Stop() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.subs = nil
}

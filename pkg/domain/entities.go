package domain

import (
	"time"

	"github.com/google/uuid"
)

type AgentID string

func NewCommitmentID() string { return "cmt_" + uuid.NewString() }
func NewEventID() string      { return "evt_" + uuid.NewString() }
func NewClaimID() string      { return "clm_" + uuid.NewString() }
func NewReceiptID() string    { return "rcp_" + uuid.NewString() }

type CommitmentState string

const (
	CommitmentProposed  CommitmentState = "PROPOSED"
	CommitmentAccepted  CommitmentState = "ACCEPTED"
	CommitmentFulfilled CommitmentState = "FULFILLED"
)

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Commitment is a published intent to perform an action. Immutable once
// published; later claims reference it, never mutate it.
type Commitment struct {
	ID          string          `json:"commitment_id"`
	Action      Action          `json:"action"`
	Provider    AgentID         `json:"provider"`
	Receiver    AgentID         `json:"receiver"`
	ResourceRef string          `json:"resource_ref,omitempty"`
	DueDate     time.Time       `json:"due_date"`
	Note        string          `json:"note,omitempty"`
	CommittedAt time.Time       `json:"committed_at"`
	State       CommitmentState `json:"state"`
}

// EconomicEvent is a consummated action. Fulfills may be empty for
// spontaneous events.
type EconomicEvent struct {
	ID          string    `json:"event_id"`
	Action      Action    `json:"action"`
	Provider    AgentID   `json:"provider"`
	Receiver    AgentID   `json:"receiver"`
	ResourceRef string    `json:"resource_ref,omitempty"`
	Quantity    Quantity  `json:"quantity"`
	Note        string    `json:"note,omitempty"`
	EventTime   time.Time `json:"event_time"`
	Fulfills    string    `json:"fulfills,omitempty"`
}

// PerformanceMetrics carries the five bilateral scores, each in [0.0, 1.0].
type PerformanceMetrics struct {
	Timeliness          float64 `json:"timeliness"`
	Quality             float64 `json:"quality"`
	Reliability         float64 `json:"reliability"`
	Communication       float64 `json:"communication"`
	OverallSatisfaction float64 `json:"overall_satisfaction"`
	Note                string  `json:"note,omitempty"`
}

// Signature is one party's attestation over a claim digest. The digest is
// the lower-hex SHA-256 (or BLAKE2b-256) of the claim payload; the signature
// is meaningful only relative to that exact digest.
type Signature struct {
	Signer         AgentID   `json:"signer"`
	Signature      string    `json:"signature"`
	SignedDataHash string    `json:"signed_data_hash"`
	Algorithm      string    `json:"algorithm"`
	CreatedAt      time.Time `json:"created_at"`
}

// ParticipationClaim is a private, per-owner reputation record. It is never
// linked into the shared graph and is visible only to its owner.
type ParticipationClaim struct {
	ID           string             `json:"claim_id"`
	Owner        AgentID            `json:"owner"`
	ClaimType    ClaimType          `json:"claim_type"`
	Counterparty AgentID            `json:"counterparty"`
	Fulfills     string             `json:"fulfills"`
	FulfilledBy  string             `json:"fulfilled_by"`
	ResourceRef  string             `json:"resource_ref,omitempty"`
	Metrics      PerformanceMetrics `json:"performance_metrics"`
	Note         string             `json:"note,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	Signature    *Signature         `json:"signature,omitempty"`
	CounterSig   *Signature         `json:"counter_signature,omitempty"`
}

// SigningPayload is the byte content a claim's digest and signatures are
// computed over. Signature fields are excluded so counter-signing
// re-derives the same digest the original signer attested to.
func (c ParticipationClaim) SigningPayload() ParticipationClaim {
	c.Signature = nil
	c.CounterSig = nil
	return c
}

// ReputationSummary is derived fresh on every query, never stored.
type ReputationSummary struct {
	Agent       AgentID   `json:"agent"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	TotalClaims int       `json:"total_claims"`

	AvgTimeliness          float64 `json:"avg_timeliness"`
	AvgQuality             float64 `json:"avg_quality"`
	AvgReliability         float64 `json:"avg_reliability"`
	AvgCommunication       float64 `json:"avg_communication"`
	AvgOverallSatisfaction float64 `json:"avg_overall_satisfaction"`
	AveragePerformance     float64 `json:"average_performance"`

	CustodyClaims    int `json:"custody_claims"`
	GovernanceClaims int `json:"governance_claims"`
}

// ResourceSnapshot is the evaluator's view of a shared resource. The core
// never owns resource state; it authorizes changes and returns a new
// snapshot for the resource-owning collaborator to apply.
type ResourceSnapshot struct {
	ID        string   `json:"resource_id"`
	SpecRef   string   `json:"spec_ref,omitempty"`
	Custodian AgentID  `json:"custodian"`
	Location  string   `json:"location,omitempty"`
	Quantity  Quantity `json:"quantity"`
	Condition string   `json:"condition,omitempty"`
}

// ValidationReceipt records one validator's sign-off on an approved
// transition. Public, unlike participation claims.
type ValidationReceipt struct {
	ID          string    `json:"receipt_id"`
	Validator   AgentID   `json:"validator"`
	Scheme      string    `json:"scheme"`
	ResourceRef string    `json:"resource_ref"`
	EventRef    string    `json:"event_ref"`
	IssuedAt    time.Time `json:"issued_at"`
}

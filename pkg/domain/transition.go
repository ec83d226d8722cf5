package domain

// TransitionContext is the free-form bag accompanying a transition request.
type TransitionContext struct {
	TargetCustodian AgentID     `json:"target_custodian,omitempty"`
	TargetLocation  string      `json:"target_location,omitempty"`
	QuantityDelta   *Quantity   `json:"quantity_delta,omitempty"`
	NewCondition    string      `json:"new_condition,omitempty"`
	ProcessType     ProcessType `json:"process_type,omitempty"`
	Fulfills        string      `json:"fulfills,omitempty"`
	Note            string      `json:"note,omitempty"`

	// Validators are the agents vouching for this transition when the
	// action's rules demand peer validation.
	Validators []AgentID `json:"validators,omitempty"`

	// GenerateReceipts asks the evaluator to mint the participation claim
	// pair for the interaction on approval.
	GenerateReceipts bool                `json:"generate_receipts,omitempty"`
	RequesterMetrics *PerformanceMetrics `json:"requester_metrics,omitempty"`
	CustodianMetrics *PerformanceMetrics `json:"custodian_metrics,omitempty"`
}

// TransitionRequest proposes a state change on a shared resource.
// Transient: never persisted, only its side effects are.
type TransitionRequest struct {
	Action          Action            `json:"action"`
	Resource        ResourceSnapshot  `json:"resource"`
	RequestingAgent AgentID           `json:"requesting_agent"`
	Context         TransitionContext `json:"context"`
}

// TransitionResult is the evaluator's verdict. Terminal either way; a
// rejected request is never retried automatically.
type TransitionResult struct {
	Success          bool                `json:"success"`
	Resource         *ResourceSnapshot   `json:"resource,omitempty"`
	Event            *EconomicEvent      `json:"event,omitempty"`
	Receipts         []ValidationReceipt `json:"validation_receipts,omitempty"`
	ClaimRefs        []string            `json:"claim_refs,omitempty"`
	RejectionReasons []string            `json:"rejection_reasons,omitempty"`
	NextSteps        []string            `json:"next_steps,omitempty"`
}

// Package governance is the operator every state-changing action on a
// shared resource passes through. It resolves the role, validation and
// reputation rules for the requested action, and on approval constructs
// the resulting economic event and resource snapshot. It only authorizes:
// the resource-owning collaborator applies the returned snapshot.
package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/identity"
	"github.com/Sensorica/nondominium-sub002/internal/ledger"
	"github.com/Sensorica/nondominium-sub002/internal/receipts"
	"github.com/Sensorica/nondominium-sub002/internal/reputation"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
	"github.com/Sensorica/nondominium-sub002/pkg/rules"
)

// DefaultReputationWindow bounds how far back the evaluator looks when an
// action is reputation-gated.
const DefaultReputationWindow = 180 * 24 * time.Hour

type Evaluator struct {
	directory  identity.Directory
	reputation *reputation.Aggregator
	ledger     *ledger.Ledger
	receipts   *receipts.Engine

	ReputationWindow time.Duration
	now              func() time.Time
}

func NewEvaluator(dir identity.Directory, rep *reputation.Aggregator, l *ledger.Ledger, eng *receipts.Engine) *Evaluator {
	return &Evaluator{
		directory:        dir,
		reputation:       rep,
		ledger:           l,
		receipts:         eng,
		ReputationWindow: DefaultReputationWindow,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs the full check sequence: role, validation requirement,
// reputation, then action semantics. Malformed requests return an error;
// governance refusals return a terminal rejected result with remediation
// steps, and the caller must resubmit with a corrected context. The
// multi-step check is one logical unit to the caller but is not an atomic
// transaction: the ledger's fulfill-once check is the safety net for
// races, not locking.
func (ev *Evaluator) Evaluate(ctx context.Context, req domain.TransitionRequest) (domain.TransitionResult, error) {
	action, err := domain.ParseAction(string(req.Action))
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if req.RequestingAgent == "" {
		return domain.TransitionResult{}, domain.NewValidationError("requesting_agent is required", "")
	}

	if rejected, result := ev.checkRole(ctx, action, req); rejected {
		return result, nil
	}

	requirement, hasRequirement := rules.ValidationFor(action, req.Context.ProcessType)
	if hasRequirement {
		if rejected, result := ev.checkValidators(requirement, req); rejected {
			return result, nil
		}
		if rejected, result, err := ev.checkReputation(ctx, requirement, req); err != nil {
			return domain.TransitionResult{}, err
		} else if rejected {
			return result, nil
		}
	}

	snapshot, err := applyAction(action, req)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	event, err := ev.recordEvent(ctx, action, req, snapshot)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	result := domain.TransitionResult{
		Success:  true,
		Resource: snapshot,
		Event:    &event,
	}
	if hasRequirement && requirement.MinValidators > 0 {
		result.Receipts = validationReceipts(requirement, req, event, ev.now())
	}

	if req.Context.GenerateReceipts {
		refs, err := ev.mintReceipts(ctx, action, req, event)
		if err != nil {
			return domain.TransitionResult{}, err
		}
		result.ClaimRefs = refs
	}
	return result, nil
}

func (ev *Evaluator) checkRole(ctx context.Context, action domain.Action, req domain.TransitionRequest) (bool, domain.TransitionResult) {
	role, required := rules.RoleFor(action, req.Context.ProcessType)
	if !required {
		return false, domain.TransitionResult{}
	}
	ok, err := ev.directory.HasRole(ctx, req.RequestingAgent, role)
	if err != nil {
		return true, rejection(
			fmt.Sprintf("role directory unavailable: %v", err),
			"retry once the role directory is reachable")
	}
	if !ok {
		return true, rejection(
			fmt.Sprintf("agent %s lacks required role %s", req.RequestingAgent, role),
			fmt.Sprintf("obtain the %s role credential from the identity collaborator", role))
	}
	return false, domain.TransitionResult{}
}

func (ev *Evaluator) checkValidators(requirement rules.ValidationRequirement, req domain.TransitionRequest) (bool, domain.TransitionResult) {
	if requirement.MinValidators <= 0 {
		return false, domain.TransitionResult{}
	}
	if len(req.Context.Validators) < requirement.MinValidators {
		return true, rejection(
			fmt.Sprintf("action requires %d validators, %d supplied", requirement.MinValidators, len(req.Context.Validators)),
			"await peer validation and resubmit with the validating agents listed")
	}
	return false, domain.TransitionResult{}
}

func (ev *Evaluator) checkReputation(ctx context.Context, requirement rules.ValidationRequirement, req domain.TransitionRequest) (bool, domain.TransitionResult, error) {
	if requirement.MinReputation <= 0 {
		return false, domain.TransitionResult{}, nil
	}
	end := ev.now()
	window := ev.ReputationWindow
	if window <= 0 {
		window = DefaultReputationWindow
	}
	summary, err := ev.reputation.Derive(ctx, req.RequestingAgent, end.Add(-window), end, requirement.ReputationFilter)
	if err != nil {
		return false, domain.TransitionResult{}, err
	}
	if summary.AveragePerformance < requirement.MinReputation {
		return true, rejection(
			fmt.Sprintf("reputation %.2f below required %.2f", summary.AveragePerformance, requirement.MinReputation),
			"complete attested interactions to raise standing, or await peer validation"), nil
	}
	return false, domain.TransitionResult{}, nil
}

func (ev *Evaluator) recordEvent(ctx context.Context, action domain.Action, req domain.TransitionRequest, snapshot *domain.ResourceSnapshot) (domain.EconomicEvent, error) {
	quantity := snapshot.Quantity
	if req.Context.QuantityDelta != nil {
		quantity = *req.Context.QuantityDelta
	}
	return ev.ledger.LogEvent(ctx, ledger.LogEventParams{
		Action:      action,
		Provider:    req.RequestingAgent,
		Receiver:    counterpartyOf(req),
		ResourceRef: req.Resource.ID,
		Quantity:    quantity,
		Note:        req.Context.Note,
		Fulfills:    req.Context.Fulfills,
	})
}

func (ev *Evaluator) mintReceipts(ctx context.Context, action domain.Action, req domain.TransitionRequest, event domain.EconomicEvent) ([]string, error) {
	if req.Context.Fulfills == "" {
		return nil, domain.NewValidationError("receipt generation requires a fulfills reference", "link the transition to its commitment")
	}
	if req.Context.RequesterMetrics == nil || req.Context.CustodianMetrics == nil {
		return nil, domain.NewValidationError("receipt generation requires both participants' metrics", "supply requester_metrics and custodian_metrics")
	}
	a, b, err := ev.receipts.IssueForAction(ctx, action, req.Context.ProcessType, receipts.IssueParams{
		Fulfills:        req.Context.Fulfills,
		FulfilledBy:     event.ID,
		Provider:        req.RequestingAgent,
		Receiver:        counterpartyOf(req),
		ProviderMetrics: *req.Context.RequesterMetrics,
		ReceiverMetrics: *req.Context.CustodianMetrics,
		ResourceRef:     req.Resource.ID,
		Notes:           req.Context.Note,
	})
	if err != nil {
		return nil, err
	}
	refs := []string{a.ID, b.ID}

	// Validators earn a governance-participation pair. Scores are neutral
	// so validation work counts in the tallies without skewing anyone's
	// performance averages.
	for _, v := range req.Context.Validators {
		va, vb, err := ev.receipts.Issue(ctx, receipts.IssueParams{
			Fulfills:        req.Context.Fulfills,
			FulfilledBy:     event.ID,
			Provider:        v,
			Receiver:        req.RequestingAgent,
			ClaimTypes:      []domain.ClaimType{domain.ClaimValidationActivity, domain.ClaimRuleCompliance},
			ProviderMetrics: neutralMetrics(),
			ReceiverMetrics: neutralMetrics(),
			ResourceRef:     req.Resource.ID,
			Notes:           "transition validation",
		})
		if err != nil {
			return nil, err
		}
		refs = append(refs, va.ID, vb.ID)
	}
	return refs, nil
}

func neutralMetrics() domain.PerformanceMetrics {
	return domain.PerformanceMetrics{
		Timeliness: 0.5, Quality: 0.5, Reliability: 0.5,
		Communication: 0.5, OverallSatisfaction: 0.5,
	}
}

func validationReceipts(requirement rules.ValidationRequirement, req domain.TransitionRequest, event domain.EconomicEvent, now time.Time) []domain.ValidationReceipt {
	out := make([]domain.ValidationReceipt, 0, len(req.Context.Validators))
	for _, v := range req.Context.Validators {
		out = append(out, domain.ValidationReceipt{
			ID:          domain.NewReceiptID(),
			Validator:   v,
			Scheme:      requirement.Scheme,
			ResourceRef: req.Resource.ID,
			EventRef:    event.ID,
			IssuedAt:    now,
		})
	}
	return out
}

func counterpartyOf(req domain.TransitionRequest) domain.AgentID {
	if req.Context.TargetCustodian != "" {
		return req.Context.TargetCustodian
	}
	if req.Resource.Custodian != "" && req.Resource.Custodian != req.RequestingAgent {
		return req.Resource.Custodian
	}
	return req.RequestingAgent
}

// applyAction computes the post-transition snapshot per action semantics.
// It always returns a copy; the caller's snapshot is never mutated.
func applyAction(action domain.Action, req domain.TransitionRequest) (*domain.ResourceSnapshot, error) {
	next := req.Resource
	ctxt := req.Context
	switch action {
	case domain.ActionTransferCustody, domain.ActionTransfer:
		if ctxt.TargetCustodian == "" {
			return nil, domain.NewValidationError("custody transfer requires target_custodian", "")
		}
		next.Custodian = ctxt.TargetCustodian
	case domain.ActionInitialTransfer, domain.ActionProduce:
		custodian := ctxt.TargetCustodian
		if custodian == "" {
			custodian = req.RequestingAgent
		}
		next.Custodian = custodian
		if ctxt.QuantityDelta != nil {
			next.Quantity = addQuantity(next.Quantity, *ctxt.QuantityDelta)
		}
	case domain.ActionMove:
		if ctxt.TargetLocation == "" {
			return nil, domain.NewValidationError("move requires target_location", "")
		}
		next.Location = ctxt.TargetLocation
	case domain.ActionModify:
		if ctxt.NewCondition != "" {
			next.Condition = ctxt.NewCondition
		}
		if ctxt.QuantityDelta != nil {
			next.Quantity = addQuantity(next.Quantity, *ctxt.QuantityDelta)
		}
	case domain.ActionRaise, domain.ActionLower:
		if ctxt.QuantityDelta == nil {
			return nil, domain.NewValidationError("quantity adjustment requires quantity_delta", "")
		}
		delta := *ctxt.QuantityDelta
		if action == domain.ActionLower {
			delta.Value = -delta.Value
		}
		next.Quantity = addQuantity(next.Quantity, delta)
	case domain.ActionUse, domain.ActionWork:
		// No snapshot change; the interaction itself is the record.
	}
	return &next, nil
}

func addQuantity(base, delta domain.Quantity) domain.Quantity {
	out := base
	out.Value += delta.Value
	if out.Unit == "" {
		out.Unit = delta.Unit
	}
	return out
}

func rejection(reason, nextStep string) domain.TransitionResult {
	return domain.TransitionResult{
		Success:          false,
		RejectionReasons: []string{reason},
		NextSteps:        []string{nextStep},
	}
}

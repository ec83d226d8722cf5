// Package rules holds the governance lookup tables: which role an action
// requires, which complementary claim-type pair an interaction mints, and
// what validation an action must clear. New actions and processes are
// additive rows here, not new branches in the evaluator.
package rules

import (
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// actionKey addresses a table row. An empty ProcessType row matches any
// process not covered by a more specific row.
type actionKey struct {
	Action  domain.Action
	Process domain.ProcessType
}

// ClaimPair is the complementary claim-type pair minted for one
// interaction: First is owned by the provider, Second by the receiver.
type ClaimPair struct {
	First  domain.ClaimType
	Second domain.ClaimType
}

// ValidationRequirement describes what an action must clear before
// approval. MinReputation of zero means the action is not
// reputation-gated; ReputationFilter narrows which claims count.
type ValidationRequirement struct {
	MinValidators    int
	Scheme           string
	MinReputation    float64
	ReputationFilter domain.ClaimType
}

var roleTable = map[actionKey]string{
	{domain.ActionWork, domain.ProcessTransport}:   "Transport",
	{domain.ActionWork, domain.ProcessStorage}:     "Storage",
	{domain.ActionWork, domain.ProcessRepair}:      "Repair",
	{domain.ActionWork, domain.ProcessMaintenance}: "Repair",
	{domain.ActionModify, ""}:                      "Repair",
}

var claimPairTable = map[actionKey]ClaimPair{
	{domain.ActionTransferCustody, ""}: {domain.ClaimCustodyTransfer, domain.ClaimCustodyAcceptance},
	{domain.ActionTransfer, ""}:        {domain.ClaimCustodyTransfer, domain.ClaimCustodyAcceptance},
	{domain.ActionInitialTransfer, ""}: {domain.ClaimResourceContribution, domain.ClaimResourceValidation},
	{domain.ActionProduce, ""}:         {domain.ClaimResourceContribution, domain.ClaimResourceValidation},
	{domain.ActionUse, ""}:             {domain.ClaimGoodFaithTransfer, domain.ClaimServiceCommitmentAccepted},

	{domain.ActionWork, ""}:                        {domain.ClaimServiceFulfillment, domain.ClaimServiceCommitmentAccepted},
	{domain.ActionWork, domain.ProcessTransport}:   {domain.ClaimTransportFulfillmentCompleted, domain.ClaimCustodyAcceptance},
	{domain.ActionWork, domain.ProcessStorage}:     {domain.ClaimStorageFulfillmentCompleted, domain.ClaimCustodyAcceptance},
	{domain.ActionWork, domain.ProcessRepair}:      {domain.ClaimMaintenanceFulfillmentCompleted, domain.ClaimCustodyAcceptance},
	{domain.ActionWork, domain.ProcessMaintenance}: {domain.ClaimMaintenanceFulfillmentCompleted, domain.ClaimCustodyAcceptance},
	{domain.ActionModify, ""}:                      {domain.ClaimMaintenanceFulfillmentCompleted, domain.ClaimCustodyAcceptance},
}

var validationTable = map[actionKey]ValidationRequirement{
	{domain.ActionInitialTransfer, ""}: {MinValidators: 2, Scheme: "simple_majority"},
	{domain.ActionProduce, ""}:         {MinValidators: 2, Scheme: "simple_majority"},
	{domain.ActionModify, ""}:          {MinValidators: 1, Scheme: "single_reviewer", MinReputation: 0.6},

	{domain.ActionWork, domain.ProcessTransport}: {MinReputation: 0.5, ReputationFilter: domain.ClaimTransportFulfillmentCompleted},
	{domain.ActionWork, domain.ProcessStorage}:   {MinReputation: 0.5, ReputationFilter: domain.ClaimStorageFulfillmentCompleted},
	{domain.ActionUse, ""}:                       {MinReputation: 0.3},
}

func lookup[V any](table map[actionKey]V, action domain.Action, process domain.ProcessType) (V, bool) {
	if process != "" {
		if v, ok := table[actionKey{action, process}]; ok {
			return v, true
		}
	}
	v, ok := table[actionKey{action, ""}]
	return v, ok
}

// RoleFor resolves the role an action/process combination requires, if any.
func RoleFor(action domain.Action, process domain.ProcessType) (string, bool) {
	return lookup(roleTable, action, process)
}

// ClaimPairFor resolves the complementary claim-type pair for an
// action/process combination.
func ClaimPairFor(action domain.Action, process domain.ProcessType) (ClaimPair, bool) {
	return lookup(claimPairTable, action, process)
}

// ValidationFor resolves the validation requirements for an
// action/process combination.
func ValidationFor(action domain.Action, process domain.ProcessType) (ValidationRequirement, bool) {
	return lookup(validationTable, action, process)
}

// ValidClaimPair reports whether [a, b] is a known complementary pair in
// issuance order (a owned by the provider, b by the receiver).
func ValidClaimPair(a, b domain.ClaimType) bool {
	for _, p := range claimPairTable {
		if p.First == a && p.Second == b {
			return true
		}
	}
	// Pairs reachable only through explicit issuance, not via an action row.
	extra := []ClaimPair{
		{domain.ClaimServiceCommitmentAccepted, domain.ClaimGoodFaithTransfer},
		{domain.ClaimValidationActivity, domain.ClaimRuleCompliance},
		{domain.ClaimDisputeResolutionParticipation, domain.ClaimDisputeResolutionParticipation},
		{domain.ClaimEndOfLifeDeclaration, domain.ClaimEndOfLifeValidation},
	}
	for _, p := range extra {
		if p.First == a && p.Second == b {
			return true
		}
	}
	return false
}

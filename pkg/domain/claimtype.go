package domain

import "fmt"

type ClaimType string

const (
	ClaimCustodyTransfer                 ClaimType = "CustodyTransfer"
	ClaimCustodyAcceptance               ClaimType = "CustodyAcceptance"
	ClaimResourceContribution            ClaimType = "ResourceContribution"
	ClaimResourceValidation              ClaimType = "ResourceValidation"
	ClaimServiceCommitmentAccepted       ClaimType = "ServiceCommitmentAccepted"
	ClaimGoodFaithTransfer               ClaimType = "GoodFaithTransfer"
	ClaimServiceFulfillment              ClaimType = "ServiceFulfillment"
	ClaimMaintenanceFulfillmentCompleted ClaimType = "MaintenanceFulfillmentCompleted"
	ClaimStorageFulfillmentCompleted     ClaimType = "StorageFulfillmentCompleted"
	ClaimTransportFulfillmentCompleted   ClaimType = "TransportFulfillmentCompleted"
	ClaimValidationActivity              ClaimType = "ValidationActivity"
	ClaimRuleCompliance                  ClaimType = "RuleCompliance"
	ClaimDisputeResolutionParticipation  ClaimType = "DisputeResolutionParticipation"
	ClaimEndOfLifeDeclaration            ClaimType = "EndOfLifeDeclaration"
	ClaimEndOfLifeValidation             ClaimType = "EndOfLifeValidation"
)

var validClaimTypes = map[ClaimType]struct{}{
	ClaimCustodyTransfer:                 {},
	ClaimCustodyAcceptance:               {},
	ClaimResourceContribution:            {},
	ClaimResourceValidation:              {},
	ClaimServiceCommitmentAccepted:       {},
	ClaimGoodFaithTransfer:               {},
	ClaimServiceFulfillment:              {},
	ClaimMaintenanceFulfillmentCompleted: {},
	ClaimStorageFulfillmentCompleted:     {},
	ClaimTransportFulfillmentCompleted:   {},
	ClaimValidationActivity:              {},
	ClaimRuleCompliance:                  {},
	ClaimDisputeResolutionParticipation:  {},
	ClaimEndOfLifeDeclaration:            {},
	ClaimEndOfLifeValidation:             {},
}

// ParseClaimType rejects unknown claim-type strings instead of defaulting.
func ParseClaimType(s string) (ClaimType, error) {
	ct := ClaimType(s)
	if _, ok := validClaimTypes[ct]; !ok {
		return "", NewValidationError(fmt.Sprintf("unknown claim type %q", s), "use one of the fixed claim-type strings")
	}
	return ct, nil
}

// ClaimCategory buckets the taxonomy for reputation tallies.
type ClaimCategory string

const (
	CategoryCustody    ClaimCategory = "CUSTODY"
	CategoryGovernance ClaimCategory = "GOVERNANCE"
)

var claimCategories = map[ClaimType]ClaimCategory{
	ClaimCustodyTransfer:                 CategoryCustody,
	ClaimCustodyAcceptance:               CategoryCustody,
	ClaimResourceContribution:            CategoryCustody,
	ClaimGoodFaithTransfer:               CategoryCustody,
	ClaimServiceCommitmentAccepted:       CategoryCustody,
	ClaimServiceFulfillment:              CategoryCustody,
	ClaimMaintenanceFulfillmentCompleted: CategoryCustody,
	ClaimStorageFulfillmentCompleted:     CategoryCustody,
	ClaimTransportFulfillmentCompleted:   CategoryCustody,

	ClaimResourceValidation:             CategoryGovernance,
	ClaimValidationActivity:             CategoryGovernance,
	ClaimRuleCompliance:                 CategoryGovernance,
	ClaimDisputeResolutionParticipation: CategoryGovernance,
	ClaimEndOfLifeDeclaration:           CategoryGovernance,
	ClaimEndOfLifeValidation:            CategoryGovernance,
}

func (ct ClaimType) Category() ClaimCategory {
	if c, ok := claimCategories[ct]; ok {
		return c
	}
	return CategoryGovernance
}

// Package reputation folds an agent's own participation claims into a
// portable summary. It reads only the calling agent's store — there is no
// cross-agent read path for private claims — and never inspects signature
// state: an unsigned-but-valid claim counts.
package reputation

import (
	"context"
	"time"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// neutralScore is what an empty window reports for every component, so a
// new agent is neither perfect nor disqualified.
const neutralScore = 0.5

type Aggregator struct {
	claims claims.Store
}

func NewAggregator(store claims.Store) *Aggregator {
	return &Aggregator{claims: store}
}

// Derive computes the summary over [periodStart, periodEnd], optionally
// filtered to one claim type. Deterministic: identical arguments over an
// unchanged store yield bit-identical output.
func (a *Aggregator) Derive(ctx context.Context, agent domain.AgentID, periodStart, periodEnd time.Time, typeFilter domain.ClaimType) (domain.ReputationSummary, error) {
	if periodEnd.Before(periodStart) {
		return domain.ReputationSummary{}, domain.NewValidationError("period_end precedes period_start", "swap the window bounds")
	}
	if typeFilter != "" {
		if _, err := domain.ParseClaimType(string(typeFilter)); err != nil {
			return domain.ReputationSummary{}, err
		}
	}

	owned, err := a.claims.ListOwned(ctx, agent, claims.Filter{
		Type: typeFilter,
		From: periodStart,
		To:   periodEnd,
	})
	if err != nil {
		return domain.ReputationSummary{}, err
	}

	summary := domain.ReputationSummary{
		Agent:       agent,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		TotalClaims: len(owned),
	}
	if len(owned) == 0 {
		summary.AvgTimeliness = neutralScore
		summary.AvgQuality = neutralScore
		summary.AvgReliability = neutralScore
		summary.AvgCommunication = neutralScore
		summary.AvgOverallSatisfaction = neutralScore
		summary.AveragePerformance = neutralScore
		return summary, nil
	}

	var timeliness, quality, reliability, communication, satisfaction float64
	for _, c := range owned {
		timeliness += c.Metrics.Timeliness
		quality += c.Metrics.Quality
		reliability += c.Metrics.Reliability
		communication += c.Metrics.Communication
		satisfaction += c.Metrics.OverallSatisfaction

		switch c.ClaimType.Category() {
		case domain.CategoryCustody:
			summary.CustodyClaims++
		case domain.CategoryGovernance:
			summary.GovernanceClaims++
		}
	}
	n := float64(len(owned))
	summary.AvgTimeliness = timeliness / n
	summary.AvgQuality = quality / n
	summary.AvgReliability = reliability / n
	summary.AvgCommunication = communication / n
	summary.AvgOverallSatisfaction = satisfaction / n
	summary.AveragePerformance = (summary.AvgTimeliness + summary.AvgQuality +
		summary.AvgReliability + summary.AvgCommunication + summary.AvgOverallSatisfaction) / 5
	return summary, nil
}

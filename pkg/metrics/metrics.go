// Package metrics validates performance metric sets before they enter a
// participation claim. Pure functions, no state.
package metrics

import (
	"fmt"
	"math"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Validate checks that every score lies in [0.0, 1.0]. The first
// out-of-range field invalidates the whole set.
func Validate(m domain.PerformanceMetrics) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"timeliness", m.Timeliness},
		{"quality", m.Quality},
		{"reliability", m.Reliability},
		{"communication", m.Communication},
		{"overall_satisfaction", m.OverallSatisfaction},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0.0 || f.value > 1.0 {
			return domain.NewValidationError(
				fmt.Sprintf("metric %s out of range: %v", f.name, f.value),
				"scores must be within [0.0, 1.0]",
			)
		}
	}
	return nil
}

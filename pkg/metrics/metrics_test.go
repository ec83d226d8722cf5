package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

func allOnes() domain.PerformanceMetrics {
	return domain.PerformanceMetrics{
		Timeliness:          1.0,
		Quality:             1.0,
		Reliability:         1.0,
		Communication:       1.0,
		OverallSatisfaction: 1.0,
	}
}

func TestValidate_InRange(t *testing.T) {
	if err := Validate(allOnes()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate(domain.PerformanceMetrics{}); err != nil {
		t.Fatalf("Validate zero values: %v", err)
	}
	m := allOnes()
	m.Quality = 0.5
	if err := Validate(m); err != nil {
		t.Fatalf("Validate mid-range: %v", err)
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.PerformanceMetrics)
	}{
		{"timeliness", func(m *domain.PerformanceMetrics) { m.Timeliness = 1.5 }},
		{"quality", func(m *domain.PerformanceMetrics) { m.Quality = -0.1 }},
		{"reliability", func(m *domain.PerformanceMetrics) { m.Reliability = 2.0 }},
		{"communication", func(m *domain.PerformanceMetrics) { m.Communication = math.NaN() }},
		{"overall_satisfaction", func(m *domain.PerformanceMetrics) { m.OverallSatisfaction = 1.0001 }},
	}
	for _, tc := range cases {
		m := allOnes()
		tc.mutate(&m)
		err := Validate(m)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !domain.IsKind(err, domain.KindValidation) {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.name) {
			t.Fatalf("%s: error should name the field, got %q", tc.name, err.Error())
		}
	}
}

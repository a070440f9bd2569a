package incentive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/incentive-engine/incentive"
)

func TestGate_IsEligible(t *testing.T) {
	g := incentive.NewGate(incentive.NewResolver())

	tests := []struct {
		name   string
		fields incentive.Fields
		ref    string
		want   bool
	}{
		{"no eligibility field configured", incentive.Fields{}, "", true},
		{"explicit zero excludes", incentive.Fields{"elig": "0"}, "elig", false},
		{"zero with .0 artifact excludes", incentive.Fields{"elig": "0.0"}, "elig", false},
		{"nonzero includes", incentive.Fields{"elig": "100"}, "elig", true},
		{"missing column includes", incentive.Fields{}, "elig", true},
		{"nan includes", incentive.Fields{"elig": "nan"}, "elig", true},
		{"non-numeric includes", incentive.Fields{"elig": "Y"}, "elig", true},
		{"suffixed zero excludes", incentive.Fields{"elig_B": "0"}, "elig", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsEligible(rec("a", tt.fields), tt.ref))
		})
	}
}

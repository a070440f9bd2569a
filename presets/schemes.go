/*
schemes.go - Pre-built incentive scheme configurations

PURPOSE:
  Provides ready-to-use scheme definitions for the incentive shapes the
  field offices run every month. Used by the demo scenarios, the CLI
  examples and tests.

AVAILABLE SCHEMES:
  WeeklyLadder:
    - Single-period tier ladder on one weekly metric
    - Prize = achieved tier x rate / 100

  WeeklyLadderPassthrough:
    - Same ladder for progress display
    - Prize read from a pre-computed column, gated by an eligibility column

  BridgeConfirmed:
    - Tier earned on last month's metric
    - Paid once this month's metric reaches the forward requirement

  BridgeProjected:
    - Tier earned on this month's metric
    - Payout shown as projected: (tier + forward requirement) x rate / 100

  CumulativeConfirmed:
    - Monthly confirmed prize read from the settlement column

STANDARD LADDER:
  500,000 -> 300%
  300,000 -> 200%
  200,000 -> 200%
  100,000 -> 100%

EXAMPLE:
  schemes := []incentive.SchemeDefinition{
      presets.WeeklyLadder("w1", "1주차 구간 시책", "실적_1주차", presets.StandardLadder()),
      presets.CumulativeConfirmed("cum", "월간 누계", "누계실적", "확정시상금", "지급률"),
  }

SEE ALSO:
  - json.go: The same schemes as JSON documents
  - factory/scheme.go: JSON-based scheme creation
*/
package presets

import (
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/incentive"
)

// DefaultForwardRequirement is the forward requirement the field offices use.
var DefaultForwardRequirement = decimal.NewFromInt(100000)

// =============================================================================
// TIER LADDERS
// =============================================================================

// Ladder builds a tier schedule from (threshold, rate) pairs.
func Ladder(pairs ...[2]int64) []incentive.Tier {
	tiers := make([]incentive.Tier, 0, len(pairs))
	for _, p := range pairs {
		tiers = append(tiers, incentive.Tier{
			Threshold: decimal.NewFromInt(p[0]),
			Rate:      decimal.NewFromInt(p[1]),
		})
	}
	return incentive.SortTiers(tiers)
}

// StandardLadder is the default four-step ladder.
func StandardLadder() []incentive.Tier {
	return Ladder(
		[2]int64{500000, 300},
		[2]int64{300000, 200},
		[2]int64{200000, 200},
		[2]int64{100000, 100},
	)
}

// =============================================================================
// WEEKLY SCHEMES
// =============================================================================

// WeeklyLadder creates a rate-derived tiered scheme.
func WeeklyLadder(id, name, metricField string, tiers []incentive.Tier) incentive.SchemeDefinition {
	return incentive.SchemeDefinition{
		ID:           incentive.SchemeID(id),
		Name:         name,
		Category:     incentive.CategoryWeekly,
		Mode:         incentive.ModeTiered,
		Tiers:        tiers,
		MetricFields: []string{metricField},
	}
}

// WeeklyLadderPassthrough creates a tiered scheme whose prize comes from a
// pre-computed column.
func WeeklyLadderPassthrough(id, name, metricField string, tiers []incentive.Tier, prizeField, eligibilityField string) incentive.SchemeDefinition {
	s := WeeklyLadder(id, name, metricField, tiers)
	s.PrizeItems = []incentive.PrizeItem{{
		Label:            "시상금",
		EligibilityField: eligibilityField,
		AmountField:      prizeField,
	}}
	return s
}

// BridgeConfirmed creates a prior-period bridge scheme.
func BridgeConfirmed(id, name, priorField, currentField string, tiers []incentive.Tier, forward decimal.Decimal) incentive.SchemeDefinition {
	return incentive.SchemeDefinition{
		ID:                 incentive.SchemeID(id),
		Name:               name,
		Category:           incentive.CategoryWeekly,
		Mode:               incentive.ModeBridgeConfirmed,
		Tiers:              tiers,
		MetricFields:       []string{priorField, currentField},
		ForwardRequirement: &forward,
	}
}

// BridgeProjected creates a next-period bridge scheme.
func BridgeProjected(id, name, currentField string, tiers []incentive.Tier, forward decimal.Decimal) incentive.SchemeDefinition {
	return incentive.SchemeDefinition{
		ID:                 incentive.SchemeID(id),
		Name:               name,
		Category:           incentive.CategoryWeekly,
		Mode:               incentive.ModeBridgeProjected,
		Tiers:              tiers,
		MetricFields:       []string{currentField},
		ForwardRequirement: &forward,
	}
}

// =============================================================================
// CUMULATIVE SCHEMES
// =============================================================================

// CumulativeConfirmed creates a confirmed monthly prize scheme.
// eligibilityField may be empty.
func CumulativeConfirmed(id, name, metricField, prizeField, eligibilityField string) incentive.SchemeDefinition {
	return incentive.SchemeDefinition{
		ID:           incentive.SchemeID(id),
		Name:         name,
		Category:     incentive.CategoryCumulative,
		MetricFields: []string{metricField},
		PrizeItems: []incentive.PrizeItem{{
			Label:            name,
			EligibilityField: eligibilityField,
			AmountField:      prizeField,
		}},
	}
}

// MonthlySet is the standard month: weekly ladder, both bridges and the
// cumulative confirmation.
func MonthlySet() []incentive.SchemeDefinition {
	return []incentive.SchemeDefinition{
		WeeklyLadder("weekly-1", "1주차 구간 시책", "실적_1주차", StandardLadder()),
		BridgeConfirmed("bridge-1", "브릿지 시책 (1기간)", "전월실적", "당월실적", Ladder([2]int64{500000, 300}, [2]int64{300000, 200}), DefaultForwardRequirement),
		BridgeProjected("bridge-2", "브릿지 시책 (2기간)", "당월실적", Ladder([2]int64{500000, 300}, [2]int64{300000, 200}), DefaultForwardRequirement),
		CumulativeConfirmed("cumulative", "월간 확정 누계", "누계실적", "확정시상금", "지급률"),
	}
}

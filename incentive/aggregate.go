/*
aggregate.go - Totals and the grand-total rule

TOTALS:
  WeeklyTotal     = sum over weekly results (all three modes)
  CumulativeTotal = sum over cumulative results
  BridgeTotal     = sum over BridgeConfirmed + BridgeProjected results

GRAND TOTAL (TotalPolicy):
  ExcludeTiered (default):
    Grand = Cumulative + Bridge
    A tiered scheme's payout is already folded into the entity's reported
    cumulative figure, so adding it again would double count. Tiered
    results are still listed for progress and shortfall display.

  IncludeTiered:
    Grand = Cumulative + Weekly
    Older deployments summed every result; kept selectable.
*/
package incentive

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TotalPolicy selects how the grand total treats tiered results.
type TotalPolicy string

const (
	ExcludeTiered TotalPolicy = "exclude_tiered"
	IncludeTiered TotalPolicy = "include_tiered"
)

// ParseTotalPolicy maps a configuration string to a policy.
func ParseTotalPolicy(s string) (TotalPolicy, error) {
	switch TotalPolicy(s) {
	case "", ExcludeTiered:
		return ExcludeTiered, nil
	case IncludeTiered:
		return IncludeTiered, nil
	default:
		return "", fmt.Errorf("unknown total policy: %s", s)
	}
}

// Aggregate sums included results into an AggregateResult.
func Aggregate(results []EvaluationResult, policy TotalPolicy) AggregateResult {
	agg := AggregateResult{
		WeeklyTotal:     decimal.Zero,
		CumulativeTotal: decimal.Zero,
		BridgeTotal:     decimal.Zero,
		GrandTotal:      decimal.Zero,
	}

	for _, r := range results {
		if !r.Included {
			continue
		}
		agg.Results = append(agg.Results, r)

		switch r.Category {
		case CategoryWeekly:
			agg.WeeklyTotal = agg.WeeklyTotal.Add(r.PrizeAmount)
			if r.Mode.IsBridge() {
				agg.BridgeTotal = agg.BridgeTotal.Add(r.PrizeAmount)
			}
		case CategoryCumulative:
			agg.CumulativeTotal = agg.CumulativeTotal.Add(r.PrizeAmount)
		}
	}

	switch policy {
	case IncludeTiered:
		agg.GrandTotal = agg.CumulativeTotal.Add(agg.WeeklyTotal)
	default:
		agg.GrandTotal = agg.CumulativeTotal.Add(agg.BridgeTotal)
	}
	return agg
}

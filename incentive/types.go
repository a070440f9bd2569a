/*
Package incentive provides the tiered incentive (prize) calculation engine.

PURPOSE:
  Given one entity's performance record and a set of configured incentive
  schemes, the engine computes which tier each scheme achieved, the payout,
  the distance to the next tier, and a de-duplicated grand total. It is a
  pure, synchronous computation: no I/O, no shared mutable state.

KEY CONCEPTS IN THIS FILE (types.go):
  - SchemeDefinition: one configured incentive item (tiers, mode, fields)
  - Tier: a (threshold, rate) pair, rate expressed in percent
  - PrizeItem: a pre-computed payout column, optionally gated
  - Record: one entity's merged row of named fields (read-only)
  - EvaluationResult / AggregateResult: per-scheme and per-record output

SCHEME SHAPES:
  Rate-derived:  has Tiers, no PrizeItems. Prize = tier x rate / 100.
  Passthrough:   has PrizeItems. Prize = sum of eligible item amounts,
                 tier fields (if any) are informational.

COMPUTATION MODES (Category = weekly):
  ModeTiered:          single-period tier lookup
  ModeBridgeConfirmed: tier earned in prior period, unlocked by current
  ModeBridgeProjected: tier earned now, payout contingent on next period
  Category = cumulative has no mode: it reads a confirmed prize column.

PRECISION:
  All money and metric values use decimal.Decimal, never float64.

SEE ALSO:
  - resolver.go: Field lookup through alias suffixes
  - eligibility.go: Per-item eligibility gate
  - evaluator.go: Mode dispatch
  - aggregate.go: Totals and the grand-total rule
  - engine.go: Public entry points
*/
package incentive

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND TAGS
// =============================================================================

type SchemeID string

// Category separates weekly (period) schemes from cumulative confirmations.
type Category string

const (
	CategoryWeekly     Category = "weekly"
	CategoryCumulative Category = "cumulative"
)

// Mode selects the weekly computation. It is decided once when a scheme is
// loaded and never re-derived during evaluation.
type Mode string

const (
	ModeTiered          Mode = "tiered"
	ModeBridgeConfirmed Mode = "bridge_confirmed"
	ModeBridgeProjected Mode = "bridge_projected"
)

// IsBridge reports whether the mode links two periods.
func (m Mode) IsBridge() bool {
	return m == ModeBridgeConfirmed || m == ModeBridgeProjected
}

// =============================================================================
// SCHEME DEFINITION
// =============================================================================

// Tier is one step of a tier schedule. Rate is a percentage.
type Tier struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// PrizeItem reads a payout from an external, pre-computed column.
type PrizeItem struct {
	Label            string
	EligibilityField string // empty = always eligible
	AmountField      string
	SkipZero         bool // a zero amount leaves the item out
}

// SchemeDefinition is one configured incentive item.
// Treat it as immutable once loaded; SchemeSet hands out copies.
type SchemeDefinition struct {
	ID          SchemeID
	Name        string
	Description string
	Category    Category
	Mode        Mode // ignored for CategoryCumulative

	// Tiers are kept sorted descending by threshold (see SortTiers).
	Tiers []Tier

	// MetricFields holds one logical field name, or two for
	// ModeBridgeConfirmed: [prior period, current period].
	MetricFields []string

	// ForwardRequirement is the other-period minimum used by bridge modes.
	ForwardRequirement *decimal.Decimal

	PrizeItems []PrizeItem
}

// IsPassthrough reports whether the payout is read from prize columns.
func (s SchemeDefinition) IsPassthrough() bool {
	return len(s.PrizeItems) > 0
}

// EffectiveMode returns the mode used for dispatch.
func (s SchemeDefinition) EffectiveMode() Mode {
	if s.Category == CategoryCumulative {
		return ""
	}
	if s.Mode == "" {
		return ModeTiered
	}
	return s.Mode
}

// SortTiers returns a copy of tiers ordered by descending threshold.
func SortTiers(tiers []Tier) []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Threshold.GreaterThan(out[j].Threshold)
	})
	return out
}

func tiersSortedDesc(tiers []Tier) bool {
	for i := 1; i < len(tiers); i++ {
		if !tiers[i-1].Threshold.GreaterThan(tiers[i].Threshold) {
			return false
		}
	}
	return true
}

func (s SchemeDefinition) clone() SchemeDefinition {
	c := s
	c.Tiers = append([]Tier(nil), s.Tiers...)
	c.MetricFields = append([]string(nil), s.MetricFields...)
	c.PrizeItems = append([]PrizeItem(nil), s.PrizeItems...)
	if s.ForwardRequirement != nil {
		fr := *s.ForwardRequirement
		c.ForwardRequirement = &fr
	}
	return c
}

// =============================================================================
// PERFORMANCE RECORD
// =============================================================================

// Fields maps raw (possibly alias-suffixed) column names to values.
// Values are typically strings from file ingestion, but numbers, decimals
// and nil are accepted.
type Fields map[string]any

// Record is one entity's merged row. The engine never mutates it.
type Record struct {
	Key    string
	Fields Fields
}

// =============================================================================
// RESULTS
// =============================================================================

// TargetKind tells what Shortfall measures.
type TargetKind string

const (
	TargetNone     TargetKind = ""
	TargetNextTier TargetKind = "next_tier"
	TargetUnlock   TargetKind = "unlock"
)

// PrizeDetail is one eligible prize item that contributed to a result.
type PrizeDetail struct {
	Label  string
	Field  string
	Amount decimal.Decimal
}

// EvaluationResult is the outcome of one scheme against one record.
type EvaluationResult struct {
	SchemeID    SchemeID
	Name        string
	Description string
	Category    Category
	Mode        Mode

	// Metric is the single-period metric, or the current-period metric
	// for ModeBridgeConfirmed. PriorMetric is set only for that mode.
	Metric      decimal.Decimal
	PriorMetric *decimal.Decimal

	AchievedTier *decimal.Decimal
	AchievedRate *decimal.Decimal

	// NextTier is what Shortfall is measured against: the next threshold,
	// or the forward requirement when Target is TargetUnlock.
	NextTier  *decimal.Decimal
	Shortfall decimal.Decimal
	Target    TargetKind

	ForwardRequirement *decimal.Decimal
	Unlocked           bool // ModeBridgeConfirmed only
	Projected          bool // advisory payout (ModeBridgeProjected)

	PrizeAmount decimal.Decimal
	Prizes      []PrizeDetail
	Included    bool
}

// IsBridge reports whether the result came from a bridge mode.
func (r EvaluationResult) IsBridge() bool {
	return r.Category == CategoryWeekly && r.Mode.IsBridge()
}

// DroppedScheme records a scheme that could not be evaluated.
type DroppedScheme struct {
	SchemeID SchemeID
	Reason   string
}

// AggregateResult is the per-record summary handed to presentation.
type AggregateResult struct {
	RecordKey       string
	Results         []EvaluationResult
	WeeklyTotal     decimal.Decimal
	CumulativeTotal decimal.Decimal
	BridgeTotal     decimal.Decimal
	GrandTotal      decimal.Decimal
	Dropped         []DroppedScheme
	SchemeVersion   uint64
}

// Weekly returns the included weekly results in evaluation order.
func (a AggregateResult) Weekly() []EvaluationResult {
	return a.filter(func(r EvaluationResult) bool { return r.Category == CategoryWeekly })
}

// Cumulative returns the included cumulative results in evaluation order.
func (a AggregateResult) Cumulative() []EvaluationResult {
	return a.filter(func(r EvaluationResult) bool { return r.Category == CategoryCumulative })
}

func (a AggregateResult) filter(keep func(EvaluationResult) bool) []EvaluationResult {
	var out []EvaluationResult
	for _, r := range a.Results {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

var hundred = decimal.NewFromInt(100)

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

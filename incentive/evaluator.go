/*
evaluator.go - Per-scheme evaluation (mode dispatch)

PURPOSE:
  Turns one SchemeDefinition plus one Record into one EvaluationResult.
  Dispatch is on the closed Mode enum; nothing is re-parsed here.

MODES:
  Tiered (weekly):
    achieved = highest threshold <= M, next = smallest threshold > M
    shortfall = next - M (0 when already at the top)
    prize = tier x rate / 100, or the eligible prize items (passthrough)

  BridgeConfirmed (weekly, two metrics: prior, current):
    achieved = highest threshold <= prior
    unlocked = current >= forwardRequirement
    prize = (tier + forwardRequirement) x rate / 100 when unlocked, else 0
    shortfall = max(0, forwardRequirement - current), target = unlock

  BridgeProjected (weekly, one metric):
    tier/next/shortfall as Tiered
    prize = (tier + forwardRequirement) x rate / 100, flagged Projected

  Cumulative:
    metric informational; prize = eligible confirmed prize items

SUPPRESSION:
  A passthrough scheme whose prize items are all ineligible returns
  (nil, nil): no result at all for this record.

EDGE CASES:
  - Metric exactly at a threshold counts as achieved (>=)
  - Missing metric reads as 0 (fail-soft), giving no tier and
    shortfall = lowest threshold
*/
package incentive

import (
	"github.com/shopspring/decimal"
)

// Evaluator evaluates single schemes. Stateless and safe for concurrent use.
type Evaluator struct {
	resolver *Resolver
	gate     *Gate
}

// NewEvaluator creates an evaluator on top of a resolver.
func NewEvaluator(r *Resolver) *Evaluator {
	return &Evaluator{resolver: r, gate: NewGate(r)}
}

// Evaluate computes one scheme for one record.
// Returns (nil, nil) when the scheme is suppressed for this record and a
// *MalformedSchemeError when the scheme cannot be evaluated.
func (e *Evaluator) Evaluate(rec Record, s SchemeDefinition) (*EvaluationResult, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	tiers := s.Tiers
	if !tiersSortedDesc(tiers) {
		tiers = SortTiers(tiers)
	}

	res := &EvaluationResult{
		SchemeID:           s.ID,
		Name:               s.Name,
		Description:        s.Description,
		Category:           s.Category,
		Mode:               s.EffectiveMode(),
		ForwardRequirement: s.ForwardRequirement,
		Included:           true,
	}

	var prizes []PrizeDetail
	passthroughTotal := decimal.Zero
	if s.IsPassthrough() {
		prizes, passthroughTotal = e.gate.eligiblePrizes(rec, s.PrizeItems)
		if len(prizes) == 0 {
			return nil, nil
		}
	}

	switch res.Mode {
	case "":
		e.evaluateCumulative(rec, s, res)
	case ModeTiered:
		e.evaluateTiered(rec, s, tiers, res)
	case ModeBridgeConfirmed:
		e.evaluateBridgeConfirmed(rec, s, tiers, res)
	case ModeBridgeProjected:
		e.evaluateBridgeProjected(rec, s, tiers, res)
	default:
		return nil, malformed(s.ID, "unknown mode %q", res.Mode)
	}

	if s.IsPassthrough() {
		res.Prizes = prizes
		res.PrizeAmount = passthroughTotal
	}
	return res, nil
}

// =============================================================================
// MODES
// =============================================================================

func (e *Evaluator) evaluateCumulative(rec Record, s SchemeDefinition, res *EvaluationResult) {
	if len(s.MetricFields) > 0 {
		res.Metric = e.resolver.ResolveNumeric(rec, s.MetricFields[0])
	}
}

func (e *Evaluator) evaluateTiered(rec Record, s SchemeDefinition, tiers []Tier, res *EvaluationResult) {
	m := e.resolver.ResolveNumeric(rec, s.MetricFields[0])
	res.Metric = m
	applyLadder(tiers, m, res)

	if res.AchievedTier != nil {
		res.PrizeAmount = res.AchievedTier.Mul(*res.AchievedRate).Div(hundred)
	}
}

func (e *Evaluator) evaluateBridgeConfirmed(rec Record, s SchemeDefinition, tiers []Tier, res *EvaluationResult) {
	prev := e.resolver.ResolveNumeric(rec, s.MetricFields[0])
	curr := e.resolver.ResolveNumeric(rec, s.MetricFields[1])
	fwd := *s.ForwardRequirement

	res.PriorMetric = decPtr(prev)
	res.Metric = curr

	if t, ok := achieved(tiers, prev); ok {
		res.AchievedTier = decPtr(t.Threshold)
		res.AchievedRate = decPtr(t.Rate)
	}

	res.Unlocked = curr.GreaterThanOrEqual(fwd)
	if res.Unlocked {
		if res.AchievedTier != nil {
			res.PrizeAmount = res.AchievedTier.Add(fwd).Mul(*res.AchievedRate).Div(hundred)
		}
		return
	}

	res.Shortfall = fwd.Sub(curr)
	res.NextTier = decPtr(fwd)
	res.Target = TargetUnlock
}

func (e *Evaluator) evaluateBridgeProjected(rec Record, s SchemeDefinition, tiers []Tier, res *EvaluationResult) {
	m := e.resolver.ResolveNumeric(rec, s.MetricFields[0])
	res.Metric = m
	res.Projected = true
	applyLadder(tiers, m, res)

	if res.AchievedTier != nil {
		res.PrizeAmount = res.AchievedTier.Add(*s.ForwardRequirement).Mul(*res.AchievedRate).Div(hundred)
	}
}

// =============================================================================
// TIER LADDER
// =============================================================================

// applyLadder fills achieved tier, next tier and shortfall for metric m.
// tiers must be sorted descending.
func applyLadder(tiers []Tier, m decimal.Decimal, res *EvaluationResult) {
	if t, ok := achieved(tiers, m); ok {
		res.AchievedTier = decPtr(t.Threshold)
		res.AchievedRate = decPtr(t.Rate)
	}
	if next, ok := nextAbove(tiers, m); ok {
		res.NextTier = decPtr(next)
		res.Shortfall = next.Sub(m)
		res.Target = TargetNextTier
	}
}

// achieved returns the highest tier whose threshold is <= m.
func achieved(tiers []Tier, m decimal.Decimal) (Tier, bool) {
	for _, t := range tiers {
		if m.GreaterThanOrEqual(t.Threshold) {
			return t, true
		}
	}
	return Tier{}, false
}

// nextAbove returns the smallest threshold strictly greater than m.
func nextAbove(tiers []Tier, m decimal.Decimal) (decimal.Decimal, bool) {
	var next decimal.Decimal
	found := false
	for _, t := range tiers {
		if t.Threshold.GreaterThan(m) {
			next = t.Threshold
			found = true
			continue
		}
		break
	}
	return next, found
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks that a scheme can be evaluated. The returned error is a
// *MalformedSchemeError.
func Validate(s SchemeDefinition) error {
	switch s.Category {
	case CategoryWeekly, CategoryCumulative:
	default:
		return malformed(s.ID, "unknown category %q", s.Category)
	}

	if s.Category == CategoryCumulative {
		if !s.IsPassthrough() {
			return malformed(s.ID, "cumulative scheme needs at least one prize item")
		}
		return validatePrizeItems(s)
	}

	mode := s.EffectiveMode()
	switch mode {
	case ModeTiered, ModeBridgeProjected:
		if len(s.MetricFields) != 1 || s.MetricFields[0] == "" {
			return malformed(s.ID, "%s needs exactly one metric field", mode)
		}
	case ModeBridgeConfirmed:
		if len(s.MetricFields) != 2 || s.MetricFields[0] == "" || s.MetricFields[1] == "" {
			return malformed(s.ID, "%s needs prior and current metric fields", mode)
		}
	default:
		return malformed(s.ID, "unknown mode %q", mode)
	}

	if mode.IsBridge() {
		if s.ForwardRequirement == nil {
			return malformed(s.ID, "%s needs a forward requirement", mode)
		}
		if s.ForwardRequirement.IsNegative() {
			return malformed(s.ID, "forward requirement must not be negative")
		}
	}

	if !s.IsPassthrough() && len(s.Tiers) == 0 {
		return malformed(s.ID, "rate-derived scheme needs a tier schedule")
	}

	seen := make(map[string]bool, len(s.Tiers))
	for _, t := range s.Tiers {
		key := t.Threshold.String()
		if seen[key] {
			return malformed(s.ID, "duplicate tier threshold %s", key)
		}
		seen[key] = true
		if t.Threshold.IsNegative() || t.Rate.IsNegative() {
			return malformed(s.ID, "tier %s has a negative threshold or rate", key)
		}
	}

	return validatePrizeItems(s)
}

func validatePrizeItems(s SchemeDefinition) error {
	for i, item := range s.PrizeItems {
		if item.AmountField == "" {
			return malformed(s.ID, "prize item %d has no amount field", i)
		}
	}
	return nil
}

package incentive

import (
	"github.com/shopspring/decimal"
)

// Gate decides whether a single prize item participates at all.
//
// Exclusion is hard: an excluded item contributes nothing and is not
// listed. Only an explicit numeric zero excludes; absent or non-numeric
// eligibility values keep the item in.
type Gate struct {
	resolver *Resolver
}

// NewGate creates a gate reading through the given resolver.
func NewGate(r *Resolver) *Gate {
	return &Gate{resolver: r}
}

// IsEligible reports whether the item gated by eligibilityField is included.
func (g *Gate) IsEligible(rec Record, eligibilityField string) bool {
	if eligibilityField == "" {
		return true
	}
	v, err := g.resolver.ParseNumeric(rec, eligibilityField)
	if err != nil {
		return true
	}
	return !v.IsZero()
}

// eligiblePrizes returns the eligible items with their amounts, and the sum.
func (g *Gate) eligiblePrizes(rec Record, items []PrizeItem) ([]PrizeDetail, decimal.Decimal) {
	total := decimal.Zero
	var details []PrizeDetail
	for _, item := range items {
		// Unknown amount column: configuration points at a column this
		// record set never had.
		if !g.resolver.HasField(rec, item.AmountField) {
			continue
		}
		if !g.IsEligible(rec, item.EligibilityField) {
			continue
		}
		amount := g.resolver.ResolveNumeric(rec, item.AmountField)
		if item.SkipZero && amount.IsZero() {
			continue
		}
		label := item.Label
		if label == "" {
			label = item.AmountField
		}
		details = append(details, PrizeDetail{Label: label, Field: item.AmountField, Amount: amount})
		total = total.Add(amount)
	}
	return details, total
}

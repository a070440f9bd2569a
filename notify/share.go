/*
Package notify formats evaluation results as plain text for messengers.

PURPOSE:
  Managers paste a short prize summary into a chat message for each
  agent. The text lists the grand total, its cumulative/bridge breakdown,
  every payout, and how far the agent is from the next tier or from the
  bridge unlock. Amounts use locale-aware digit grouping; tier targets
  are shown in 만 (10,000) units.

OUTPUT (default labels):
  💰 예상 시상금 현황
    총 시상금: 3,050,000원
    (누계 450,000 + 브릿지 2,600,000)
    1주차 구간 시책: 600,000원 (누계포함)
      다음 50만 구간까지 150,000원
    브릿지 시책 (1기간): 0원
      당월 필수 목표까지 20,000원 부족
    브릿지 시책 (2기간): 800,000원 (다음 달 10만 가동 조건)
    월간 확정 누계: 450,000원

  A bridge line with a zero payout is still shown while there is a
  shortfall, so the agent sees what is missing.

PERFORMANCE MESSAGE:
  PerformanceText lists chosen performance columns and, optionally, the
  prize figures from PrizeEntries under a second heading.
*/
package notify

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/incentive"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var manUnit = decimal.NewFromInt(10000)

// Labels holds the user-facing strings.
type Labels struct {
	Title         string
	Total         string
	Cumulative    string
	Bridge        string
	IncludedNote  string
	NextTier      string // "다음 %s만 구간까지 %s%s"
	Unlock        string // "당월 필수 목표까지 %s%s 부족"
	ProjectedNote string // "(다음 달 %s만 가동 조건)"
	Greeting      string // empty to disable
	Footer        string

	// PerformanceText
	PerformanceTitle string // "📊 %s님 실적 & 시상 현황"
	PerformanceHead  string
	PrizeHead        string
}

// KoreanLabels are the defaults.
var KoreanLabels = Labels{
	Title:         "💰 예상 시상금 현황",
	Total:         "총 시상금",
	Cumulative:    "누계",
	Bridge:        "브릿지",
	IncludedNote:  "(누계포함)",
	NextTier:      "다음 %s만 구간까지 %s%s",
	Unlock:        "당월 필수 목표까지 %s%s 부족",
	ProjectedNote: "(다음 달 %s만 가동 조건)",
	Greeting:      "[%s님 시상 안내]",

	PerformanceTitle: "📊 %s님 실적 & 시상 현황",
	PerformanceHead:  "📈 실적 현황",
	PrizeHead:        "🏆 시상 현황",
}

// Options configures ShareText.
type Options struct {
	Language language.Tag
	Currency string
	Labels   Labels
}

// DefaultOptions renders Korean text with the 원 suffix.
func DefaultOptions() Options {
	return Options{Language: language.Korean, Currency: "원", Labels: KoreanLabels}
}

// ShareText renders an aggregate as a plain-text message. name may be empty.
func ShareText(name string, agg incentive.AggregateResult, opts Options) string {
	if len(agg.Results) == 0 {
		return ""
	}
	if opts.Labels.Title == "" {
		opts.Labels = KoreanLabels
	}
	p := message.NewPrinter(opts.Language)
	l := opts.Labels
	amt := func(d decimal.Decimal) string { return p.Sprintf("%d", d.Round(0).IntPart()) }
	man := func(d decimal.Decimal) string { return p.Sprintf("%d", d.Div(manUnit).IntPart()) }

	var lines []string
	if name != "" && l.Greeting != "" {
		lines = append(lines, p.Sprintf(l.Greeting, name))
	}
	lines = append(lines, l.Title)
	lines = append(lines, "  "+l.Total+": "+amt(agg.GrandTotal)+opts.Currency)

	var parts []string
	if agg.CumulativeTotal.IsPositive() {
		parts = append(parts, l.Cumulative+" "+amt(agg.CumulativeTotal))
	}
	if agg.BridgeTotal.IsPositive() {
		parts = append(parts, l.Bridge+" "+amt(agg.BridgeTotal))
	}
	if len(parts) > 0 {
		lines = append(lines, "  ("+strings.Join(parts, " + ")+")")
	}

	for _, r := range agg.Weekly() {
		if r.IsBridge() {
			continue
		}
		if r.PrizeAmount.IsPositive() {
			lines = append(lines, "  "+r.Name+": "+amt(r.PrizeAmount)+opts.Currency+" "+l.IncludedNote)
		}
		if r.Target == incentive.TargetNextTier && r.Shortfall.IsPositive() {
			lines = append(lines, "    "+p.Sprintf(l.NextTier, man(*r.NextTier), amt(r.Shortfall), opts.Currency))
		}
	}

	for _, r := range agg.Weekly() {
		if !r.IsBridge() {
			continue
		}
		locked := r.Target == incentive.TargetUnlock && r.Shortfall.IsPositive()
		if r.PrizeAmount.IsPositive() || r.Shortfall.IsPositive() {
			line := "  " + r.Name + ": " + amt(r.PrizeAmount) + opts.Currency
			if r.Projected && r.ForwardRequirement != nil {
				line += " " + p.Sprintf(l.ProjectedNote, man(*r.ForwardRequirement))
			}
			lines = append(lines, line)
		}
		switch {
		case locked:
			lines = append(lines, "    "+p.Sprintf(l.Unlock, amt(r.Shortfall), opts.Currency))
		case r.Target == incentive.TargetNextTier && r.Shortfall.IsPositive():
			lines = append(lines, "    "+p.Sprintf(l.NextTier, man(*r.NextTier), amt(r.Shortfall), opts.Currency))
		}
	}

	for _, r := range agg.Cumulative() {
		if r.PrizeAmount.IsPositive() {
			lines = append(lines, "  "+r.Name+": "+amt(r.PrizeAmount)+opts.Currency)
		}
	}

	if l.Footer != "" {
		lines = append(lines, "", l.Footer)
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// PERFORMANCE MESSAGE
// =============================================================================

// Entry is one labeled figure. Numeric values are grouped when rendered.
type Entry struct {
	Label string
	Value string
}

const rule = "────────────────────"

// PerformanceText renders performance figures followed by an optional
// prize section. Numeric prize values get the currency suffix.
func PerformanceText(name string, perf, prizes []Entry, opts Options) string {
	if opts.Labels.Title == "" {
		opts.Labels = KoreanLabels
	}
	p := message.NewPrinter(opts.Language)
	l := opts.Labels

	lines := []string{p.Sprintf(l.PerformanceTitle, name), rule, "", l.PerformanceHead}
	for _, e := range perf {
		v, _ := formatValue(p, e.Value)
		lines = append(lines, "  ▪ "+e.Label+": "+v)
	}

	if len(prizes) > 0 {
		lines = append(lines, "", l.PrizeHead)
		for _, e := range prizes {
			v, numeric := formatValue(p, e.Value)
			if numeric {
				v += opts.Currency
			}
			lines = append(lines, "  ▪ "+e.Label+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

// PrizeEntries lists the grand total and every paying scheme of agg.
func PrizeEntries(agg incentive.AggregateResult, opts Options) []Entry {
	if len(agg.Results) == 0 {
		return nil
	}
	if opts.Labels.Title == "" {
		opts.Labels = KoreanLabels
	}
	out := []Entry{{Label: opts.Labels.Total, Value: agg.GrandTotal.String()}}
	for _, r := range agg.Results {
		if r.PrizeAmount.IsPositive() {
			out = append(out, Entry{Label: r.Name, Value: r.PrizeAmount.String()})
		}
	}
	return out
}

func formatValue(p *message.Printer, s string) (string, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return s, false
	}
	return p.Sprintf("%d", d.Round(0).IntPart()), true
}

/*
Package factory provides JSON/YAML to Go scheme conversion.

PURPOSE:
  Converts scheme documents into incentive.SchemeDefinition values. This is
  where the computation mode is decided, once, at load time: evaluation never
  looks at the free-text type again.

JSON SCHEMA:
  {
    "id": "weekly-1",
    "name": "1주차 구간 시책",
    "description": "3/1 ~ 3/7",
    "category": "weekly",
    "mode": "tiered",
    "tiers": [{"threshold": 500000, "rate": 300}, {"threshold": 300000, "rate": 200}],
    "metric_fields": ["실적_1주차"],
    "forward_requirement": 100000,
    "prize_items": [
      {"label": "시상금", "eligibility_field": "지급률", "amount_field": "예정시상금"}
    ]
  }

LEGACY DOCUMENTS:
  Configuration exported from the older tool is accepted as-is:
    - "type" free text: contains "1기간" -> bridge_confirmed,
      "2기간" -> bridge_projected, anything else -> tiered
    - "desc", "col_val", "col_val_prev", "col_val_curr", "curr_req"
    - tiers as [threshold, rate] pairs
    - prize_items with "col_eligible"/"col_prize", or a single "col_prize"
  Explicit fields win over legacy ones.

DEFAULTS:
  - mode: tiered
  - forward_requirement for bridge modes: 100000 (configurable)
  - id: derived from the name when absent

USAGE:
  f := factory.NewSchemeFactory()
  scheme, err := f.ParseScheme(jsonString)
  schemes, err := f.LoadFile("schemes.yaml")

SEE ALSO:
  - incentive/types.go: SchemeDefinition
  - presets/: ready-made scheme documents
  - watcher.go: hot reload of a schemes file
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/incentive"
	"gopkg.in/yaml.v3"
)

// DefaultForwardRequirement is used by bridge schemes that do not set one.
var DefaultForwardRequirement = decimal.NewFromInt(100000)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the wire representation of a scheme.
type SchemeJSON struct {
	ID                 string           `json:"id,omitempty" validate:"omitempty,max=128"`
	Name               string           `json:"name" validate:"required"`
	Description        string           `json:"description,omitempty"`
	Category           string           `json:"category,omitempty" validate:"omitempty,oneof=weekly cumulative"`
	Mode               string           `json:"mode,omitempty" validate:"omitempty,oneof=tiered bridge_confirmed bridge_projected"`
	Tiers              []TierJSON       `json:"tiers,omitempty" validate:"dive"`
	MetricFields       []string         `json:"metric_fields,omitempty" validate:"max=2,dive,required"`
	ForwardRequirement *decimal.Decimal `json:"forward_requirement,omitempty"`
	PrizeItems         []PrizeItemJSON  `json:"prize_items,omitempty" validate:"dive"`

	// Legacy keys.
	Type           string           `json:"type,omitempty"`
	Desc           string           `json:"desc,omitempty"`
	ColVal         string           `json:"col_val,omitempty"`
	ColValPrev     string           `json:"col_val_prev,omitempty"`
	ColValCurr     string           `json:"col_val_curr,omitempty"`
	CurrReq        *decimal.Decimal `json:"curr_req,omitempty"`
	LegacyPrizeCol string           `json:"col_prize,omitempty"`
}

// TierJSON is one tier. Accepts {"threshold": t, "rate": r} or [t, r].
type TierJSON struct {
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

// PrizeItemJSON is one pre-computed prize column.
type PrizeItemJSON struct {
	Label            string `json:"label,omitempty"`
	EligibilityField string `json:"eligibility_field,omitempty"`
	AmountField      string `json:"amount_field,omitempty"`
	SkipZero         bool   `json:"skip_zero,omitempty"`

	// Legacy keys.
	ColEligible string `json:"col_eligible,omitempty"`
	ColPrize    string `json:"col_prize,omitempty"`
}

// UnmarshalJSON accepts both the object and the pair form.
func (t *TierJSON) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []decimal.Decimal
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("invalid tier pair: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("tier pair needs 2 values, got %d", len(pair))
		}
		t.Threshold, t.Rate = pair[0], pair[1]
		return nil
	}
	type plain TierJSON
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TierJSON(p)
	return nil
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// SchemeFactory converts scheme documents to SchemeDefinitions.
type SchemeFactory struct {
	forwardRequirement decimal.Decimal
	validate           *validator.Validate
}

// FactoryOption configures a SchemeFactory.
type FactoryOption func(*SchemeFactory)

// WithDefaultForwardRequirement overrides the bridge-mode default.
func WithDefaultForwardRequirement(d decimal.Decimal) FactoryOption {
	return func(f *SchemeFactory) { f.forwardRequirement = d }
}

// NewSchemeFactory creates a new scheme factory.
func NewSchemeFactory(opts ...FactoryOption) *SchemeFactory {
	f := &SchemeFactory{
		forwardRequirement: DefaultForwardRequirement,
		validate:           validator.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ParseScheme parses one JSON scheme document.
func (f *SchemeFactory) ParseScheme(jsonStr string) (incentive.SchemeDefinition, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return incentive.SchemeDefinition{}, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// ParseSchemes parses a JSON array of schemes.
func (f *SchemeFactory) ParseSchemes(data []byte) ([]incentive.SchemeDefinition, error) {
	var docs []SchemeJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse schemes JSON: %w", err)
	}
	return f.fromDocs(docs)
}

// ParseSchemesYAML parses a YAML list of schemes. The YAML is normalized
// through JSON so both formats share one set of decoding rules.
func (f *SchemeFactory) ParseSchemesYAML(data []byte) ([]incentive.SchemeDefinition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schemes YAML: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	if m, ok := raw.(map[string]any); ok {
		if list, ok := m["schemes"]; ok {
			raw = list
		}
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize schemes YAML: %w", err)
	}
	return f.ParseSchemes(asJSON)
}

// LoadFile reads a .json, .yaml or .yml schemes file.
func (f *SchemeFactory) LoadFile(path string) ([]incentive.SchemeDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schemes file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseSchemesYAML(data)
	case ".json":
		return f.ParseSchemes(data)
	default:
		return nil, fmt.Errorf("unsupported schemes file extension: %s", filepath.Ext(path))
	}
}

func (f *SchemeFactory) fromDocs(docs []SchemeJSON) ([]incentive.SchemeDefinition, error) {
	out := make([]incentive.SchemeDefinition, 0, len(docs))
	seen := make(map[incentive.SchemeID]bool, len(docs))
	for i, sj := range docs {
		s, err := f.FromJSON(sj)
		if err != nil {
			return nil, fmt.Errorf("scheme %d: %w", i, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("scheme %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out, nil
}

// FromJSON converts SchemeJSON to a validated SchemeDefinition.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (incentive.SchemeDefinition, error) {
	if err := f.validate.Struct(sj); err != nil {
		return incentive.SchemeDefinition{}, fmt.Errorf("invalid scheme document: %w", err)
	}

	s := incentive.SchemeDefinition{
		ID:          incentive.SchemeID(sj.ID),
		Name:        sj.Name,
		Description: firstNonEmpty(sj.Description, sj.Desc),
		Category:    parseCategory(sj.Category),
		PrizeItems:  parsePrizeItems(sj),
	}
	if s.ID == "" {
		s.ID = deriveID(sj.Name)
	}
	if s.Category == incentive.CategoryWeekly {
		s.Mode = parseMode(sj.Mode, sj.Type)
	}

	for _, t := range sj.Tiers {
		s.Tiers = append(s.Tiers, incentive.Tier{Threshold: t.Threshold, Rate: t.Rate})
	}
	s.Tiers = incentive.SortTiers(s.Tiers)

	s.MetricFields = metricFields(sj, s.EffectiveMode())

	if s.EffectiveMode().IsBridge() {
		fwd := f.forwardRequirement
		switch {
		case sj.ForwardRequirement != nil:
			fwd = *sj.ForwardRequirement
		case sj.CurrReq != nil:
			fwd = *sj.CurrReq
		}
		s.ForwardRequirement = &fwd
	}

	if err := incentive.Validate(s); err != nil {
		return incentive.SchemeDefinition{}, err
	}
	return s, nil
}

// ToJSON converts a SchemeDefinition to its canonical wire form.
func (f *SchemeFactory) ToJSON(s incentive.SchemeDefinition) SchemeJSON {
	sj := SchemeJSON{
		ID:                 string(s.ID),
		Name:               s.Name,
		Description:        s.Description,
		Category:           string(s.Category),
		MetricFields:       append([]string(nil), s.MetricFields...),
		ForwardRequirement: s.ForwardRequirement,
	}
	if s.Category == incentive.CategoryWeekly {
		sj.Mode = string(s.EffectiveMode())
	}
	for _, t := range s.Tiers {
		sj.Tiers = append(sj.Tiers, TierJSON{Threshold: t.Threshold, Rate: t.Rate})
	}
	for _, p := range s.PrizeItems {
		sj.PrizeItems = append(sj.PrizeItems, PrizeItemJSON{
			Label:            p.Label,
			EligibilityField: p.EligibilityField,
			AmountField:      p.AmountField,
			SkipZero:         p.SkipZero,
		})
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCategory(s string) incentive.Category {
	switch s {
	case "cumulative":
		return incentive.CategoryCumulative
	default:
		return incentive.CategoryWeekly
	}
}

// parseMode decides the computation mode. An explicit mode wins; otherwise
// the legacy free-text type is inspected.
func parseMode(mode, legacyType string) incentive.Mode {
	if mode != "" {
		return incentive.Mode(mode)
	}
	switch {
	case strings.Contains(legacyType, "1기간"):
		return incentive.ModeBridgeConfirmed
	case strings.Contains(legacyType, "2기간"):
		return incentive.ModeBridgeProjected
	default:
		return incentive.ModeTiered
	}
}

func metricFields(sj SchemeJSON, mode incentive.Mode) []string {
	if len(sj.MetricFields) > 0 {
		return append([]string(nil), sj.MetricFields...)
	}
	switch mode {
	case incentive.ModeBridgeConfirmed:
		return []string{sj.ColValPrev, sj.ColValCurr}
	case incentive.ModeBridgeProjected:
		return []string{sj.ColValCurr}
	default:
		if sj.ColVal == "" {
			return nil
		}
		return []string{sj.ColVal}
	}
}

func parsePrizeItems(sj SchemeJSON) []incentive.PrizeItem {
	var items []incentive.PrizeItem
	for _, p := range sj.PrizeItems {
		amount := firstNonEmpty(p.AmountField, p.ColPrize)
		if amount == "" {
			// Blank rows are left over from the editor.
			continue
		}
		items = append(items, incentive.PrizeItem{
			Label:            p.Label,
			EligibilityField: firstNonEmpty(p.EligibilityField, p.ColEligible),
			AmountField:      amount,
			SkipZero:         p.SkipZero,
		})
	}
	if len(items) == 0 && sj.LegacyPrizeCol != "" {
		items = append(items, incentive.PrizeItem{Label: "시상금", AmountField: sj.LegacyPrizeCol, SkipZero: true})
	}
	return items
}

func deriveID(name string) incentive.SchemeID {
	return incentive.SchemeID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/presets"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// MODERN DOCUMENTS
// =============================================================================

func TestParseScheme_Tiered(t *testing.T) {
	f := factory.NewSchemeFactory()

	s, err := f.ParseScheme(`{
		"id": "weekly-1",
		"name": "1주차",
		"category": "weekly",
		"mode": "tiered",
		"tiers": [{"threshold": 100000, "rate": 100}, {"threshold": 500000, "rate": 300}],
		"metric_fields": ["실적"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, incentive.SchemeID("weekly-1"), s.ID)
	assert.Equal(t, incentive.ModeTiered, s.Mode)
	require.Len(t, s.Tiers, 2)
	assert.True(t, s.Tiers[0].Threshold.Equal(d("500000")), "tiers sorted descending")
	assert.Nil(t, s.ForwardRequirement)
}

func TestParseScheme_BridgeGetsDefaultForwardRequirement(t *testing.T) {
	f := factory.NewSchemeFactory()

	s, err := f.ParseScheme(`{
		"id": "b2", "name": "bridge", "mode": "bridge_projected",
		"tiers": [{"threshold": 300000, "rate": 200}],
		"metric_fields": ["당월실적"]
	}`)
	require.NoError(t, err)
	require.NotNil(t, s.ForwardRequirement)
	assert.True(t, s.ForwardRequirement.Equal(d("100000")))

	f = factory.NewSchemeFactory(factory.WithDefaultForwardRequirement(d("50000")))
	s, err = f.ParseScheme(`{"id": "b2", "name": "bridge", "mode": "bridge_projected",
		"tiers": [{"threshold": 300000, "rate": 200}], "metric_fields": ["당월실적"]}`)
	require.NoError(t, err)
	assert.True(t, s.ForwardRequirement.Equal(d("50000")))
}

func TestParseScheme_Rejections(t *testing.T) {
	f := factory.NewSchemeFactory()

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing name", `{"id": "x", "tiers": [[1, 1]], "metric_fields": ["m"]}`},
		{"unknown mode", `{"name": "x", "mode": "stepped", "tiers": [[1, 1]], "metric_fields": ["m"]}`},
		{"unknown category", `{"name": "x", "category": "monthly"}`},
		{"duplicate threshold", `{"name": "x", "tiers": [[1, 1], [1, 2]], "metric_fields": ["m"]}`},
		{"bad tier pair", `{"name": "x", "tiers": [[1, 2, 3]], "metric_fields": ["m"]}`},
		{"cumulative without prize", `{"name": "x", "category": "cumulative"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseScheme(tt.doc)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// LEGACY DOCUMENTS
// =============================================================================

func TestParseScheme_LegacyTypeText(t *testing.T) {
	f := factory.NewSchemeFactory()

	tests := []struct {
		legacyType string
		want       incentive.Mode
		fields     []string
	}{
		{"구간 시책", incentive.ModeTiered, []string{"실적"}},
		{"브릿지 시책 (1기간: 시상 확정)", incentive.ModeBridgeConfirmed, []string{"전월", "당월"}},
		{"브릿지 시책 (2기간: 차월 달성 조건)", incentive.ModeBridgeProjected, []string{"당월"}},
	}

	for _, tt := range tests {
		t.Run(tt.legacyType, func(t *testing.T) {
			s, err := f.ParseScheme(`{
				"name": "legacy", "desc": "설명", "category": "weekly",
				"type": "` + tt.legacyType + `",
				"col_val": "실적", "col_val_prev": "전월", "col_val_curr": "당월",
				"curr_req": 120000,
				"tiers": [[500000, 300], [300000, 200]],
				"prize_items": [{"label": "시상금", "col_eligible": "", "col_prize": "예정시상금"}]
			}`)
			require.NoError(t, err)

			assert.Equal(t, tt.want, s.Mode)
			assert.Equal(t, tt.fields, s.MetricFields)
			assert.Equal(t, "설명", s.Description)
			assert.NotEmpty(t, s.ID, "id derived from name")
			require.Len(t, s.PrizeItems, 1)
			assert.Equal(t, "예정시상금", s.PrizeItems[0].AmountField)
			if tt.want.IsBridge() {
				assert.True(t, s.ForwardRequirement.Equal(d("120000")))
			}
		})
	}
}

func TestParseScheme_LegacySinglePrizeColumn(t *testing.T) {
	s, err := factory.NewSchemeFactory().ParseScheme(`{
		"name": "누계", "category": "cumulative", "col_val": "누계실적", "col_prize": "확정시상금",
		"prize_items": [{"label": "", "col_eligible": "", "col_prize": ""}]
	}`)
	require.NoError(t, err)

	require.Len(t, s.PrizeItems, 1)
	assert.Equal(t, "확정시상금", s.PrizeItems[0].AmountField)
	assert.True(t, s.PrizeItems[0].SkipZero, "legacy single column drops zero amounts")
	assert.Equal(t, incentive.Mode(""), s.Mode)

	// GIVEN: The record's legacy prize column is 0
	// THEN: The scheme is hidden rather than shown with a zero prize
	eng := incentive.NewEngine()
	agg := eng.Evaluate(incentive.Record{Key: "A1", Fields: incentive.Fields{"누계실적": "100", "확정시상금": "0"}},
		[]incentive.SchemeDefinition{s})
	assert.Empty(t, agg.Results)

	again, err := factory.NewSchemeFactory().FromJSON(factory.NewSchemeFactory().ToJSON(s))
	require.NoError(t, err)
	assert.True(t, again.PrizeItems[0].SkipZero)
}

// =============================================================================
// FILES AND ROUND TRIP
// =============================================================================

func TestParseSchemes_DuplicateIDs(t *testing.T) {
	_, err := factory.NewSchemeFactory().ParseSchemes([]byte(`[
		{"id": "a", "name": "a", "tiers": [[1, 1]], "metric_fields": ["m"]},
		{"id": "a", "name": "b", "tiers": [[1, 1]], "metric_fields": ["m"]}
	]`))
	assert.ErrorContains(t, err, "duplicate id")
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schemes:
  - id: weekly-1
    name: 1주차
    mode: tiered
    tiers:
      - {threshold: 500000, rate: 300}
      - [300000, 200]
    metric_fields: [실적]
  - id: cumulative
    name: 누계
    category: cumulative
    prize_items:
      - {label: 확정, eligibility_field: 지급률, amount_field: 확정시상금}
`), 0o644))

	schemes, err := factory.NewSchemeFactory().LoadFile(path)
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Len(t, schemes[0].Tiers, 2)
	assert.Equal(t, incentive.CategoryCumulative, schemes[1].Category)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemes.txt")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	_, err := factory.NewSchemeFactory().LoadFile(path)
	assert.ErrorContains(t, err, "unsupported")
}

func TestPresets_RoundTrip(t *testing.T) {
	// GIVEN: The preset monthly set as JSON
	// WHEN: Parsing it and converting back
	// THEN: The same definitions come out

	f := factory.NewSchemeFactory()
	parsed, err := f.ParseSchemes([]byte(presets.MonthlySetJSON()))
	require.NoError(t, err)

	built := presets.MonthlySet()
	require.Len(t, parsed, len(built))
	for i := range built {
		assert.Equal(t, built[i].ID, parsed[i].ID)
		assert.Equal(t, built[i].EffectiveMode(), parsed[i].EffectiveMode())
		assert.Equal(t, built[i].MetricFields, parsed[i].MetricFields)
		assert.Equal(t, len(built[i].Tiers), len(parsed[i].Tiers))

		again, err := f.FromJSON(f.ToJSON(parsed[i]))
		require.NoError(t, err)
		assert.Equal(t, parsed[i].ID, again.ID)
		assert.Equal(t, parsed[i].PrizeItems, again.PrizeItems)
	}
}

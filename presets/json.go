/*
Package presets provides ready-made incentive scheme definitions.

The JSON helpers build scheme documents directly as maps so presets can be
fed through factory.ParseScheme like any stored configuration.

USAGE:
  jsonStr := presets.WeeklyLadderJSON("weekly-1", "1주차 구간 시책", "실적_1주차")
  scheme, err := factory.NewSchemeFactory().ParseScheme(jsonStr)
*/
package presets

import (
	"encoding/json"
)

func standardLadderJSON() []map[string]interface{} {
	return []map[string]interface{}{
		{"threshold": 500000, "rate": 300},
		{"threshold": 300000, "rate": 200},
		{"threshold": 200000, "rate": 200},
		{"threshold": 100000, "rate": 100},
	}
}

// WeeklyLadderJSON returns JSON for a rate-derived weekly ladder.
func WeeklyLadderJSON(id, name, metricField string) string {
	sj := map[string]interface{}{
		"id":            id,
		"name":          name,
		"category":      "weekly",
		"mode":          "tiered",
		"tiers":         standardLadderJSON(),
		"metric_fields": []string{metricField},
	}
	return marshal(sj)
}

// BridgeConfirmedJSON returns JSON for a prior-period bridge.
func BridgeConfirmedJSON(id, name, priorField, currentField string, forward int64) string {
	sj := map[string]interface{}{
		"id":                  id,
		"name":                name,
		"category":            "weekly",
		"mode":                "bridge_confirmed",
		"tiers":               standardLadderJSON()[:2],
		"metric_fields":       []string{priorField, currentField},
		"forward_requirement": forward,
	}
	return marshal(sj)
}

// BridgeProjectedJSON returns JSON for a next-period bridge.
func BridgeProjectedJSON(id, name, currentField string, forward int64) string {
	sj := map[string]interface{}{
		"id":                  id,
		"name":                name,
		"category":            "weekly",
		"mode":                "bridge_projected",
		"tiers":               standardLadderJSON()[:2],
		"metric_fields":       []string{currentField},
		"forward_requirement": forward,
	}
	return marshal(sj)
}

// CumulativeConfirmedJSON returns JSON for a confirmed monthly prize.
func CumulativeConfirmedJSON(id, name, metricField, prizeField, eligibilityField string) string {
	sj := map[string]interface{}{
		"id":            id,
		"name":          name,
		"category":      "cumulative",
		"metric_fields": []string{metricField},
		"prize_items": []map[string]interface{}{{
			"label":             name,
			"eligibility_field": eligibilityField,
			"amount_field":      prizeField,
		}},
	}
	return marshal(sj)
}

// MonthlySetJSON returns MonthlySet as a JSON array document.
func MonthlySetJSON() string {
	docs := []json.RawMessage{
		json.RawMessage(WeeklyLadderJSON("weekly-1", "1주차 구간 시책", "실적_1주차")),
		json.RawMessage(BridgeConfirmedJSON("bridge-1", "브릿지 시책 (1기간)", "전월실적", "당월실적", 100000)),
		json.RawMessage(BridgeProjectedJSON("bridge-2", "브릿지 시책 (2기간)", "당월실적", 100000)),
		json.RawMessage(CumulativeConfirmedJSON("cumulative", "월간 확정 누계", "누계실적", "확정시상금", "지급률")),
	}
	b, _ := json.MarshalIndent(docs, "", "  ")
	return string(b)
}

func marshal(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	schemes and merged records. Each scenario stores scheme documents the
	same way the scheme API does, replaces the record upload, and reloads
	the scheme snapshot.

AVAILABLE SCENARIOS:

	monthly-standard: weekly ladder, both bridges, cumulative confirmation
	bridge-unlock:    prior-period bridge with locked and unlocked agents
	legacy-config:    scheme documents written with the legacy keys

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "monthly-standard"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/presets"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-standard",
		Name:        "Monthly Standard",
		Description: "Weekly ladder, confirmed and projected bridges, cumulative confirmation",
	},
	{
		ID:          "bridge-unlock",
		Name:        "Bridge Unlock",
		Description: "Prior-period bridge tier, unlocked or locked by this period",
	},
	{
		ID:          "legacy-config",
		Name:        "Legacy Config",
		Description: "Schemes written with the legacy type/col_val/curr_req keys",
	},
}

// Demo column names shared by all scenarios.
const (
	colAgentNumber = "사원번호"
	colAgentName   = "성명"
	colManagerCode = "매니저코드"
)

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.SchemesFromFile {
		writeError(w, http.StatusConflict, "Schemes are managed by the schemes file", nil)
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(ctx context.Context) error
	switch req.ScenarioID {
	case "monthly-standard":
		loader = h.loadMonthlyStandardScenario
	case "bridge-unlock":
		loader = h.loadBridgeUnlockScenario
	case "legacy-config":
		loader = h.loadLegacyConfigScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")

	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	set, err := h.LoadSchemes(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload schemes", err)
		return
	}
	h.setScenario(req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "loaded",
		"scenario":       req.ScenarioID,
		"scheme_version": set.Version(),
		"schemes":        set.Len(),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	if !h.SchemesFromFile {
		if _, err := h.LoadSchemes(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reload schemes", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyStandardScenario(ctx context.Context) error {
	schemes, err := h.Factory.ParseSchemes([]byte(presets.MonthlySetJSON()))
	if err != nil {
		return fmt.Errorf("failed to parse monthly set: %w", err)
	}
	if err := h.saveSchemes(ctx, schemes); err != nil {
		return err
	}

	records := []incentive.Record{
		agent("A001", "김하나", "M001", incentive.Fields{
			"실적_1주차": "350000", "전월실적": "520000", "당월실적": "150000",
			"누계실적": "900000", "확정시상금": "450000", "지급률": "1",
		}),
		agent("A002", "이둘", "M001", incentive.Fields{
			"실적_1주차": "120000", "전월실적": "310000", "당월실적": "80000",
			"누계실적": "300000", "확정시상금": "0", "지급률": "0",
		}),
		agent("A003", "박셋", "M002", incentive.Fields{
			"실적_1주차": "50000", "전월실적": "0", "당월실적": "600000",
			"누계실적": "1200000", "확정시상금": "1200000", "지급률": "1",
		}),
	}
	return h.saveRecords(ctx, records)
}

func (h *Handler) loadBridgeUnlockScenario(ctx context.Context) error {
	schemes := []incentive.SchemeDefinition{
		presets.BridgeConfirmed("bridge-1", "브릿지 시책 (1기간)", "전월실적", "당월실적",
			presets.Ladder([2]int64{500000, 300}, [2]int64{300000, 200}), presets.DefaultForwardRequirement),
	}
	if err := h.saveSchemes(ctx, schemes); err != nil {
		return err
	}

	// Merged upload: the prior period came from file A, the current one
	// from file B, so the metrics carry the merge suffixes.
	records := []incentive.Record{
		agent("B001", "최잠금", "M001", incentive.Fields{"전월실적_A": "300000", "당월실적_B": "80000"}),
		agent("B002", "정해제", "M001", incentive.Fields{"전월실적_A": "500000", "당월실적_B": "100000"}),
		agent("B003", "한미달", "M001", incentive.Fields{"전월실적_A": "250000", "당월실적_B": "400000"}),
	}
	return h.saveRecords(ctx, records)
}

// Legacy documents: mode comes from the free-text type, metrics from
// col_val*, the forward requirement from curr_req.
var legacySchemesJSON = `[
  {"id": "legacy-weekly", "name": "2주차 시책", "type": "구간 시책", "col_val": "실적_2주차",
   "tiers": [[300000, 200], [100000, 100]]},
  {"id": "legacy-bridge-1", "name": "브릿지 1기간", "type": "1기간 브릿지",
   "col_val_prev": "전월실적", "col_val_curr": "당월실적", "curr_req": 200000,
   "tiers": [[500000, 300], [300000, 200]]},
  {"id": "legacy-cumulative", "name": "누계 확정", "category": "cumulative",
   "col_val": "누계실적", "col_prize": "확정시상금"}
]`

func (h *Handler) loadLegacyConfigScenario(ctx context.Context) error {
	schemes, err := h.Factory.ParseSchemes([]byte(legacySchemesJSON))
	if err != nil {
		return fmt.Errorf("failed to parse legacy schemes: %w", err)
	}
	if err := h.saveSchemes(ctx, schemes); err != nil {
		return err
	}

	records := []incentive.Record{
		agent("C001", "오레거", "M003", incentive.Fields{
			"실적_2주차": "310000", "전월실적": "300000", "당월실적": "200000",
			"누계실적": "700000", "확정시상금": "350000",
		}),
	}
	return h.saveRecords(ctx, records)
}

// =============================================================================
// HELPERS
// =============================================================================

func agent(number, name, manager string, metrics incentive.Fields) incentive.Record {
	fields := incentive.Fields{
		colAgentNumber: number,
		colAgentName:   name,
		colManagerCode: manager,
	}
	for k, v := range metrics {
		fields[k] = v
	}
	return incentive.Record{Key: number, Fields: fields}
}

func (h *Handler) saveSchemes(ctx context.Context, schemes []incentive.SchemeDefinition) error {
	for i, s := range schemes {
		doc, err := json.Marshal(h.Factory.ToJSON(s))
		if err != nil {
			return fmt.Errorf("failed to encode scheme %s: %w", s.ID, err)
		}
		rec := sqlite.SchemeRecord{
			ID:         string(s.ID),
			Name:       s.Name,
			Category:   string(s.Category),
			ConfigJSON: string(doc),
			Position:   i,
		}
		if err := h.Store.SaveScheme(ctx, rec); err != nil {
			return fmt.Errorf("failed to save scheme %s: %w", s.ID, err)
		}
	}
	return nil
}

func (h *Handler) saveRecords(ctx context.Context, records []incentive.Record) error {
	cfg := sqlite.JoinConfig{
		KeyA:                 colAgentNumber,
		KeyB:                 colAgentNumber,
		ManagerColumns:       []string{colManagerCode},
		CustomerNameColumn:   colAgentName,
		CustomerNumberColumn: colAgentNumber,
	}
	if err := h.Store.ReplaceRecords(ctx, records, cfg); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	h.Metrics.observeRecords(len(records))
	return nil
}

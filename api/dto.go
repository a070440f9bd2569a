/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money values are
  serialized as decimal strings, never floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// SCHEMES
// =============================================================================

// SchemeDTO represents a scheme in API responses.
type SchemeDTO struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Category string             `json:"category"`
	Mode     string             `json:"mode,omitempty"`
	Config   factory.SchemeJSON `json:"config"`
}

// SchemeListDTO is the current snapshot.
type SchemeListDTO struct {
	Version  uint64      `json:"version"`
	LoadedAt string      `json:"loaded_at"`
	Schemes  []SchemeDTO `json:"schemes"`
}

func toSchemeDTO(f *factory.SchemeFactory, s incentive.SchemeDefinition) SchemeDTO {
	return SchemeDTO{
		ID:       string(s.ID),
		Name:     s.Name,
		Category: string(s.Category),
		Mode:     string(s.EffectiveMode()),
		Config:   f.ToJSON(s),
	}
}

// =============================================================================
// EVALUATION
// =============================================================================

// PrizeDTO is one contributing prize column.
type PrizeDTO struct {
	Label  string          `json:"label,omitempty"`
	Field  string          `json:"field"`
	Amount decimal.Decimal `json:"amount"`
}

// ResultDTO is one scheme's outcome.
type ResultDTO struct {
	SchemeID           string           `json:"scheme_id"`
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	Category           string           `json:"category"`
	Mode               string           `json:"mode,omitempty"`
	Metric             decimal.Decimal  `json:"metric"`
	PriorMetric        *decimal.Decimal `json:"prior_metric,omitempty"`
	AchievedTier       *decimal.Decimal `json:"achieved_tier"`
	AchievedRate       *decimal.Decimal `json:"achieved_rate"`
	NextTier           *decimal.Decimal `json:"next_tier"`
	Shortfall          decimal.Decimal  `json:"shortfall"`
	Target             string           `json:"target,omitempty"`
	ForwardRequirement *decimal.Decimal `json:"forward_requirement,omitempty"`
	Unlocked           bool             `json:"unlocked,omitempty"`
	Projected          bool             `json:"projected,omitempty"`
	PrizeAmount        decimal.Decimal  `json:"prize_amount"`
	Prizes             []PrizeDTO       `json:"prizes,omitempty"`
	Included           bool             `json:"included"`
}

// DroppedDTO is a scheme left out of an evaluation.
type DroppedDTO struct {
	SchemeID string `json:"scheme_id"`
	Reason   string `json:"reason"`
}

// EvaluationDTO is one record's aggregate result.
type EvaluationDTO struct {
	RecordKey       string          `json:"record_key"`
	Name            string          `json:"name,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	Display         []DisplayDTO    `json:"display,omitempty"`
	SchemeVersion   uint64          `json:"scheme_version"`
	WeeklyTotal     decimal.Decimal `json:"weekly_total"`
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	BridgeTotal     decimal.Decimal `json:"bridge_total"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	Results         []ResultDTO     `json:"results"`
	Dropped         []DroppedDTO    `json:"dropped,omitempty"`
}

// ToEvaluationDTO maps an aggregate result to its wire form.
func ToEvaluationDTO(agg incentive.AggregateResult, name string) EvaluationDTO {
	dto := EvaluationDTO{
		RecordKey:       agg.RecordKey,
		Name:            name,
		SchemeVersion:   agg.SchemeVersion,
		WeeklyTotal:     agg.WeeklyTotal,
		CumulativeTotal: agg.CumulativeTotal,
		BridgeTotal:     agg.BridgeTotal,
		GrandTotal:      agg.GrandTotal,
		Results:         make([]ResultDTO, 0, len(agg.Results)),
	}
	for _, r := range agg.Results {
		rd := ResultDTO{
			SchemeID:           string(r.SchemeID),
			Name:               r.Name,
			Description:        r.Description,
			Category:           string(r.Category),
			Mode:               string(r.Mode),
			Metric:             r.Metric,
			PriorMetric:        r.PriorMetric,
			AchievedTier:       r.AchievedTier,
			AchievedRate:       r.AchievedRate,
			NextTier:           r.NextTier,
			Shortfall:          r.Shortfall,
			Target:             string(r.Target),
			ForwardRequirement: r.ForwardRequirement,
			Unlocked:           r.Unlocked,
			Projected:          r.Projected,
			PrizeAmount:        r.PrizeAmount,
			Included:           r.Included,
		}
		for _, p := range r.Prizes {
			rd.Prizes = append(rd.Prizes, PrizeDTO{Label: p.Label, Field: p.Field, Amount: p.Amount})
		}
		dto.Results = append(dto.Results, rd)
	}
	for _, d := range agg.Dropped {
		dto.Dropped = append(dto.Dropped, DroppedDTO{SchemeID: string(d.SchemeID), Reason: d.Reason})
	}
	return dto
}

// DisplayDTO is one manager view cell.
type DisplayDTO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ViewDTO configures the manager view.
type ViewDTO struct {
	Categories []ingest.Category      `json:"categories"`
	Columns    []ingest.DisplayColumn `json:"columns"`
}

// EvaluateRequest evaluates an ad-hoc record. Without Schemes the current
// snapshot is used.
type EvaluateRequest struct {
	Key     string               `json:"key"`
	Name    string               `json:"name,omitempty"`
	Fields  map[string]any       `json:"fields"`
	Schemes []factory.SchemeJSON `json:"schemes,omitempty"`
}

// ManagerAgentsDTO is a manager's batch evaluation.
type ManagerAgentsDTO struct {
	ManagerCode   string          `json:"manager_code"`
	RunID         string          `json:"run_id"`
	SchemeVersion uint64          `json:"scheme_version"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Agents        []EvaluationDTO `json:"agents"`
}

// EvaluationRunDTO represents a stored batch run.
type EvaluationRunDTO struct {
	ID            string          `json:"id"`
	Scope         string          `json:"scope"`
	SchemeVersion uint64          `json:"scheme_version"`
	RecordCount   int             `json:"record_count"`
	DroppedCount  int             `json:"dropped_count"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	StartedAt     string          `json:"started_at"`
	DurationMS    int64           `json:"duration_ms"`
}

func toEvaluationRunDTO(r sqlite.EvaluationRun) EvaluationRunDTO {
	return EvaluationRunDTO{
		ID:            r.ID,
		Scope:         r.Scope,
		SchemeVersion: r.SchemeVersion,
		RecordCount:   r.RecordCount,
		DroppedCount:  r.DroppedCount,
		GrandTotal:    r.GrandTotal,
		StartedAt:     r.StartedAt.Format(time.RFC3339),
		DurationMS:    r.Duration.Milliseconds(),
	}
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordDTO is one merged record.
type RecordDTO struct {
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// UploadResultDTO summarizes a records upload.
type UploadResultDTO struct {
	Records int      `json:"records"`
	Columns []string `json:"columns"`
	KeyA    string   `json:"key_a"`
	KeyB    string   `json:"key_b,omitempty"`
}

// =============================================================================
// LOGS
// =============================================================================

// MessageLogRequest records one share message.
type MessageLogRequest struct {
	ManagerCode    string `json:"manager_code"`
	ManagerName    string `json:"manager_name"`
	CustomerNumber string `json:"customer_number"`
	CustomerName   string `json:"customer_name"`
	MessageType    int    `json:"message_type"`
}

// LoginLogRequest records one login.
type LoginLogRequest struct {
	ManagerCode string `json:"manager_code"`
	ManagerName string `json:"manager_name"`
}

// MessageLogDTO is one stored message log.
type MessageLogDTO struct {
	ID             int64  `json:"id"`
	ManagerCode    string `json:"manager_code"`
	CustomerNumber string `json:"customer_number"`
	CustomerName   string `json:"customer_name"`
	MessageType    int    `json:"message_type"`
	SentAt         string `json:"sent_at"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

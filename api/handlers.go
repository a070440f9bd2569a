/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes scheme configuration, record uploads and evaluations via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the incentive engine, the ingest package and the SQLite store.

ENDPOINTS:
  Schemes:
    GET    /api/schemes                    Current snapshot
    POST   /api/schemes                    Create or update a scheme
    GET    /api/schemes/{id}               One scheme
    DELETE /api/schemes/{id}               Remove a scheme

  Records:
    POST   /api/records/upload             Merge and store two CSV exports
    GET    /api/records/{key}              One merged record
    GET    /api/records/{key}/evaluation   Evaluate (?format=text for share text)

  Evaluation:
    POST   /api/evaluate                   Ad-hoc record, optional inline schemes
    GET    /api/managers/{code}/agents     Batch evaluation of a manager's records
    GET    /api/evaluations/runs           Stored batch runs

  Manager view:
    GET    /api/view                       Custom categories and display columns
    PUT    /api/view                       Replace them (applied to manager batches)

  Logs:
    POST   /api/logs/messages              Record a share message
    GET    /api/logs/messages              Messages for one customer
    GET    /api/logs/messages/summary      Per-type counts (per manager or all)
    POST   /api/logs/logins                Record a login
    GET    /api/logs/logins/summary        Monthly login counts

SCHEME SNAPSHOTS:
  Every scheme mutation reloads the Registry from the store. Evaluations
  take one snapshot per request, so a reload never mixes versions within
  a batch. When schemes come from a watched file, mutations are refused.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Schemes are file-managed
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/notify"
	"github.com/warp/incentive-engine/store/sqlite"
)

// maxUploadSize bounds multipart record uploads.
const maxUploadSize = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Factory  *factory.SchemeFactory
	Registry *incentive.Registry
	Engine   *incentive.Engine
	Metrics  *Metrics
	Logger   log.FieldLogger

	// ManagerColumns are the default manager code columns of an upload.
	ManagerColumns []string

	// SchemesFromFile is set when a file watcher owns the registry.
	SchemesFromFile bool

	// ShareOptions configure the text rendering of evaluations.
	ShareOptions notify.Options

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler with default engine, factory and registry.
// Callers replace fields before serving to inject configured instances.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:          store,
		Factory:        factory.NewSchemeFactory(),
		Registry:       incentive.NewRegistry(),
		Engine:         incentive.NewEngine(),
		Logger:         log.StandardLogger(),
		ManagerColumns: []string{"매니저코드"},
		ShareOptions:   notify.DefaultOptions(),
	}
}

// LoadSchemes reloads the registry from the store.
func (h *Handler) LoadSchemes(ctx context.Context) (*incentive.SchemeSet, error) {
	set, err := h.Registry.Reload(ctx, h.Store.SchemeSource(h.Factory))
	h.Metrics.observeReload(set, err)
	if err != nil {
		h.Logger.WithError(err).Error("scheme reload failed, keeping previous snapshot")
		return nil, err
	}
	h.Logger.WithFields(log.Fields{
		"version": set.Version(),
		"schemes": set.Len(),
	}).Info("schemes loaded from store")
	return set, nil
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// ListSchemes returns the current snapshot.
// GET /api/schemes
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	set := h.Registry.Snapshot()
	schemes := set.Schemes()

	dtos := make([]SchemeDTO, len(schemes))
	for i, s := range schemes {
		dtos[i] = toSchemeDTO(h.Factory, s)
	}

	writeJSON(w, http.StatusOK, SchemeListDTO{
		Version:  set.Version(),
		LoadedAt: set.LoadedAt().Format(time.RFC3339),
		Schemes:  dtos,
	})
}

// GetScheme returns one scheme of the current snapshot.
// GET /api/schemes/{id}
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, ok := h.Registry.Snapshot().Get(incentive.SchemeID(id))
	if !ok {
		writeError(w, http.StatusNotFound, "Scheme not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSchemeDTO(h.Factory, s))
}

// CreateScheme validates and stores a scheme, then reloads the snapshot.
// POST /api/schemes
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	if h.SchemesFromFile {
		writeError(w, http.StatusConflict, "Schemes are managed by the schemes file", nil)
		return
	}

	var req factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scheme, err := h.Factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheme", err)
		return
	}

	ctx := r.Context()
	position, err := h.schemePosition(ctx, string(scheme.ID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schemes", err)
		return
	}

	doc, err := json.Marshal(h.Factory.ToJSON(scheme))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode scheme", err)
		return
	}

	rec := sqlite.SchemeRecord{
		ID:         string(scheme.ID),
		Name:       scheme.Name,
		Category:   string(scheme.Category),
		ConfigJSON: string(doc),
		Position:   position,
	}
	if err := h.Store.SaveScheme(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scheme", err)
		return
	}

	if _, err := h.LoadSchemes(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Scheme saved but reload failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSchemeDTO(h.Factory, scheme))
}

// schemePosition keeps an existing scheme's position, else appends.
func (h *Handler) schemePosition(ctx context.Context, id string) (int, error) {
	existing, err := h.Store.ListSchemes(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range existing {
		if e.ID == id {
			return e.Position, nil
		}
	}
	return len(existing), nil
}

// DeleteScheme removes a scheme and reloads the snapshot.
// DELETE /api/schemes/{id}
func (h *Handler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	if h.SchemesFromFile {
		writeError(w, http.StatusConflict, "Schemes are managed by the schemes file", nil)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	deleted, err := h.Store.DeleteScheme(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete scheme", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Scheme not found", nil)
		return
	}

	if _, err := h.LoadSchemes(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Scheme deleted but reload failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// UploadRecords merges two CSV exports and replaces the stored records.
// POST /api/records/upload (multipart: file_a, file_b, key_a, key_b,
// manager_columns, name_column, number_column)
func (h *Handler) UploadRecords(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	keyA := strings.TrimSpace(r.FormValue("key_a"))
	keyB := strings.TrimSpace(r.FormValue("key_b"))
	if keyA == "" {
		writeError(w, http.StatusBadRequest, "key_a is required", nil)
		return
	}
	if keyB == "" {
		keyB = keyA
	}

	tableA, err := readUpload(r, "file_a")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file_a", err)
		return
	}
	if tableA == nil {
		writeError(w, http.StatusBadRequest, "file_a is required", nil)
		return
	}
	tableB, err := readUpload(r, "file_b")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file_b", err)
		return
	}

	merged := tableA
	keys := []string{keyA}
	if tableB != nil {
		merged, err = ingest.OuterJoin(tableA, tableB, ingest.JoinSpec{KeyA: keyA, KeyB: keyB})
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to merge files", err)
			return
		}
		if keyB != keyA {
			keys = append(keys, keyB)
		}
	} else {
		keyB = ""
	}

	records, err := merged.Records(keys...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to build records", err)
		return
	}

	managers := h.ManagerColumns
	if v := r.FormValue("manager_columns"); v != "" {
		managers = splitList(v)
	}

	cfg := sqlite.JoinConfig{
		KeyA:                 keyA,
		KeyB:                 keyB,
		ManagerColumns:       managers,
		CustomerNameColumn:   r.FormValue("name_column"),
		CustomerNumberColumn: r.FormValue("number_column"),
		Columns:              merged.Columns,
	}
	if err := h.Store.ReplaceRecords(r.Context(), records, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store records", err)
		return
	}
	h.Metrics.observeRecords(len(records))

	h.Logger.WithFields(log.Fields{
		"records": len(records),
		"columns": len(merged.Columns),
		"key_a":   keyA,
		"key_b":   keyB,
	}).Info("records uploaded")

	writeJSON(w, http.StatusCreated, UploadResultDTO{
		Records: len(records),
		Columns: merged.Columns,
		KeyA:    keyA,
		KeyB:    keyB,
	})
}

// readUpload returns nil, nil when the form has no such file.
func readUpload(r *http.Request, field string) (*ingest.Table, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ingest.ReadCSV(file)
}

// GetRecord returns one merged record.
// GET /api/records/{key}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RecordDTO{Key: rec.Key, Fields: rec.Fields})
}

// GetRecordEvaluation evaluates one stored record against the snapshot.
// GET /api/records/{key}/evaluation[?format=text]
// GET /api/records/{key}/evaluation?format=performance[&fields=a,b][&prizes=false]
//
// The performance message lists fields, or the manager view's display
// columns when fields is empty.
func (h *Handler) GetRecordEvaluation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	agg := h.Engine.EvaluateSet(*rec, h.Registry.Snapshot())
	h.Metrics.observeEvaluation(agg)
	name := h.recordName(r.Context(), *rec)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(notify.ShareText(name, agg, h.ShareOptions)))
		return
	}
	if r.URL.Query().Get("format") == "performance" {
		h.writePerformance(w, r, *rec, agg, name)
		return
	}
	writeJSON(w, http.StatusOK, ToEvaluationDTO(agg, name))
}

func (h *Handler) writePerformance(w http.ResponseWriter, r *http.Request, rec incentive.Record, agg incentive.AggregateResult, name string) {
	var perf []notify.Entry
	if fields := splitList(r.URL.Query().Get("fields")); len(fields) > 0 {
		for _, f := range fields {
			v, _ := h.Engine.ResolveField(rec, f)
			perf = append(perf, notify.Entry{Label: f, Value: v.Text})
		}
	} else {
		view, err := h.Store.GetView(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get view config", err)
			return
		}
		if view != nil {
			for _, c := range view.Display(rec, h.Engine.Resolver()) {
				perf = append(perf, notify.Entry{Label: c.Name, Value: c.Value})
			}
		}
	}

	var prizes []notify.Entry
	if r.URL.Query().Get("prizes") != "false" {
		prizes = notify.PrizeEntries(agg, h.ShareOptions)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(notify.PerformanceText(name, perf, prizes, h.ShareOptions)))
}

func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (*incentive.Record, bool) {
	key := ingest.CleanKey(chi.URLParam(r, "key"))

	rec, err := h.Store.GetRecord(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get record", err)
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Record not found", nil)
		return nil, false
	}
	return rec, true
}

// recordName resolves the display name column of the current upload.
func (h *Handler) recordName(ctx context.Context, rec incentive.Record) string {
	cfg, err := h.Store.GetJoinConfig(ctx)
	if err != nil || cfg == nil || cfg.CustomerNameColumn == "" {
		return rec.Key
	}
	if v, ok := h.Engine.ResolveField(rec, cfg.CustomerNameColumn); ok {
		return v.Text
	}
	return rec.Key
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// Evaluate runs the engine on a record supplied in the request.
// POST /api/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields are required", nil)
		return
	}

	rec := incentive.Record{Key: req.Key, Fields: incentive.Fields(req.Fields)}

	var agg incentive.AggregateResult
	if len(req.Schemes) > 0 {
		schemes := make([]incentive.SchemeDefinition, 0, len(req.Schemes))
		for i, sj := range req.Schemes {
			s, err := h.Factory.FromJSON(sj)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid scheme at index %d", i), err)
				return
			}
			schemes = append(schemes, s)
		}
		agg = h.Engine.Evaluate(rec, schemes)
	} else {
		agg = h.Engine.EvaluateSet(rec, h.Registry.Snapshot())
	}
	h.Metrics.observeEvaluation(agg)

	if r.URL.Query().Get("format") == "text" {
		name := req.Name
		if name == "" {
			name = req.Key
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(notify.ShareText(name, agg, h.ShareOptions)))
		return
	}
	writeJSON(w, http.StatusOK, ToEvaluationDTO(agg, req.Name))
}

// ManagerAgents evaluates every record managed by a manager code and
// stores the run.
// GET /api/managers/{code}/agents
func (h *Handler) ManagerAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := ingest.CleanKey(chi.URLParam(r, "code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "Manager code is required", nil)
		return
	}

	all, err := h.Store.ListRecords(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	managers := h.ManagerColumns
	cfg, err := h.Store.GetJoinConfig(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get join config", err)
		return
	}
	if cfg != nil && len(cfg.ManagerColumns) > 0 {
		managers = cfg.ManagerColumns
	}

	records := ingest.ByManager(all, h.Engine.Resolver(), managers, code)

	view, err := h.Store.GetView(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get view config", err)
		return
	}
	var rows []ingest.ViewRow
	if view != nil {
		rows, err = view.Apply(records, h.Engine.Resolver())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Invalid view config", err)
			return
		}
		records = make([]incentive.Record, len(rows))
		for i, row := range rows {
			records[i] = row.Record
		}
	}

	set := h.Registry.Snapshot()
	started := time.Now()
	results, err := h.Engine.EvaluateBatch(ctx, records, set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Evaluation cancelled", err)
		return
	}
	elapsed := time.Since(started)
	h.Metrics.observeBatch(results, elapsed)

	resp := ManagerAgentsDTO{
		ManagerCode:   code,
		SchemeVersion: set.Version(),
		Agents:        make([]EvaluationDTO, len(results)),
	}
	dropped := 0
	for i, agg := range results {
		name := records[i].Key
		if cfg != nil && cfg.CustomerNameColumn != "" {
			if v, ok := h.Engine.ResolveField(records[i], cfg.CustomerNameColumn); ok {
				name = v.Text
			}
		}
		resp.Agents[i] = ToEvaluationDTO(agg, name)
		if rows != nil {
			resp.Agents[i].Tags = rows[i].Tags
			for _, v := range rows[i].Values {
				resp.Agents[i].Display = append(resp.Agents[i].Display, DisplayDTO{Name: v.Name, Value: v.Value})
			}
		}
		resp.GrandTotal = resp.GrandTotal.Add(agg.GrandTotal)
		dropped += len(agg.Dropped)
	}

	runID, err := h.Store.SaveEvaluationRun(ctx, sqlite.EvaluationRun{
		Scope:         "manager:" + code,
		SchemeVersion: set.Version(),
		RecordCount:   len(results),
		DroppedCount:  dropped,
		GrandTotal:    resp.GrandTotal,
		StartedAt:     started,
		Duration:      elapsed,
	})
	if err != nil {
		h.Logger.WithError(err).WithField("manager_code", code).Warn("failed to save evaluation run")
	}
	resp.RunID = runID

	writeJSON(w, http.StatusOK, resp)
}

// GetView returns the manager view configuration.
// GET /api/view
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.Store.GetView(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get view config", err)
		return
	}
	resp := ViewDTO{Categories: []ingest.Category{}, Columns: []ingest.DisplayColumn{}}
	if view != nil {
		resp.Categories = append(resp.Categories, view.Categories...)
		resp.Columns = append(resp.Columns, view.Columns...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveView replaces the manager view configuration. Every condition must
// parse.
// PUT /api/view
func (h *Handler) SaveView(w http.ResponseWriter, r *http.Request) {
	var req ViewDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view := ingest.View{Categories: req.Categories, Columns: req.Columns}
	if err := view.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid view config", err)
		return
	}
	if err := h.Store.SaveView(r.Context(), view); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save view config", err)
		return
	}

	h.Logger.WithFields(log.Fields{
		"categories": len(view.Categories),
		"columns":    len(view.Columns),
	}).Info("view config saved")
	writeJSON(w, http.StatusOK, req)
}

// ListEvaluationRuns returns stored batch runs, newest first.
// GET /api/evaluations/runs?limit=N
func (h *Handler) ListEvaluationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListEvaluationRuns(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list evaluation runs", err)
		return
	}

	dtos := make([]EvaluationRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toEvaluationRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// LOG HANDLERS
// =============================================================================

// LogMessage records one share message.
// POST /api/logs/messages
func (h *Handler) LogMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ManagerCode == "" || req.CustomerNumber == "" {
		writeError(w, http.StatusBadRequest, "manager_code and customer_number are required", nil)
		return
	}

	id, err := h.Store.LogMessage(r.Context(), sqlite.MessageLog{
		ManagerCode:    ingest.CleanKey(req.ManagerCode),
		ManagerName:    req.ManagerName,
		CustomerNumber: ingest.CleanKey(req.CustomerNumber),
		CustomerName:   req.CustomerName,
		MessageType:    req.MessageType,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log message", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "logged", "id": id})
}

// MessagesForCustomer lists a customer's messages this month.
// GET /api/logs/messages?manager_code=..&customer_number=..[&month=YYYYMM]
func (h *Handler) MessagesForCustomer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	manager := ingest.CleanKey(q.Get("manager_code"))
	customer := ingest.CleanKey(q.Get("customer_number"))
	if manager == "" || customer == "" {
		writeError(w, http.StatusBadRequest, "manager_code and customer_number are required", nil)
		return
	}

	logs, err := h.Store.MessagesForCustomer(r.Context(), manager, customer, monthParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get messages", err)
		return
	}

	dtos := make([]MessageLogDTO, 0, len(logs))
	for _, l := range logs {
		dtos = append(dtos, MessageLogDTO{
			ID:             l.ID,
			ManagerCode:    l.ManagerCode,
			CustomerNumber: l.CustomerNumber,
			CustomerName:   l.CustomerName,
			MessageType:    l.MessageType,
			SentAt:         l.SentAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": dtos})
}

// MessageSummary returns per-type message counts for a month. With
// manager_code it covers one manager, otherwise every manager.
// GET /api/logs/messages/summary[?manager_code=..][&month=YYYYMM]
func (h *Handler) MessageSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := monthParam(r)

	if manager := ingest.CleanKey(r.URL.Query().Get("manager_code")); manager != "" {
		stats, err := h.Store.MessageSummary(ctx, manager, month)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get message summary", err)
			return
		}
		byType := make(map[string]sqlite.MessageStat, len(stats))
		for t, s := range stats {
			byType[strconv.Itoa(t)] = s
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"manager_code": manager,
			"month":        month,
			"summary":      byType,
		})
		return
	}

	rows, err := h.Store.AllMessageSummary(ctx, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get message summary", err)
		return
	}
	if rows == nil {
		rows = []sqlite.ManagerMessageSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "summary": rows})
}

// LogLogin records a manager login.
// POST /api/logs/logins
func (h *Handler) LogLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	code := ingest.CleanKey(req.ManagerCode)
	if code == "" {
		writeError(w, http.StatusBadRequest, "manager_code is required", nil)
		return
	}

	if err := h.Store.LogLogin(r.Context(), code, req.ManagerName, time.Time{}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log login", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "logged"})
}

// LoginSummary returns monthly login counts and the latest logins.
// GET /api/logs/logins/summary[?month=YYYYMM][&limit=N]
func (h *Handler) LoginSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := monthParam(r)

	summary, err := h.Store.LoginSummaryForMonth(ctx, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get login summary", err)
		return
	}
	recent, err := h.Store.RecentLogins(ctx, queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get recent logins", err)
		return
	}

	type recentDTO struct {
		ManagerCode string `json:"manager_code"`
		ManagerName string `json:"manager_name"`
		LoginAt     string `json:"login_at"`
	}
	recentDTOs := make([]recentDTO, 0, len(recent))
	for _, l := range recent {
		recentDTOs = append(recentDTOs, recentDTO{
			ManagerCode: l.ManagerCode,
			ManagerName: l.ManagerName,
			LoginAt:     l.LoginAt.Format(time.RFC3339),
		})
	}
	if summary == nil {
		summary = []sqlite.LoginSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":   month,
		"summary": summary,
		"recent":  recentDTOs,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports store reachability and the snapshot version.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	set := h.Registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"scheme_version": set.Version(),
		"schemes":        set.Len(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func monthParam(r *http.Request) string {
	if m := r.URL.Query().Get("month"); len(m) == len(sqlite.MonthKeyLayout) {
		if _, err := time.Parse(sqlite.MonthKeyLayout, m); err == nil {
			return m
		}
	}
	return sqlite.MonthKey(time.Now().UTC())
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package api_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/presets"
)

// =============================================================================
// SCHEMES
// =============================================================================

func TestSchemes_CreateGetDelete(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: A scheme is created, read and deleted
	// THEN: Every mutation publishes a new snapshot version

	env := newTestEnv(t)

	status, body := env.do(http.MethodPost, "/api/schemes", presets.WeeklyLadderJSON("weekly-1", "1주차 구간 시책", "실적_1주차"))
	require.Equal(t, http.StatusCreated, status, string(body))

	var created api.SchemeDTO
	env.decode(body, &created)
	assert.Equal(t, "weekly-1", created.ID)
	assert.Equal(t, "tiered", created.Mode)
	assert.Len(t, created.Config.Tiers, 4)

	status, body = env.do(http.MethodGet, "/api/schemes", nil)
	require.Equal(t, http.StatusOK, status)
	var list api.SchemeListDTO
	env.decode(body, &list)
	assert.Equal(t, uint64(1), list.Version)
	require.Len(t, list.Schemes, 1)

	status, _ = env.do(http.MethodGet, "/api/schemes/weekly-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodDelete, "/api/schemes/weekly-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodGet, "/api/schemes/weekly-1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(http.MethodDelete, "/api/schemes/weekly-1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	assert.Equal(t, uint64(2), env.handler.Registry.Snapshot().Version())
}

func TestSchemes_UpdateKeepsPosition(t *testing.T) {
	env := newTestEnv(t)

	for _, doc := range []string{
		presets.WeeklyLadderJSON("weekly-1", "1주차", "실적_1주차"),
		presets.WeeklyLadderJSON("weekly-2", "2주차", "실적_2주차"),
		presets.WeeklyLadderJSON("weekly-1", "1주차 (수정)", "실적_1주차"),
	} {
		status, body := env.do(http.MethodPost, "/api/schemes", doc)
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	schemes := env.handler.Registry.Snapshot().Schemes()
	require.Len(t, schemes, 2)
	assert.Equal(t, "1주차 (수정)", schemes[0].Name)
	assert.Equal(t, "weekly-2", string(schemes[1].ID))
}

func TestSchemes_CreateInvalid(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"missing name", `{"id": "x", "tiers": [[100, 1]], "metric_fields": ["m"]}`},
		{"duplicate thresholds", `{"name": "x", "tiers": [[100, 1], [100, 2]], "metric_fields": ["m"]}`},
		{"bridge without prior field", `{"name": "x", "mode": "bridge_confirmed", "tiers": [[100, 1]], "metric_fields": ["m"]}`},
		{"unknown mode", `{"name": "x", "mode": "sideways", "tiers": [[100, 1]], "metric_fields": ["m"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(http.MethodPost, "/api/schemes", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
		})
	}
	assert.Equal(t, 0, env.handler.Registry.Snapshot().Len())
}

func TestSchemes_FileManagedRefusesMutation(t *testing.T) {
	env := newTestEnv(t)
	env.handler.SchemesFromFile = true

	status, _ := env.do(http.MethodPost, "/api/schemes", presets.WeeklyLadderJSON("w", "w", "m"))
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(http.MethodDelete, "/api/schemes/w", nil)
	assert.Equal(t, http.StatusConflict, status)
}

// =============================================================================
// RECORDS
// =============================================================================

const fileA = "사원번호,성명,매니저코드,전월실적\n" +
	"A001,김하나,M001,520000\n" +
	"A002,이둘,M001,310000\n"

const fileB = "사원번호,성명,당월실적\n" +
	"A001,김하나,150000\n" +
	"A002.0,이둘,80000\n" +
	"A009,신규,400000\n"

func TestUploadRecords_MergesAndEvaluates(t *testing.T) {
	// GIVEN: Two exports sharing the agent number column
	// WHEN: They are uploaded and a bridge scheme is configured
	// THEN: Records are merged (suffixes on overlapping columns) and the
	//       stored record evaluates through the alias suffixes

	env := newTestEnv(t)

	status, body := env.upload(
		map[string]string{"file_a": fileA, "file_b": fileB},
		map[string]string{"key_a": "사원번호", "name_column": "성명"},
	)
	require.Equal(t, http.StatusCreated, status, string(body))

	var up api.UploadResultDTO
	env.decode(body, &up)
	assert.Equal(t, 3, up.Records)
	assert.Contains(t, up.Columns, "성명_A")
	assert.Contains(t, up.Columns, "성명_B")

	status, body = env.do(http.MethodPost, "/api/schemes",
		presets.BridgeConfirmedJSON("bridge-1", "브릿지 시책", "전월실적", "당월실적", 100000))
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = env.do(http.MethodGet, "/api/records/a001/evaluation", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var eval api.EvaluationDTO
	env.decode(body, &eval)
	assert.Equal(t, "A001", eval.RecordKey)
	assert.Equal(t, "김하나", eval.Name)
	assertDec(t, 1800000, eval.GrandTotal)

	bridge := resultByID(t, eval, "bridge-1")
	assert.True(t, bridge.Unlocked)

	// A002.0 in file B joined onto A002.
	status, body = env.do(http.MethodGet, "/api/records/A002/evaluation", nil)
	require.Equal(t, http.StatusOK, status)
	env.decode(body, &eval)
	bridge = resultByID(t, eval, "bridge-1")
	assert.False(t, bridge.Unlocked)
	assert.Equal(t, "unlock", bridge.Target)
	assertDec(t, 20000, bridge.Shortfall)

	// Only in file B.
	status, _ = env.do(http.MethodGet, "/api/records/A009", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestUploadRecords_DifferentKeyNames(t *testing.T) {
	env := newTestEnv(t)

	a := "사번,실적\nA001,100\n"
	b := "코드,실적\nA001,200\nA002,300\n"

	status, body := env.upload(
		map[string]string{"file_a": a, "file_b": b},
		map[string]string{"key_a": "사번", "key_b": "코드"},
	)
	require.Equal(t, http.StatusCreated, status, string(body))

	var up api.UploadResultDTO
	env.decode(body, &up)
	assert.Equal(t, 2, up.Records)

	status, _ = env.do(http.MethodGet, "/api/records/A002", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestUploadRecords_RepeatedKeys(t *testing.T) {
	// GIVEN: File B lists agent A001 twice, file A once
	// WHEN: Uploading, then a single file with "A001" and "a001 "
	// THEN: Every pairing is stored and lookups return the first row

	env := newTestEnv(t)

	a := "코드,실적\nA001,100000\n"
	b := "코드,실적\nA001,90000\nA001,20000\n"

	status, body := env.upload(
		map[string]string{"file_a": a, "file_b": b},
		map[string]string{"key_a": "코드"},
	)
	require.Equal(t, http.StatusCreated, status, string(body))

	var up api.UploadResultDTO
	env.decode(body, &up)
	assert.Equal(t, 2, up.Records)

	status, body = env.do(http.MethodGet, "/api/records/A001", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var rec api.RecordDTO
	env.decode(body, &rec)
	assert.Equal(t, "90000", rec.Fields["실적_B"])

	status, body = env.upload(
		map[string]string{"file_a": "코드,실적\nA001,1\na001 ,2\n"},
		map[string]string{"key_a": "코드"},
	)
	require.Equal(t, http.StatusCreated, status, string(body))
	env.decode(body, &up)
	assert.Equal(t, 2, up.Records)
}

func TestUploadRecords_Errors(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.upload(map[string]string{"file_a": fileA}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "missing key_a")

	status, _ = env.upload(nil, map[string]string{"key_a": "사원번호"})
	assert.Equal(t, http.StatusBadRequest, status, "missing file_a")

	status, _ = env.upload(map[string]string{"file_a": fileA, "file_b": fileB}, map[string]string{"key_a": "없는열"})
	assert.Equal(t, http.StatusBadRequest, status, "unknown key column")
}

func TestGetRecord_NotFound(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/api/records/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var errResp api.ErrorResponse
	env.decode(body, &errResp)
	assert.Equal(t, "Record not found", errResp.Error)
}

// =============================================================================
// EVALUATION
// =============================================================================

func TestEvaluate_InlineSchemes(t *testing.T) {
	// GIVEN: An ad-hoc record with JSON numbers and an inline scheme
	// WHEN: Evaluating
	// THEN: The inline scheme is used instead of the snapshot

	env := newTestEnv(t)

	req := map[string]any{
		"key":    "X1",
		"fields": map[string]any{"실적": 350000},
		"schemes": []map[string]any{{
			"id":            "weekly",
			"name":          "주차 시책",
			"tiers":         [][]int{{100000, 100}, {300000, 200}, {500000, 300}},
			"metric_fields": []string{"실적"},
		}},
	}
	status, body := env.do(http.MethodPost, "/api/evaluate", req)
	require.Equal(t, http.StatusOK, status, string(body))

	var eval api.EvaluationDTO
	env.decode(body, &eval)
	r := resultByID(t, eval, "weekly")
	assertDec(t, 300000, *r.AchievedTier)
	assertDec(t, 600000, r.PrizeAmount)
	assertDec(t, 150000, r.Shortfall)
	assertDec(t, 0, eval.GrandTotal, "tiered results are excluded from the grand total")
}

func TestEvaluate_SnapshotAndText(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(http.MethodPost, "/api/schemes",
		presets.BridgeProjectedJSON("bridge-2", "브릿지 시책 (2기간)", "당월실적", 100000))
	require.Equal(t, http.StatusCreated, status)

	req := map[string]any{"key": "X1", "name": "홍길동", "fields": map[string]any{"당월실적": "500000"}}
	status, body := env.do(http.MethodPost, "/api/evaluate?format=text", req)
	require.Equal(t, http.StatusOK, status)

	text := string(body)
	assert.True(t, strings.HasPrefix(text, "[홍길동님 시상 안내]"), text)
	assert.Contains(t, text, "1,800,000")
}

func TestEvaluate_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(http.MethodPost, "/api/evaluate", `{"key": "x"}`)
	assert.Equal(t, http.StatusBadRequest, status, "no fields")

	status, _ = env.do(http.MethodPost, "/api/evaluate", `{"fields": {"a": 1}, "schemes": [{"name": "x", "mode": "tiered"}]}`)
	assert.Equal(t, http.StatusBadRequest, status, "invalid inline scheme")
}

func TestManagerAgents_BatchAndRun(t *testing.T) {
	// GIVEN: The monthly demo data
	// WHEN: Listing manager M001's agents
	// THEN: Only M001's records are evaluated and a run is stored

	env := newTestEnv(t)
	status, body := env.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "monthly-standard"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(http.MethodGet, "/api/managers/m001/agents", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp api.ManagerAgentsDTO
	env.decode(body, &resp)
	assert.Equal(t, "M001", resp.ManagerCode)
	require.Len(t, resp.Agents, 2)
	assert.Equal(t, "A001", resp.Agents[0].RecordKey)
	assert.Equal(t, "김하나", resp.Agents[0].Name)
	assertDec(t, 2250000, resp.GrandTotal)
	assert.NotEmpty(t, resp.RunID)

	status, body = env.do(http.MethodGet, "/api/evaluations/runs", nil)
	require.Equal(t, http.StatusOK, status)
	var runs struct {
		Runs []api.EvaluationRunDTO `json:"runs"`
	}
	env.decode(body, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "manager:M001", runs.Runs[0].Scope)
	assert.Equal(t, 2, runs.Runs[0].RecordCount)
	assertDec(t, 2250000, runs.Runs[0].GrandTotal)
}

func TestManagerAgents_View(t *testing.T) {
	// GIVEN: The monthly demo data and a manager view with a category, a
	//        filtering numeric column and a column with a fallback
	// WHEN: Listing manager M001's agents
	// THEN: Filtered agents are left out and kept agents carry tags and
	//       display cells

	env := newTestEnv(t)
	status, body := env.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "monthly-standard"})
	require.Equal(t, http.StatusOK, status, string(body))

	view := map[string]any{
		"categories": []map[string]any{
			{"name": "우수", "conditions": []map[string]string{{"column": "누계실적", "condition": ">= 500,000"}}},
		},
		"columns": []map[string]any{
			{"column": "실적_1주차", "numeric": true, "condition": "> 200,000", "display_name": "1주차"},
			{"column": "휴대폰", "fallback": "성명"},
		},
	}
	status, body = env.do(http.MethodPut, "/api/view", view)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(http.MethodGet, "/api/managers/M001/agents", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp api.ManagerAgentsDTO
	env.decode(body, &resp)
	require.Len(t, resp.Agents, 1)
	agent := resp.Agents[0]
	assert.Equal(t, "A001", agent.RecordKey)
	assert.Equal(t, []string{"우수"}, agent.Tags)
	assert.Equal(t, []api.DisplayDTO{
		{Name: "1주차", Value: "350000"},
		{Name: "휴대폰", Value: "김하나"},
	}, agent.Display)
	assertDec(t, 2250000, resp.GrandTotal)

	status, body = env.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, status)
	var got api.ViewDTO
	env.decode(body, &got)
	assert.Len(t, got.Columns, 2)
	assert.Equal(t, "1주차", got.Columns[0].Name())
}

func TestSaveView_RejectsBadCondition(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(http.MethodPut, "/api/view", map[string]any{
		"categories": []map[string]any{
			{"name": "x", "conditions": []map[string]string{{"column": "실적", "condition": "about 3"}}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, status)
	var got api.ViewDTO
	env.decode(body, &got)
	assert.Empty(t, got.Categories)
}

func TestGetRecordEvaluation_Performance(t *testing.T) {
	// GIVEN: The monthly demo data
	// WHEN: Requesting the performance message for A001
	// THEN: Chosen fields are listed, then the paying schemes

	env := newTestEnv(t)
	status, body := env.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "monthly-standard"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(http.MethodGet, "/api/records/A001/evaluation?"+url.Values{
		"format": {"performance"},
		"fields": {"실적_1주차,누계실적"},
	}.Encode(), nil)
	require.Equal(t, http.StatusOK, status, string(body))

	text := string(body)
	assert.True(t, strings.HasPrefix(text, "📊 김하나님 실적 & 시상 현황"), text)
	assert.Contains(t, text, "  ▪ 실적_1주차: 350,000")
	assert.Contains(t, text, "  ▪ 누계실적: 900,000")
	assert.Contains(t, text, "  ▪ 총 시상금: 2,250,000원")
	assert.Contains(t, text, "  ▪ 브릿지 시책 (1기간): 1,800,000원")

	status, body = env.do(http.MethodGet, "/api/records/A001/evaluation?"+url.Values{
		"format": {"performance"},
		"fields": {"누계실적"},
		"prizes": {"false"},
	}.Encode(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "🏆")
}

func TestManagerAgents_UnknownManager(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "monthly-standard"})
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(http.MethodGet, "/api/managers/M999/agents", nil)
	require.Equal(t, http.StatusOK, status)

	var resp api.ManagerAgentsDTO
	env.decode(body, &resp)
	assert.Empty(t, resp.Agents)
	assertDec(t, 0, resp.GrandTotal)
}

// =============================================================================
// LOGS
// =============================================================================

func TestMessageLogs(t *testing.T) {
	env := newTestEnv(t)

	for _, m := range []api.MessageLogRequest{
		{ManagerCode: "m001", CustomerNumber: "A001", CustomerName: "김하나", MessageType: 1},
		{ManagerCode: "M001", CustomerNumber: "A001", CustomerName: "김하나", MessageType: 1},
		{ManagerCode: "M001", CustomerNumber: "A002", CustomerName: "이둘", MessageType: 2},
		{ManagerCode: "M002", CustomerNumber: "A003", CustomerName: "박셋", MessageType: 1},
	} {
		status, body := env.do(http.MethodPost, "/api/logs/messages", m)
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	status, _ := env.do(http.MethodPost, "/api/logs/messages", api.MessageLogRequest{ManagerCode: "M001"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(http.MethodGet, "/api/logs/messages/summary?manager_code=M001", nil)
	require.Equal(t, http.StatusOK, status)
	var one struct {
		Summary map[string]struct {
			Customers int `json:"customers"`
			Count     int `json:"count"`
		} `json:"summary"`
	}
	env.decode(body, &one)
	assert.Equal(t, 1, one.Summary["1"].Customers)
	assert.Equal(t, 2, one.Summary["1"].Count)
	assert.Equal(t, 1, one.Summary["2"].Count)

	status, body = env.do(http.MethodGet, "/api/logs/messages/summary", nil)
	require.Equal(t, http.StatusOK, status)
	var all struct {
		Summary []map[string]any `json:"summary"`
	}
	env.decode(body, &all)
	assert.Len(t, all.Summary, 3)

	status, body = env.do(http.MethodGet, "/api/logs/messages?manager_code=M001&customer_number=A001", nil)
	require.Equal(t, http.StatusOK, status)
	var msgs struct {
		Messages []api.MessageLogDTO `json:"messages"`
	}
	env.decode(body, &msgs)
	assert.Len(t, msgs.Messages, 2)
}

func TestLoginLogs(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		status, _ := env.do(http.MethodPost, "/api/logs/logins", api.LoginLogRequest{ManagerCode: "M001", ManagerName: "관리자"})
		require.Equal(t, http.StatusCreated, status)
	}
	status, _ := env.do(http.MethodPost, "/api/logs/logins", api.LoginLogRequest{ManagerCode: "M002"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = env.do(http.MethodPost, "/api/logs/logins", api.LoginLogRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(http.MethodGet, "/api/logs/logins/summary?limit=2", nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Summary []struct {
			ManagerCode string `json:"manager_code"`
			Count       int    `json:"count"`
		} `json:"summary"`
		Recent []map[string]any `json:"recent"`
	}
	env.decode(body, &resp)
	require.Len(t, resp.Summary, 2)
	assert.Equal(t, "M001", resp.Summary[0].ManagerCode)
	assert.Equal(t, 3, resp.Summary[0].Count)
	assert.Len(t, resp.Recent, 2)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"ok"`)

	status, body = env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "incentive_http_requests_total")
}

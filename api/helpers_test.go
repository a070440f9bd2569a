package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/store/sqlite"
)

type testEnv struct {
	t       *testing.T
	store   *sqlite.Store
	handler *api.Handler
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := api.NewHandler(store)
	h.Logger = logger
	h.Metrics = api.NewMetrics()

	srv := httptest.NewServer(api.NewRouter(h, nil))
	t.Cleanup(srv.Close)

	return &testEnv{t: t, store: store, handler: h, server: srv}
}

// do sends body (JSON-encoded unless it is a string) and returns the
// status and raw response body.
func (e *testEnv) do(method, path string, body any) (int, []byte) {
	e.t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(e.t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func (e *testEnv) decode(data []byte, v any) {
	e.t.Helper()
	require.NoError(e.t, json.Unmarshal(data, v), string(data))
}

// upload posts a multipart form with CSV files and text fields.
func (e *testEnv) upload(files map[string]string, fields map[string]string) (int, []byte) {
	e.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".csv")
		require.NoError(e.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(e.t, err)
	}
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	require.NoError(e.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/records/upload", &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func assertDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s %v", want, got, msgAndArgs)
}

func resultByID(t *testing.T, dto api.EvaluationDTO, id string) api.ResultDTO {
	t.Helper()
	for _, r := range dto.Results {
		if r.SchemeID == id {
			return r
		}
	}
	require.Failf(t, "result not found", "scheme %s", id)
	return api.ResultDTO{}
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ipcmatch/internal/convlog"
	"ipcmatch/internal/engine"
	"ipcmatch/internal/lexicon"
	"ipcmatch/internal/metrics"
	"ipcmatch/internal/service"
	"ipcmatch/internal/summarizer"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T, withSummary bool) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	e, err := engine.BuildFromFile("../engine/testdata/fixture.json", lexicon.MustDefault(), engine.DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	sink, err := convlog.Open(filepath.Join(t.TempDir(), "conv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	m := metrics.New(false)
	deps := service.Deps{Engine: engine.NewHolder(e), Sink: sink, Metrics: m}
	if withSummary {
		deps.Summarizer = summarizer.NewFrequencySummarizer(2)
	}
	svc, err := service.New(deps)
	require.NoError(t, err)
	return NewRouter(svc, m, zap.NewNop()), m
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, false)
	rec := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	r, _ := newRouter(t, true)
	rec := do(r, http.MethodPost, "/api/analyze", `{"description":"Someone stole my phone"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	sections, ok := body["sections"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, sections)
	first := sections[0].(map[string]any)
	assert.Equal(t, "379", first["section_number"])
	assert.Contains(t, body["message"], "Important Disclaimer")
	assert.NotEmpty(t, rec.Header().Get(sessionHeader), "a new session id is issued")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), sessionCookie+"=")
}

func TestAnalyzeRejectsBlankAndBadJSON(t *testing.T) {
	r, _ := newRouter(t, false)

	rec := do(r, http.MethodPost, "/api/analyze", `{"description":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide a description of the incident", decode(t, rec)["error"])

	rec = do(r, http.MethodPost, "/api/analyze", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, rec)["code"])
}

func TestLogsFollowSession(t *testing.T) {
	r, _ := newRouter(t, false)
	hdr := map[string]string{sessionHeader: "session-42"}
	rec := do(r, http.MethodPost, "/api/analyze", `{"description":"he hit me with a stick"}`, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Set-Cookie"), "existing session is reused")

	rec = do(r, http.MethodGet, "/api/logs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["logs"].([]any)
	require.Len(t, logs, 1)
	entry := logs[0].(map[string]any)
	assert.Equal(t, "session-42", entry["session_id"])
	assert.Equal(t, "he hit me with a stick", entry["user_input"])

	rec = do(r, http.MethodGet, "/api/logs?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSectionsSearchStatus(t *testing.T) {
	r, _ := newRouter(t, false)

	rec := do(r, http.MethodGet, "/api/sections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["sections"], 4)

	rec = do(r, http.MethodGet, "/api/search?q=theft", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "theft", body["query"])
	assert.NotEmpty(t, body["sections"])

	rec = do(r, http.MethodGet, "/api/search", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["sections"])

	rec = do(r, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	eng := st["engine"].(map[string]any)
	assert.EqualValues(t, 4, eng["total_sections"])
	assert.Equal(t, true, eng["pattern_boost"])
	assert.Equal(t, true, st["conversation_log"])
}

func TestSummary(t *testing.T) {
	r, _ := newRouter(t, false)
	rec := do(r, http.MethodPost, "/api/summary", `{"description":"Someone stole my phone"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec)["relevant_sections"], "379")

	r, _ = newRouter(t, true)
	rec = do(r, http.MethodPost, "/api/summary", `{"description":"Someone stole my phone"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["summary"])
	assert.Equal(t, "frequency", body["ai_model"])
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newRouter(t, false)
	do(r, http.MethodPost, "/api/analyze", `{"description":"Someone stole my phone"}`, nil)
	rec := do(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ipcmatch_queries_total")
}

func TestSuggestions(t *testing.T) {
	r, _ := newRouter(t, true)
	rec := do(r, http.MethodPost, "/api/suggestions", `{"description":"Someone stole my phone"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["suggestions"], 4)
	assert.Contains(t, body["relevant_sections"], "379")
	assert.Positive(t, body["confidence"])
	assert.NotEmpty(t, body["summary"])

	rec = do(r, http.MethodPost, "/api/suggestions", `{"description":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, rec)["code"])
}

func TestRankSamples(t *testing.T) {
	r, _ := newRouter(t, false)

	rec := do(r, http.MethodPost, "/api/test-enhanced", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, len(service.SampleQueries), body["total_tests"])
	results := body["test_results"].([]any)
	require.Len(t, results, len(service.SampleQueries))
	assault := results[1].(map[string]any)
	assert.Equal(t, service.SampleQueries[1], assault["query"])
	assert.ElementsMatch(t, []any{"323", "324"}, assault["sections"])

	rec = do(r, http.MethodPost, "/api/test-enhanced", `{"queries":["defamation"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["total_tests"])
	first := body["test_results"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"500"}, first["sections"])

	rec = do(r, http.MethodPost, "/api/test-enhanced", `{"queries":"nope"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

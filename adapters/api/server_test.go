package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"abtest/app"
	"abtest/domain/experiment"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.GinMode = gin.TestMode
	cfg.Server.MaxConcurrentRuns = 1
	svc, err := app.NewAnalysisService(cfg, nil)
	require.NoError(t, err)
	return NewServer(svc, cfg.Server, nil)
}

func records(t *testing.T, groups experiment.GroupPair) []map[string]any {
	t.Helper()
	cfg := testkit.DefaultConfig()
	cfg.Groups = groups
	ds, err := testkit.Generate(cfg)
	require.NoError(t, err)

	out := make([]map[string]any, len(ds.Records))
	for i, r := range ds.Records {
		out[i] = map[string]any{
			"user_id":    r.UserID,
			"test_group": r.Group.String(),
			"converted":  r.Converted,
			"total_ads":  r.ExposureCount,
		}
	}
	return out
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/v1/analyze", AnalyzeRequest{Records: records(t, experiment.DefaultGroups())})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["run_id"])
	conversion := body["conversion_test"].(map[string]any)
	assert.Equal(t, experiment.TestTwoProportionZ, conversion["test_name"])
	exposure := body["exposure_test"].(map[string]any)["outcome"].(map[string]any)
	assert.Equal(t, "parametric", exposure["method_used"])
}

func TestAnalyze_GroupAndAlphaOverrides(t *testing.T) {
	s := newTestServer(t)
	alpha := 0.1
	groups := experiment.GroupPair{Treatment: "ad", Control: "psa"}

	w := post(t, s, "/v1/analyze", AnalyzeRequest{Records: records(t, groups), Treatment: "ad", Control: "psa", Alpha: &alpha})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Alpha  float64              `json:"alpha"`
		Groups experiment.GroupPair `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0.1, body.Alpha)
	assert.Equal(t, groups, body.Groups)
}

func TestAnalyze_MarkdownFormat(t *testing.T) {
	s := newTestServer(t)

	w := post(t, s, "/v1/analyze?format=markdown", AnalyzeRequest{Records: records(t, experiment.DefaultGroups())})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "## Conclusions")
}

func TestAnalyze_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"no records", "/v1/analyze", map[string]any{"records": []any{}}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"alpha out of range", "/v1/analyze", map[string]any{"records": []any{map[string]any{"user_id": "1"}}, "alpha": 2}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad format", "/v1/analyze?format=pdf", AnalyzeRequest{Records: records(t, experiment.DefaultGroups())}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"unknown group", "/v1/analyze", AnalyzeRequest{Records: records(t, experiment.GroupPair{Treatment: "x", Control: "y"})}, http.StatusBadRequest, errors.CodeSchemaError},
		{"too few observations", "/v1/analyze", AnalyzeRequest{Records: []map[string]any{
			{"user_id": "1", "test_group": "treatment", "converted": true, "exposure_count": 4},
			{"user_id": "2", "test_group": "treatment", "converted": false, "exposure_count": 7},
			{"user_id": "3", "test_group": "control", "converted": false, "exposure_count": 5},
			{"user_id": "4", "test_group": "control", "converted": true, "exposure_count": 3},
			{"user_id": "5", "test_group": "control", "converted": false, "exposure_count": 8},
		}}, http.StatusUnprocessableEntity, errors.CodeInsufficientSample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, s, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestAnalyze_Overloaded(t *testing.T) {
	s := newTestServer(t)
	require.True(t, s.runs.TryAcquire(1))
	defer s.runs.Release(1)

	w := post(t, s, "/v1/analyze", AnalyzeRequest{Records: records(t, experiment.DefaultGroups())})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "OVERLOADED", decodeError(t, w).Code)
}

func TestTableFromRecords(t *testing.T) {
	table := tableFromRecords([]map[string]any{
		{"User ID": "a", "converted": true, "total_ads": 12.0},
		{"User ID": "b", "extra": nil},
	})
	assert.Equal(t, []string{"converted", "extra", "total_ads", "user_id"}, table.Headers)
	assert.Equal(t, "true", table.Rows[0]["converted"])
	assert.Equal(t, "12", table.Rows[0]["total_ads"])
	assert.Equal(t, "", table.Rows[1]["extra"])
}

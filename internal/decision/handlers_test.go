package decision

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudgate/internal/rules"
)

func newTestRouter(t *testing.T, prob float64) (*gin.Engine, *rules.MemoryStore, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs := rules.NewMemoryStore()
	ds := NewMemoryStore()
	p := NewPipeline(rs, fixedScorer{prob}, ds, 0)
	h := NewHandler(p, ds, 2)

	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"))
	return r, rs, ds
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDecideEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.23)

	w := doJSON(r, "POST", "/v1/decisions", `{"transaction_id":"h-1","transaction_amount":42}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Decision  Decision `json:"decision"`
		Persisted bool     `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Persisted)
	assert.Equal(t, "h-1", resp.Decision.TransactionID)
	assert.Equal(t, SourceModel, resp.Decision.FraudSource)
	assert.Equal(t, 0.23, resp.Decision.FraudScore)
	assert.False(t, resp.Decision.IsFraud)
}

func TestDecideEndpoint_RuleMatch(t *testing.T) {
	r, rs, _ := newTestRouter(t, 0.1)
	mustAddRule(t, rs, "transaction_amount > 10000", "High value - flagged for review")

	w := doJSON(r, "POST", "/v1/decisions", `{"transaction_id":"h-2","transaction_amount":15000}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Decision Decision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Decision.IsFraud)
	assert.Equal(t, SourceRule, resp.Decision.FraudSource)
	assert.Equal(t, "High value - flagged for review", resp.Decision.FraudReason)
	assert.Equal(t, 1.0, resp.Decision.FraudScore)
}

func TestDecideEndpoint_BadInput(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.1)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/decisions", `[1,2,3]`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/decisions", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/decisions", `not json`).Code)
}

func TestDecideEndpoint_Duplicate(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.1)
	body := `{"transaction_id":"h-3","transaction_amount":5}`

	require.Equal(t, http.StatusOK, doJSON(r, "POST", "/v1/decisions", body).Code)

	w := doJSON(r, "POST", "/v1/decisions", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate"`)
}

func TestBatchEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.2)

	body := `{"transactions":[
		{"transaction_id":"b-1","transaction_amount":1},
		{"transaction_id":"b-2","transaction_amount":2},
		{},
		{"transaction_id":"b-3","transaction_amount":3}
	]}`
	w := doJSON(r, "POST", "/v1/decisions/batch", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []BatchResult `json:"results"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.Count)
	assert.Equal(t, "b-1", resp.Results[0].Decision.TransactionID)
	assert.Equal(t, "b-2", resp.Results[1].Decision.TransactionID)
	assert.NotEmpty(t, resp.Results[2].Error)
	assert.Nil(t, resp.Results[2].Decision)
	assert.Equal(t, "b-3", resp.Results[3].Decision.TransactionID)
}

func TestBatchEndpoint_BadInput(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.2)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/decisions/batch", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/decisions/batch", `{"transactions":[]}`).Code)
}

func TestGetAndListDecisions(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.2)

	assert.Equal(t, http.StatusNotFound, doJSON(r, "GET", "/v1/decisions/g-1", "").Code)

	require.Equal(t, http.StatusOK, doJSON(r, "POST", "/v1/decisions", `{"transaction_id":"g-1","transaction_amount":7}`).Code)

	w := doJSON(r, "GET", "/v1/decisions/g-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"g-1"`)

	w = doJSON(r, "GET", "/v1/decisions?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestReportEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.2)

	body := `{"transaction_id":"r-1","reporting_entity_id":"bank-9","fraud_details":"chargeback"}`

	w := doJSON(r, "POST", "/v1/reports", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var ack struct {
		Acknowledged bool `json:"reporting_acknowledged"`
		FailureCode  int  `json:"failure_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, 0, ack.FailureCode)

	// second report for the same transaction id is rejected
	w = doJSON(r, "POST", "/v1/reports", body)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.False(t, ack.Acknowledged)
	assert.Equal(t, 1, ack.FailureCode)
}

func TestReportEndpoint_MissingFields(t *testing.T) {
	r, _, _ := newTestRouter(t, 0.2)

	w := doJSON(r, "POST", "/v1/reports", `{"transaction_id":"r-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

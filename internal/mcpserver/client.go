package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the FraudGate API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // Optional bearer token; sent only when set
}

// FraudGateClient is a pure HTTP client for the FraudGate API.
type FraudGateClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewFraudGateClient creates a new client for the FraudGate API.
func NewFraudGateClient(cfg Config) *FraudGateClient {
	return &FraudGateClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *FraudGateClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// CheckTransaction submits a transaction for a fraud decision.
func (c *FraudGateClient) CheckTransaction(ctx context.Context, txn map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/decisions", nil, txn)
}

// GetDecision fetches a persisted decision by transaction id.
func (c *FraudGateClient) GetDecision(ctx context.Context, transactionID string) (json.RawMessage, error) {
	path := "/v1/decisions/" + url.PathEscape(transactionID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// ListDecisions lists recent decisions, newest first.
func (c *FraudGateClient) ListDecisions(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/decisions", q, nil)
}

// ListRules returns all fraud rules in evaluation order.
func (c *FraudGateClient) ListRules(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/rules", nil, nil)
}

// AddRule creates a new fraud rule.
func (c *FraudGateClient) AddRule(ctx context.Context, cond, action string, enabled bool) (json.RawMessage, error) {
	body := map[string]any{
		"condition": cond,
		"action":    action,
		"enabled":   enabled,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/rules", nil, body)
}

// DeleteRule removes a rule by id. Remaining rules are renumbered.
func (c *FraudGateClient) DeleteRule(ctx context.Context, id int) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodDelete, "/v1/rules/"+strconv.Itoa(id), nil, nil)
}

// ReportFraud files a fraud report against a transaction.
func (c *FraudGateClient) ReportFraud(ctx context.Context, transactionID, entityID, details string) (json.RawMessage, error) {
	body := map[string]string{
		"transaction_id":      transactionID,
		"reporting_entity_id": entityID,
		"fraud_details":       details,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/reports", nil, body)
}

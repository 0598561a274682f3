package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FraudGateClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FraudGateClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckTransaction submits a transaction for a fraud decision.
func (h *Handlers) HandleCheckTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetArguments()["transaction"]
	txn, ok := raw.(map[string]any)
	if !ok || len(txn) == 0 {
		return mcp.NewToolResultError("transaction must be a non-empty object"), nil
	}

	resp, err := h.client.CheckTransaction(ctx, txn)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check transaction: %v", err)), nil
	}

	text, err := formatDecisionResponse(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetDecision fetches a persisted decision by transaction id.
func (h *Handlers) HandleGetDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transactionID := req.GetString("transaction_id", "")
	if transactionID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	resp, err := h.client.GetDecision(ctx, transactionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get decision: %v", err)), nil
	}

	text, err := formatDecisionResponse(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListDecisions lists recent decisions.
func (h *Handlers) HandleListDecisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	resp, err := h.client.ListDecisions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list decisions: %v", err)), nil
	}

	text, err := formatDecisionList(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decisions: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListRules lists all rules in evaluation order.
func (h *Handlers) HandleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := h.client.ListRules(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list rules: %v", err)), nil
	}

	text, err := formatRuleList(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rules: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAddRule creates a new fraud rule.
func (h *Handlers) HandleAddRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cond := req.GetString("condition", "")
	if cond == "" {
		return mcp.NewToolResultError("condition is required"), nil
	}
	action := req.GetString("action", "")
	if action == "" {
		return mcp.NewToolResultError("action is required"), nil
	}
	enabled := req.GetBool("enabled", true)

	resp, err := h.client.AddRule(ctx, cond, action, enabled)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add rule: %v", err)), nil
	}

	var wrapper struct {
		Rule ruleInfo `json:"rule"`
	}
	if err := json.Unmarshal(resp, &wrapper); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rule: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Rule %d created.\n  Condition: %s\n  Action: %s\n  Enabled: %t",
		wrapper.Rule.ID, wrapper.Rule.Condition, wrapper.Rule.Action, wrapper.Rule.Enabled)), nil
}

// HandleDeleteRule deletes a rule by id.
func (h *Handlers) HandleDeleteRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetInt("rule_id", 0)
	if id < 1 {
		return mcp.NewToolResultError("rule_id must be a positive integer"), nil
	}

	if _, err := h.client.DeleteRule(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete rule: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Rule %d deleted. Remaining rules were renumbered to stay contiguous.", id)), nil
}

// HandleReportFraud files a fraud report.
func (h *Handlers) HandleReportFraud(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transactionID := req.GetString("transaction_id", "")
	if transactionID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}
	entityID := req.GetString("reporting_entity_id", "")
	if entityID == "" {
		return mcp.NewToolResultError("reporting_entity_id is required"), nil
	}
	details := req.GetString("fraud_details", "")
	if details == "" {
		return mcp.NewToolResultError("fraud_details is required"), nil
	}

	_, err := h.client.ReportFraud(ctx, transactionID, entityID, details)
	if err != nil {
		// A duplicate report comes back as a 409 with the acknowledgment body
		if strings.Contains(err.Error(), "409") {
			return mcp.NewToolResultText(fmt.Sprintf(
				"Report for transaction %s was not accepted: a report already exists for this transaction.",
				transactionID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to report fraud: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Fraud report filed for transaction %s by %s.", transactionID, entityID)), nil
}

// --- Formatting helpers ---

type decisionInfo struct {
	TransactionID string  `json:"transaction_id"`
	IsFraud       bool    `json:"is_fraud"`
	FraudSource   string  `json:"fraud_source"`
	FraudReason   string  `json:"fraud_reason"`
	FraudScore    float64 `json:"fraud_score"`
	DecidedAt     string  `json:"decided_at"`
}

type ruleInfo struct {
	ID        int    `json:"id"`
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Enabled   bool   `json:"enabled"`
}

func formatDecisionResponse(raw json.RawMessage) (string, error) {
	// Decide responses wrap the decision; Get returns it bare.
	var wrapper struct {
		Decision  *decisionInfo `json:"decision"`
		Persisted *bool         `json:"persisted"`
		Warning   string        `json:"warning"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", err
	}

	d := wrapper.Decision
	if d == nil {
		var bare decisionInfo
		if err := json.Unmarshal(raw, &bare); err != nil {
			return "", err
		}
		if bare.TransactionID == "" && bare.FraudSource == "" {
			return "", fmt.Errorf("unexpected decision response format")
		}
		d = &bare
	}

	var sb strings.Builder
	sb.WriteString(formatDecision(d))
	if wrapper.Persisted != nil && !*wrapper.Persisted {
		sb.WriteString("\nWarning: decision was not persisted")
		if wrapper.Warning != "" {
			fmt.Fprintf(&sb, " (%s)", wrapper.Warning)
		}
		sb.WriteString(".")
	}
	return sb.String(), nil
}

func formatDecision(d *decisionInfo) string {
	verdict := "LEGITIMATE"
	if d.IsFraud {
		verdict = "FRAUD"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction %s: %s\n", d.TransactionID, verdict)
	fmt.Fprintf(&sb, "  Source: %s\n", d.FraudSource)
	fmt.Fprintf(&sb, "  Reason: %s\n", d.FraudReason)
	fmt.Fprintf(&sb, "  Score: %.2f", d.FraudScore)
	if d.DecidedAt != "" {
		fmt.Fprintf(&sb, "\n  Decided: %s", d.DecidedAt)
	}
	return sb.String()
}

func formatDecisionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Decisions []decisionInfo `json:"decisions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected decisions response format")
	}

	if len(resp.Decisions) == 0 {
		return "No decisions recorded yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d decision(s), newest first:\n\n", len(resp.Decisions))
	for i, d := range resp.Decisions {
		verdict := "legit"
		if d.IsFraud {
			verdict = "FRAUD"
		}
		fmt.Fprintf(&sb, "%d. %s: %s (%s, score %.2f)\n", i+1, d.TransactionID, verdict, d.FraudSource, d.FraudScore)
		if d.FraudReason != "" {
			fmt.Fprintf(&sb, "   %s\n", d.FraudReason)
		}
	}
	return sb.String(), nil
}

func formatRuleList(raw json.RawMessage) (string, error) {
	var resp struct {
		Rules []ruleInfo `json:"rules"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected rules response format")
	}

	if len(resp.Rules) == 0 {
		return "No rules configured. All transactions go to the model.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d rule(s) in evaluation order:\n\n", len(resp.Rules))
	for _, r := range resp.Rules {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&sb, "%d. [%s] IF %s THEN %q\n", r.ID, state, r.Condition, r.Action)
	}
	return sb.String(), nil
}

package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the FraudGate MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckTransaction = mcp.NewTool("check_transaction",
	mcp.WithDescription(
		"Submit a payment transaction for a fraud decision. "+
			"Enabled rules are consulted first in priority order; if none matches, "+
			"the statistical model scores the transaction. "+
			"Returns the decision with fraud verdict, source, reason, and score."),
	mcp.WithObject("transaction",
		mcp.Required(),
		mcp.Description("The transaction fields as a JSON object. "+
			"Include transaction_id to make the decision retrievable later. "+
			"Common fields: transaction_amount, transaction_channel, transaction_payment_mode, payer_email, payee_id.")),
)

var ToolGetDecision = mcp.NewTool("get_decision",
	mcp.WithDescription(
		"Fetch the persisted fraud decision for a previously checked transaction. "+
			"Decisions are write-once: the first decision for a transaction id is the one on record."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction id used when the transaction was checked")),
)

var ToolListDecisions = mcp.NewTool("list_decisions",
	mcp.WithDescription(
		"List recent fraud decisions, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of decisions to return (default 20)")),
)

var ToolListRules = mcp.NewTool("list_rules",
	mcp.WithDescription(
		"List all fraud rules in evaluation order. "+
			"Rules are checked by ascending id and the first enabled match decides the transaction."),
)

var ToolAddRule = mcp.NewTool("add_rule",
	mcp.WithDescription(
		"Add a new fraud rule. The rule is appended after existing rules, so it is "+
			"evaluated last. Conditions compare a transaction field against a value, "+
			"e.g. 'transaction_amount > 10000'. An action containing a safe keyword "+
			"(safe, approved, all good, verified, trusted) marks matches as legitimate; "+
			"any other action marks them as fraud."),
	mcp.WithString("condition",
		mcp.Required(),
		mcp.Description("Field comparison, e.g. 'transaction_amount > 10000' or 'transaction_channel == mobile'")),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("What to record when the rule matches; becomes the decision's fraud reason")),
	mcp.WithBoolean("enabled",
		mcp.Description("Whether the rule participates in evaluation (default true)")),
)

var ToolDeleteRule = mcp.NewTool("delete_rule",
	mcp.WithDescription(
		"Delete a fraud rule by id. Remaining rules are renumbered so ids stay "+
			"contiguous from 1; later rules shift down by one."),
	mcp.WithNumber("rule_id",
		mcp.Required(),
		mcp.Description("The id of the rule to delete")),
)

var ToolReportFraud = mcp.NewTool("report_fraud",
	mcp.WithDescription(
		"File a fraud report against a transaction. Reports are append-only and "+
			"one per transaction: a second report for the same transaction is rejected."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction being reported")),
	mcp.WithString("reporting_entity_id",
		mcp.Required(),
		mcp.Description("Identifier of the entity filing the report (e.g. a merchant or bank id)")),
	mcp.WithString("fraud_details",
		mcp.Required(),
		mcp.Description("Free-text description of the suspected fraud")),
)

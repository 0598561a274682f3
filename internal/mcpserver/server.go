package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all FraudGate tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraudgate", "1.0.0")
	client := NewFraudGateClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCheckTransaction, h.HandleCheckTransaction)
	s.AddTool(ToolGetDecision, h.HandleGetDecision)
	s.AddTool(ToolListDecisions, h.HandleListDecisions)
	s.AddTool(ToolListRules, h.HandleListRules)
	s.AddTool(ToolAddRule, h.HandleAddRule)
	s.AddTool(ToolDeleteRule, h.HandleDeleteRule)
	s.AddTool(ToolReportFraud, h.HandleReportFraud)

	return s
}

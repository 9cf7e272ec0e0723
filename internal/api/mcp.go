package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/workflow"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *workflow.Service
	Queue   Dispatcher // optional; if nil, send_rfp delivers inline
}

// NewMCPServer creates an MCP server with the procura tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"procura",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("procura drafts RFPs, sends them to vendors, and scores and compares the proposals they reply with."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_rfps",
			mcp.WithDescription("List recent RFPs with their status."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of RFPs (default 20)")),
		),
		mcpListRFPs(deps),
	)

	s.AddTool(
		mcp.NewTool("get_rfp",
			mcp.WithDescription("Return one RFP with its requirements."),
			mcp.WithString("id", mcp.Description("RFP id"), mcp.Required()),
		),
		mcpGetRFP(deps),
	)

	s.AddTool(
		mcp.NewTool("list_proposals",
			mcp.WithDescription("List the vendor proposals received for an RFP, with their evaluations."),
			mcp.WithString("rfp_id", mcp.Description("RFP id"), mcp.Required()),
		),
		mcpListProposals(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_proposal",
			mcp.WithDescription("Re-score one proposal against its RFP."),
			mcp.WithString("proposal_id", mcp.Description("Proposal id"), mcp.Required()),
		),
		mcpEvaluateProposal(deps),
	)

	s.AddTool(
		mcp.NewTool("compare_proposals",
			mcp.WithDescription("Rank the proposals of an RFP and recommend a vendor."),
			mcp.WithString("rfp_id", mcp.Description("RFP id"), mcp.Required()),
			mcp.WithBoolean("force", mcp.Description("Recompute even if a cached comparison is valid")),
		),
		mcpCompare(deps),
	)

	s.AddTool(
		mcp.NewTool("send_rfp",
			mcp.WithDescription("Email an RFP to vendors, given by id or email address."),
			mcp.WithString("rfp_id", mcp.Description("RFP id"), mcp.Required()),
			mcp.WithArray("vendors", mcp.Description("Vendor ids or email addresses"), mcp.Required()),
		),
		mcpSendRFP(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send one message to the RFP drafting assistant."),
			mcp.WithString("message", mcp.Description("What to tell the assistant"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Conversation to continue; omit to start a new one")),
		),
		mcpChat(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"procura://vendors",
			"Vendors",
			mcp.WithResourceDescription("Known vendors as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceVendors(deps),
	)

	return s
}

func mcpListRFPs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		rfps, err := deps.Service.Store().ListRFPs(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list rfps: %v", err)), nil
		}

		type rfpSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Status    string `json:"status"`
			Budget    string `json:"budget,omitempty"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]rfpSummary, len(rfps))
		for i, r := range rfps {
			out[i] = rfpSummary{ID: r.ID, Title: r.Title, Status: string(r.Status), CreatedAt: r.CreatedAt.Format(time.RFC3339)}
			if r.Budget != nil {
				out[i].Budget = money.Format(*r.Budget)
			}
		}
		return mcpJSON(out)
	}
}

func mcpGetRFP(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		r, err := deps.Service.Store().GetRFP(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get rfp: %v", err)), nil
		}
		return mcpJSON(r)
	}
}

func mcpListProposals(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("rfp_id")
		if err != nil {
			return mcpError("rfp_id is required"), nil
		}
		ps, err := deps.Service.Store().ListProposals(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list proposals: %v", err)), nil
		}
		if len(ps) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(ps)
	}
}

func mcpEvaluateProposal(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("proposal_id")
		if err != nil {
			return mcpError("proposal_id is required"), nil
		}
		eval, err := deps.Service.EvaluateProposal(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("evaluation failed: %v", err)), nil
		}
		return mcpJSON(eval)
	}
}

func mcpCompare(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("rfp_id")
		if err != nil {
			return mcpError("rfp_id is required"), nil
		}
		res, err := deps.Service.Compare(ctx, id, req.GetBool("force", false))
		if err != nil {
			return mcpError(fmt.Sprintf("comparison failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpSendRFP(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("rfp_id")
		if err != nil {
			return mcpError("rfp_id is required"), nil
		}
		refs := req.GetStringSlice("vendors", nil)
		if len(refs) == 0 {
			return mcpError("vendors is required"), nil
		}

		if deps.Queue != nil {
			jobID, err := deps.Queue.Dispatch(id, refs)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to queue delivery: %v", err)), nil
			}
			return mcpText(fmt.Sprintf("Queued delivery of RFP %s as job %s", id, jobID)), nil
		}

		res, err := deps.Service.SendRFP(ctx, id, refs)
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		res, err := deps.Service.Chat(ctx, req.GetString("conversation_id", ""), msg)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpResourceVendors(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		vs, err := deps.Service.Vendors().List()
		if err != nil {
			return nil, fmt.Errorf("failed to list vendors: %w", err)
		}
		b, err := json.Marshal(vs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal vendors: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(msg)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Every tool call acts as Actor.
type MCPDeps struct {
	Service *interview.Service
	Actor   storage.User
}

// NewMCPServer creates an MCP server with the interview tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"intervue",
		apiVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("intervue: run mock interviews, answer questions and get LLM evaluations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_questions",
			mcp.WithDescription("List questions from the question bank."),
			mcp.WithString("category", mcp.Description("Filter by category, e.g. Excel")),
			mcp.WithString("difficulty", mcp.Description("easy, medium or hard")),
			mcp.WithString("type", mcp.Description("objective, multi_turn or assignment")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of questions (default 20)")),
		),
		mcpListQuestions(deps),
	)

	s.AddTool(
		mcp.NewTool("similar_questions",
			mcp.WithDescription("Find questions semantically similar to a piece of text."),
			mcp.WithString("text", mcp.Description("Text to search for"), mcp.Required()),
			mcp.WithNumber("n", mcp.Description("Number of results (default 5)")),
			mcp.WithString("category", mcp.Description("Restrict to a category")),
			mcp.WithString("difficulty", mcp.Description("Restrict to a difficulty")),
		),
		mcpSimilarQuestions(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Show an interview session with its questions and responses."),
			mcp.WithString("session_id", mcp.Required()),
		),
		mcpGetSession(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_answer",
			mcp.WithDescription("Submit an answer to a question of an in-progress session."),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithString("question_id", mcp.Required()),
			mcp.WithString("answer", mcp.Description("Answer as a JSON object, e.g. {\"text\":\"...\"}"), mcp.Required()),
			mcp.WithNumber("time_taken", mcp.Description("Seconds spent on the answer")),
		),
		mcpSubmitAnswer(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_answer",
			mcp.WithDescription("Score a submitted answer and update the session score."),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithString("question_id", mcp.Required()),
		),
		mcpEvaluateAnswer(deps),
	)

	s.AddTool(
		mcp.NewTool("follow_up",
			mcp.WithDescription("Generate a follow-up question for a submitted answer."),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithString("question_id", mcp.Required()),
		),
		mcpFollowUp(deps),
	)

	s.AddTool(
		mcp.NewTool("quick_score",
			mcp.WithDescription("Grade a submitted answer by its length, without an LLM."),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithString("question_id", mcp.Required()),
		),
		mcpQuickScore(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"interview://sessions/recent",
			"Recent Sessions",
			mcp.WithResourceDescription("Last 10 interview sessions visible to the current user"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentSessions(deps),
	)

	return s
}

func mcpListQuestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		qs, err := deps.Service.ListQuestions(ctx, storage.QuestionFilter{
			Category:   req.GetString("category", ""),
			Difficulty: req.GetString("difficulty", ""),
			Type:       req.GetString("type", ""),
			Limit:      limit,
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(qs)
	}
}

func mcpSimilarQuestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		matches, err := deps.Service.SimilarQuestions(ctx, interview.SimilarQuery{
			Text:       text,
			N:          req.GetInt("n", 5),
			Category:   req.GetString("category", ""),
			Difficulty: req.GetString("difficulty", ""),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if len(matches) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(matches)
	}
}

func mcpGetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		details, err := deps.Service.GetSession(ctx, deps.Actor, id)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(details)
	}
}

func mcpSubmitAnswer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		questionID, err := req.RequireString("question_id")
		if err != nil {
			return mcpError("question_id is required"), nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcpError("answer is required"), nil
		}

		in := interview.AnswerInput{QuestionID: questionID, Answer: json.RawMessage(answer)}
		if tt := req.GetInt("time_taken", -1); tt >= 0 {
			in.TimeTaken = &tt
		}
		resp, err := deps.Service.SubmitAnswer(ctx, deps.Actor, sessionID, in)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(resp)
	}
}

func mcpEvaluateAnswer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		questionID, err := req.RequireString("question_id")
		if err != nil {
			return mcpError("question_id is required"), nil
		}
		res, err := deps.Service.EvaluateAnswer(ctx, deps.Actor, sessionID, questionID)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(res)
	}
}

func mcpFollowUp(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		questionID, err := req.RequireString("question_id")
		if err != nil {
			return mcpError("question_id is required"), nil
		}
		fq, err := deps.Service.FollowUp(ctx, deps.Actor, sessionID, questionID)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fq.Text), nil
	}
}

func mcpQuickScore(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		questionID, err := req.RequireString("question_id")
		if err != nil {
			return mcpError("question_id is required"), nil
		}
		res, err := deps.Service.QuickScore(ctx, deps.Actor, sessionID, questionID)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(res)
	}
}

func mcpResourceRecentSessions(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		summaries, err := deps.Service.ListSessions(ctx, deps.Actor, storage.SessionFilter{Limit: 10})
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if summaries == nil {
			summaries = []interview.SessionSummary{}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sessions: %w", err)
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
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// CodeToolDeps contains dependencies for code generation tools.
type CodeToolDeps struct {
	Codegen services.CodegenService
	Logger  *zap.Logger
}

// RegisterCodeTools registers the generate_code tool.
func RegisterCodeTools(s *server.MCPServer, deps *CodeToolDeps) {
	tool := mcp.NewTool(
		"generate_code",
		mcp.WithDescription(
			"Generate an architecture and starter source files for one or more saved ideas. "+
				"Artifacts come back in the order the ids were given. "+
				"An artifact with generation_error set was built from templates because the model failed.",
		),
		mcp.WithArray(
			"idea_ids",
			mcp.Required(),
			mcp.Description("UUIDs of ideas returned by create_ideas"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := requireUserID(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := extractStringSlice(arguments(req), "idea_ids", deps.Logger)
		if err != nil {
			return NewErrorResult("invalid_input", err.Error()), nil
		}
		if len(raw) == 0 {
			return NewErrorResult("invalid_input", "idea_ids must contain at least one id"), nil
		}
		ids, err := parseIdeaIDs(raw)
		if err != nil {
			return NewErrorResult("invalid_input", err.Error()), nil
		}

		artifacts, err := deps.Codegen.GenerateArtifacts(ctx, userID, ids)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		degraded := 0
		for _, a := range artifacts {
			if a.Degraded() {
				degraded++
			}
		}
		return jsonResult(struct {
			Artifacts []*models.CodeArtifact `json:"artifacts"`
			Count     int                    `json:"count"`
			Degraded  int                    `json:"degraded"`
		}{Artifacts: artifacts, Count: len(artifacts), Degraded: degraded})
	})
}

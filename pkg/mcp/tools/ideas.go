// Package tools provides the MCP tools exposed by ideaforge.
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

// IdeaToolDeps contains dependencies for idea tools.
type IdeaToolDeps struct {
	Ideation services.IdeationService
	Ideas    services.IdeaService
	Quota    services.QuotaService
	Logger   *zap.Logger
}

// RegisterIdeaTools registers ideation, like and quota tools.
func RegisterIdeaTools(s *server.MCPServer, deps *IdeaToolDeps) {
	registerCreateIdeasTool(s, deps)
	registerLikeIdeaTool(s, deps)
	registerListIdeasTool(s, deps)
	registerQuotaStatusTool(s, deps)
}

type createIdeasResponse struct {
	Ideas []*models.Idea      `json:"ideas"`
	Count int                 `json:"count"`
	Quota *models.QuotaStatus `json:"quota,omitempty"`
}

func registerCreateIdeasTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"create_ideas",
		mcp.WithDescription(
			"Generate a batch of six business ideas for a keyword and save them. "+
				"Each call uses one unit of the caller's quota; check quota_status first. "+
				"Returns the saved ideas with their ids, which generate_code accepts.",
		),
		mcp.WithString(
			"keyword",
			mcp.Required(),
			mcp.Description("Market, audience or theme to brainstorm around (e.g., 'fitness', 'pet care')"),
		),
		mcp.WithObject(
			"preferences",
			mcp.Description("Optional - Free-form preferences such as {\"market\": \"B2B\", \"budget\": \"low\"}"),
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

		keyword, err := req.RequireString("keyword")
		if err != nil {
			return nil, err
		}
		keyword = trimString(keyword)
		if keyword == "" {
			return NewErrorResult("invalid_input", "keyword must not be empty"), nil
		}

		ideas, err := deps.Ideation.CreateIdeas(ctx, userID, keyword, getOptionalObject(req, "preferences"))
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to create ideas: %w", err)
		}

		resp := createIdeasResponse{Ideas: ideas, Count: len(ideas)}
		if status, err := deps.Quota.Status(ctx, userID); err == nil {
			resp.Quota = status
		} else {
			deps.Logger.Warn("Failed to read quota after ideation",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return jsonResult(resp)
	})
}

func registerLikeIdeaTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"like_idea",
		mcp.WithDescription(
			"Mark a saved idea as liked, or clear the mark with liked=false. "+
				"Liked ideas are listed by list_ideas with liked_only=true.",
		),
		mcp.WithString(
			"idea_id",
			mcp.Required(),
			mcp.Description("UUID of an idea returned by create_ideas"),
		),
		mcp.WithBoolean(
			"liked",
			mcp.Description("Optional - false to unlike (default: true)"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := requireUserID(ctx)
		if err != nil {
			return nil, err
		}

		idStr, err := req.RequireString("idea_id")
		if err != nil {
			return nil, err
		}
		ids, err := parseIdeaIDs([]string{idStr})
		if err != nil {
			return NewErrorResult("invalid_input", err.Error()), nil
		}

		idea, err := deps.Ideas.LikeIdea(ctx, userID, ids[0], getOptionalBool(req, "liked", true))
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to update idea: %w", err)
		}
		return jsonResult(idea)
	})
}

func registerListIdeasTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"list_ideas",
		mcp.WithDescription("List the caller's saved ideas, newest first."),
		mcp.WithBoolean(
			"liked_only",
			mcp.Description("Optional - Only return liked ideas (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := requireUserID(ctx)
		if err != nil {
			return nil, err
		}

		var ideas []*models.Idea
		if getOptionalBool(req, "liked_only", false) {
			ideas, err = deps.Ideas.ListLiked(ctx, userID)
		} else {
			ideas, err = deps.Ideas.ListIdeas(ctx, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list ideas: %w", err)
		}
		if ideas == nil {
			ideas = []*models.Idea{}
		}

		return jsonResult(struct {
			Ideas []*models.Idea `json:"ideas"`
			Count int            `json:"count"`
		}{Ideas: ideas, Count: len(ideas)})
	})
}

func registerQuotaStatusTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"quota_status",
		mcp.WithDescription(
			"Report how many ideation batches the caller has used and how many remain. "+
				"Premium accounts report remaining=-1.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := requireUserID(ctx)
		if err != nil {
			return nil, err
		}

		status, err := deps.Quota.Status(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get quota: %w", err)
		}
		return jsonResult(status)
	})
}

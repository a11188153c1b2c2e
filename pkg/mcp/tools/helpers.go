package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireUserID returns the authenticated caller set by the MCP auth middleware.
func requireUserID(ctx context.Context) (string, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("authentication required")
	}
	return userID, nil
}

// arguments returns the call arguments as a map, or an empty map.
func arguments(req mcp.CallToolRequest) map[string]any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return args
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string, fallback bool) bool {
	val, ok := arguments(req)[key].(bool)
	if !ok {
		return fallback
	}
	return val
}

// getOptionalObject extracts an optional object argument from the request.
func getOptionalObject(req mcp.CallToolRequest, key string) map[string]any {
	val, ok := arguments(req)[key].(map[string]any)
	if !ok {
		return nil
	}
	return val
}

// extractArrayParam reads an array argument. Some clients send arrays as a
// JSON-encoded string; those are decoded and a warning is logged.
// An absent key yields nil, nil.
func extractArrayParam(args map[string]any, key string, logger *zap.Logger) ([]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []any:
		return v, nil
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("parameter %q could not be parsed as an array; pass a native JSON array", key)
		}
		if decoded == nil {
			decoded = []any{}
		}
		if logger != nil {
			logger.Warn("Array parameter passed as stringified JSON", zap.String("param", key))
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("parameter %q must be an array, got %T", key, raw)
	}
}

// extractStringSlice reads an array argument whose elements must be strings.
func extractStringSlice(args map[string]any, key string, logger *zap.Logger) ([]string, error) {
	items, err := extractArrayParam(args, key, logger)
	if err != nil || items == nil {
		return nil, err
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q element %d must be a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseIdeaIDs converts string ids to UUIDs, naming the first bad one.
func parseIdeaIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(trimString(s))
		if err != nil {
			return nil, fmt.Errorf("invalid idea id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serveMCP sends reqBody through the MCP logger to a handler answering with
// status and respBody, returning the captured log entries.
func serveMCP(t *testing.T, reqBody string, status int, respBody string) (*httptest.ResponseRecorder, []observer.LoggedEntry) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(zap.New(core))(handler).ServeHTTP(rec, req)
	return rec, logs.All()
}

func toolCall(name, arguments string) string {
	return `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + name + `","arguments":` + arguments + `}}`
}

func TestMCPRequestLogger_Success(t *testing.T) {
	rec, entries := serveMCP(t, toolCall("create_ideas", `{"keyword":"fitness"}`), http.StatusOK,
		`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result"`, "body is passed through")
	require.Len(t, entries, 2)

	request := entries[0].ContextMap()
	assert.Equal(t, "MCP request", entries[0].Message)
	assert.Equal(t, "tools/call", request["method"])
	assert.Equal(t, "create_ideas", request["tool"])
	assert.Equal(t, "fitness", request["arguments"].(map[string]interface{})["keyword"])

	assert.Equal(t, "MCP response success", entries[1].Message)
	assert.Equal(t, "create_ideas", entries[1].ContextMap()["tool"])
	assert.NotNil(t, entries[1].ContextMap()["duration"])
}

func TestMCPRequestLogger_RPCError(t *testing.T) {
	_, entries := serveMCP(t, toolCall("create_ideas", `{"keyword":"fitness"}`), http.StatusOK,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"store unavailable"}}`)

	require.Len(t, entries, 2)
	response := entries[1].ContextMap()
	assert.Equal(t, "MCP response error", entries[1].Message)
	assert.Equal(t, int64(-32603), response["error_code"])
	assert.Equal(t, "store unavailable", response["error_message"])
}

func TestMCPRequestLogger_ToolErrorAndIdeaCount(t *testing.T) {
	_, entries := serveMCP(t, toolCall("generate_code", `{"idea_ids":["a","b","c"]}`), http.StatusOK,
		`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"not found"}]}}`)

	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].ContextMap()["idea_count"])
	assert.Equal(t, "MCP tool error", entries[1].Message)
	assert.Equal(t, "generate_code", entries[1].ContextMap()["tool"])
}

func TestMCPRequestLogger_MalformedBodies(t *testing.T) {
	rec, entries := serveMCP(t, `{invalid json`, http.StatusBadRequest, `{"error":"bad request"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, entries)

	rec, _ = serveMCP(t, "", http.StatusAccepted, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMCPRequestLogger_NilLoggerPassesThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	MCPRequestLogger(nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`)))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeArguments(t *testing.T) {
	long := strings.Repeat("x", maxArgumentLogLength+50)
	args := map[string]interface{}{
		"password":      "secret",
		"Api_Key":       "abc123",
		"AccessToken":   "xyz789",
		"client_secret": "hidden",
		"credential":    "cred123",
		"keyword":       "fitness",
		"preferences":   long,
		"liked":         true,
		"idea_ids":      []interface{}{"a"},
	}

	result := sanitizeArguments(args)

	for _, k := range []string{"password", "Api_Key", "AccessToken", "client_secret", "credential"} {
		assert.Equal(t, "[REDACTED]", result[k], k)
	}
	assert.Equal(t, "fitness", result["keyword"], "keyword is not treated as a key")
	assert.Equal(t, strings.Repeat("x", maxArgumentLogLength)+"...", result["preferences"])
	assert.Equal(t, true, result["liked"])
	assert.Equal(t, args["idea_ids"], result["idea_ids"])

	assert.Nil(t, sanitizeArguments(nil))
	assert.Empty(t, sanitizeArguments(map[string]interface{}{}))
}

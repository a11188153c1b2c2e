package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/llm"
	"github.com/ekaya-inc/ideaforge/pkg/mcp/tools"
	"github.com/ekaya-inc/ideaforge/pkg/middleware"
)

// ServerName is advertised to MCP clients during initialization.
const ServerName = "ideaforge"

// Server wraps the mcp-go MCPServer with the ideaforge tool set.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ToolDeps groups the dependencies of every tool the server exposes.
type ToolDeps struct {
	Ideas   *tools.IdeaToolDeps
	Code    *tools.CodeToolDeps
	Version string
	Breaker *llm.CircuitBreaker
}

// RegisterTools registers the health, idea and code tools.
func (s *Server) RegisterTools(deps ToolDeps) {
	tools.RegisterHealthTool(s.mcp, deps.Version, deps.Breaker)
	tools.RegisterIdeaTools(s.mcp, deps.Ideas)
	tools.RegisterCodeTools(s.mcp, deps.Code)
	s.logger.Info("Registered MCP tools")
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// Handler returns the /mcp HTTP handler. authenticate runs before the
// per-user database scope is attached.
func (s *Server) Handler(authenticate func(http.Handler) http.Handler, scope func(http.HandlerFunc) http.HandlerFunc) http.Handler {
	transport := s.NewStreamableHTTPServer()
	scoped := scope(transport.ServeHTTP)
	return authenticate(middleware.MCPRequestLogger(s.logger)(scoped))
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

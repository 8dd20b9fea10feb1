package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/dataagent/config"
	"github.com/isdmx/dataagent/dataset"
	"github.com/isdmx/dataagent/history"
	"github.com/isdmx/dataagent/sandbox"
	"github.com/isdmx/dataagent/telemetry"
)

const (
	serverName    = "dataagent"
	serverVersion = "1.0.0"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config     *config.Config
	logger     *zap.Logger
	executor   sandbox.Executor
	datasets   *dataset.Registry
	store      history.Store
	metrics    *telemetry.Metrics
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// New creates a new MCPServer with every tool registered
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, datasets *dataset.Registry,
	store history.Store, metrics *telemetry.Metrics,
) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
		datasets: datasets,
		store:    store,
		metrics:  metrics,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.Uint64("sandbox.max_steps", cfg.Sandbox.MaxSteps),
		zap.Int("sandbox.max_output_kb", cfg.Sandbox.MaxOutputKB),
		zap.Strings("sandbox.allowed_builtins", cfg.Sandbox.AllowedBuiltins),
		zap.Int("dataset.max_rows", cfg.Dataset.MaxRows),
		zap.String("storage.path", cfg.Storage.Path),
	)

	s.mcpServer = server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()

	return s, nil
}

func (s *MCPServer) registerTools() {
	s.addTool(mcp.Tool{
		Name:        "load_dataset",
		Description: "Load a tabular file (csv, tsv, json, yaml, toml) and bind it as df for later analysis",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"file_name": map[string]any{
					"type":        "string",
					"description": "File name; the extension selects the parser and the name keys the conversation",
				},
				"content_base64": map[string]any{
					"type":        "string",
					"description": "Base64-encoded file content",
				},
			},
			Required: []string{"file_name", "content_base64"},
		},
	}, s.handleLoadDataset)

	s.addTool(mcp.Tool{
		Name: "execute_analysis_code",
		Description: "Run a Python-style analysis snippet against a loaded dataset. The snippet sees df, pd, plt, " +
			"sns, fig and ax; printed text is returned and a chart drawn on ax is returned as a PNG image",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"file_name": map[string]any{
					"type":        "string",
					"description": "Name of a dataset loaded with load_dataset",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Snippet source code",
				},
				"answer": map[string]any{
					"type":        "string",
					"description": "Free-form model answer; its first ```python block is run when code is absent",
				},
			},
			Required: []string{"file_name"},
		},
	}, s.handleExecuteAnalysisCode)

	s.addTool(mcp.Tool{
		Name:        "save_conversation",
		Description: "Save the conversation held about a dataset file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"file_name": map[string]any{
					"type":        "string",
					"description": "Dataset file name",
				},
				"messages_json": map[string]any{
					"type":        "string",
					"description": `JSON array of {"role": ..., "content": ...} messages`,
				},
			},
			Required: []string{"file_name", "messages_json"},
		},
	}, s.handleSaveConversation)

	s.addTool(mcp.Tool{
		Name:        "load_conversation",
		Description: "Load the saved conversation of a dataset file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"file_name": map[string]any{
					"type":        "string",
					"description": "Dataset file name",
				},
			},
			Required: []string{"file_name"},
		},
	}, s.handleLoadConversation)

	s.addTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List saved conversations, most recently updated first",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, s.handleListSessions)

	s.addTool(mcp.Tool{
		Name:        "clear_history",
		Description: "Delete every saved conversation",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, s.handleClearHistory)
}

// addTool registers a handler and counts its calls by outcome
func (s *MCPServer) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	name := tool.Name
	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, request)
		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		s.metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
		return result, err
	})
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP and blocks until it stops
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	return s.httpServer.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport if it was started
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

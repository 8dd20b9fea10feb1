package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/isdmx/dataagent/dataset"
	"github.com/isdmx/dataagent/history"
	"github.com/isdmx/dataagent/sandbox"
)

const previewRows = 5

// handleLoadDataset parses an uploaded file, registers it and restores the
// conversation saved for the same file name
func (s *MCPServer) handleLoadDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := request.RequireString("content_base64")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if limit := s.config.MaxUploadBytes(); base64.StdEncoding.DecodedLen(len(encoded)) > limit {
		return mcp.NewToolResultError(fmt.Sprintf("file exceeds the %d MB upload limit", s.config.Dataset.MaxUploadMB)), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decode content_base64: %v", err)), nil
	}

	table, err := dataset.Load(fileName, data, dataset.LoadOptions{MaxRows: s.config.Dataset.MaxRows})
	if err != nil {
		s.logger.Info("dataset rejected", zap.String("file_name", fileName), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.datasets.Put(fileName, table)
	s.metrics.DatasetsLoaded.Set(float64(len(s.datasets.Names())))

	s.logger.Info("dataset loaded",
		zap.String("file_name", fileName),
		zap.Int("rows", table.Len()),
		zap.Int("columns", table.Width()),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "Loaded %s: %d rows x %d columns\n", fileName, table.Len(), table.Width())
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(table.Columns(), ", "))
	b.WriteString(table.Head(previewRows).Format())

	contents := []mcp.Content{mcp.NewTextContent(b.String())}

	session, err := s.store.Load(ctx, fileName)
	switch {
	case err == nil:
		restored, marshalErr := json.Marshal(session.Messages)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to encode conversation: %w", marshalErr)
		}
		contents = append(contents, mcp.NewTextContent(
			fmt.Sprintf("Restored conversation (%d messages):\n%s", len(session.Messages), restored),
		))
	case !errors.Is(err, history.ErrNotFound):
		s.logger.Warn("failed to restore conversation", zap.String("file_name", fileName), zap.Error(err))
	}

	return &mcp.CallToolResult{Content: contents}, nil
}

// handleExecuteAnalysisCode runs a snippet against a registered dataset
func (s *MCPServer) handleExecuteAnalysisCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table, ok := s.datasets.Get(fileName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("dataset %q is not loaded, call load_dataset first", fileName)), nil
	}

	code := request.GetString("code", "")
	if code == "" {
		answer := request.GetString("answer", "")
		if answer == "" {
			return mcp.NewToolResultError("either code or answer is required"), nil
		}
		extracted, found := sandbox.ExtractCode(answer)
		if !found {
			return mcp.NewToolResultError("answer contains no ```python code block"), nil
		}
		code = extracted
	}

	s.logger.Info("executing analysis code",
		zap.String("file_name", fileName),
		zap.Int("code_bytes", len(code)),
	)

	result, err := s.executor.Execute(ctx, sandbox.ExecuteRequest{Code: code, Dataset: table})
	if err != nil {
		s.logger.Error("sandbox execution failed",
			zap.Error(err),
			zap.String("file_name", fileName),
			zap.String("code", code))
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	s.logger.Info("analysis code finished",
		zap.String("file_name", fileName),
		zap.Stringer("state", result.State),
		zap.Int("output_len", len(result.Output)),
		zap.Bool("image", result.HasImage()),
	)

	if result.State != sandbox.StateSucceeded {
		return mcp.NewToolResultError(result.Output), nil
	}

	contents := []mcp.Content{mcp.NewTextContent(result.Output)}
	if result.HasImage() {
		contents = append(contents, mcp.NewImageContent(base64.StdEncoding.EncodeToString(result.Image), "image/png"))
	}
	return &mcp.CallToolResult{Content: contents}, nil
}

func (s *MCPServer) handleSaveConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("messages_json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var messages []history.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid messages_json: %v", err)), nil
	}

	if err := s.store.Save(ctx, fileName, messages); err != nil {
		s.logger.Error("failed to save conversation", zap.String("file_name", fileName), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to save conversation: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %d messages for %s", len(messages), fileName)), nil
}

func (s *MCPServer) handleLoadConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, err := s.store.Load(ctx, fileName)
	if errors.Is(err, history.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no saved conversation for %s", fileName)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load conversation: %v", err)), nil
	}

	data, err := json.Marshal(session.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *MCPServer) handleListSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *MCPServer) handleClearHistory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.store.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear history: %v", err)), nil
	}
	s.logger.Info("conversation history cleared")
	return mcp.NewToolResultText("History cleared"), nil
}

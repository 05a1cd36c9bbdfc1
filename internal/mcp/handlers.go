package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
	"github.com/hpungsan/dxtcheck/internal/ops"
	"github.com/hpungsan/dxtcheck/internal/report"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for JSON decoding

// ValidateRequest represents the arguments for the validate tool.
type ValidateRequest struct {
	Path        string `json:"path"`
	Strict      *bool  `json:"strict,omitempty"`
	Format      string `json:"format,omitempty"`
	ServerFile  string `json:"server_file,omitempty"`
	OnAmbiguous string `json:"on_ambiguous,omitempty"`
	Record      *bool  `json:"record,omitempty"`
}

// ExtractRequest represents the arguments for the extract tool.
type ExtractRequest struct {
	Path        string `json:"path"`
	ServerFile  string `json:"server_file,omitempty"`
	OnAmbiguous string `json:"on_ambiguous,omitempty"`
}

// HistoryRequest represents the arguments for the history tool.
type HistoryRequest struct {
	Archive *string `json:"archive,omitempty"`
	Passed  *bool   `json:"passed,omitempty"`
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}

// ShowRequest represents the arguments for the show tool.
type ShowRequest struct {
	ID string `json:"id"`
}

// ValidateResult is the validate tool's response. Report is set for the json
// format, Rendered for every other format.
type ValidateResult struct {
	Passed   bool           `json:"passed"`
	RunID    string         `json:"run_id,omitempty"`
	Format   report.Format  `json:"format"`
	Report   *report.Report `json:"report,omitempty"`
	Rendered string         `json:"rendered,omitempty"`
}

var errNoHistory = errors.NewInvalidRequest("run history is not available")

// Handler implementations

// HandleValidate handles the validate tool call.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[ValidateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	format := report.FormatJSON
	if input.Format != "" {
		if format, err = report.ParseFormat(input.Format); err != nil {
			return errorResult(err), nil
		}
	}

	r, err := ops.Validate(ctx, h.cfg, ops.ValidateInput{
		Path: input.Path,
		SourceOptions: ops.SourceOptions{
			ServerFile:  input.ServerFile,
			OnAmbiguous: input.OnAmbiguous,
		},
		Strict: input.Strict,
	})
	if err != nil {
		return errorResult(err), nil
	}

	result := ValidateResult{Passed: r.Passed, Format: format}

	record := h.cfg.RecordHistory
	if input.Record != nil {
		record = *input.Record
	}
	if record {
		result.RunID = h.record(r)
	}

	if format == report.FormatJSON {
		result.Report = r
	} else {
		rendered, err := report.Render(r, format)
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
		result.Rendered = rendered
	}

	return successResult(result)
}

// record stores r in the history. A failed write is logged; the verdict still stands.
func (h *Handlers) record(r *report.Report) string {
	if h.db == nil {
		slog.Warn("history unavailable, run not recorded", "archive", r.Archive)
		return ""
	}
	out, err := ops.Record(h.db, h.cfg, r)
	if err != nil {
		slog.Warn("failed to record run", "archive", r.Archive, "err", err)
		return ""
	}
	return out.ID
}

// HandleExtract handles the extract tool call.
func (h *Handlers) HandleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[ExtractRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Extract(ctx, h.cfg, ops.ExtractInput{
		Path: input.Path,
		SourceOptions: ops.SourceOptions{
			ServerFile:  input.ServerFile,
			OnAmbiguous: input.OnAmbiguous,
		},
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if h.db == nil {
		return errorResult(errNoHistory), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Archive: input.Archive,
		Passed:  input.Passed,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[ShowRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if h.db == nil {
		return errorResult(errNoHistory), nil
	}

	result, err := ops.Show(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.CheckError
	if stderrors.As(err, &cErr) {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
		}
		// Internal messages may carry file paths or SQL errors
		if cErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

// Package mcpadapter exposes document processing as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
	maxBatchSize     = 200
)

// UnprocessedLister returns IDs of documents without the processed tag.
type UnprocessedLister interface {
	ListUnprocessed(ctx context.Context, limit int) ([]int, error)
}

type Options struct {
	Name               string
	Version            string
	DefaultConcurrency int
}

type Server struct {
	staged  ports.DocumentProcessor
	agentic ports.DocumentProcessor
	lister  UnprocessedLister
	opts    Options
	mcp     *server.MCPServer
}

func NewServer(staged, agentic ports.DocumentProcessor, lister UnprocessedLister, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "better-paperless"
	}
	if opts.DefaultConcurrency <= 0 {
		opts.DefaultConcurrency = 5
	}

	s := &Server{
		staged:  staged,
		agentic: agentic,
		lister:  lister,
		opts:    opts,
	}
	s.mcp = server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(true), server.WithRecovery())
	s.mcp.AddTool(processDocumentTool(), s.handleProcessDocument)
	s.mcp.AddTool(processBatchTool(), s.handleProcessBatch)
	s.mcp.AddTool(listUnprocessedTool(), s.handleListUnprocessed)
	return s
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func processDocumentTool() mcp.Tool {
	return mcp.NewTool("process_document",
		mcp.WithDescription("Enrich one paperless document with title, tags, correspondent and date"),
		mcp.WithNumber("document_id",
			mcp.Required(),
			mcp.Description("Paperless document ID"),
		),
		mcp.WithBoolean("agentic",
			mcp.Description("Use the single-call agentic strategy instead of the staged pipeline"),
		),
	)
}

func processBatchTool() mcp.Tool {
	return mcp.NewTool("process_batch",
		mcp.WithDescription("Enrich several paperless documents concurrently"),
		mcp.WithArray("document_ids",
			mcp.Required(),
			mcp.WithNumberItems(),
			mcp.Description("Paperless document IDs"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Documents processed in parallel (default: 5)"),
		),
		mcp.WithBoolean("agentic",
			mcp.Description("Use the agentic strategy"),
		),
	)
}

func listUnprocessedTool() mcp.Tool {
	return mcp.NewTool("list_unprocessed",
		mcp.WithDescription("List IDs of documents that do not carry the processed tag"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum IDs to return (default: 50, max: 1000)"),
		),
	)
}

func (s *Server) processor(agentic bool) ports.DocumentProcessor {
	if agentic && s.agentic != nil {
		return s.agentic
	}
	return s.staged
}

func (s *Server) handleProcessDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := positiveInt(request.GetArguments()["document_id"])
	if !ok {
		return mcp.NewToolResultError("document_id must be a positive integer"), nil
	}

	result := s.processor(request.GetBool("agentic", false)).Process(ctx, id)
	out, err := jsonResult(result)
	if err != nil {
		return nil, err
	}
	out.IsError = !result.Success
	return out, nil
}

func (s *Server) handleProcessBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := documentIDs(request.GetArguments()["document_ids"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	concurrency := request.GetInt("concurrency", s.opts.DefaultConcurrency)
	if concurrency <= 0 {
		concurrency = s.opts.DefaultConcurrency
	}

	results := s.processor(request.GetBool("agentic", false)).ProcessBatch(ctx, ids, concurrency)
	summary := usecase.Summarize(results)
	slog.Info("mcp_batch_finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"failed", summary.Failed,
	)

	out, err := jsonResult(map[string]any{
		"summary": summary,
		"results": results,
	})
	if err != nil {
		return nil, err
	}
	out.IsError = summary.Failed > 0
	return out, nil
}

func (s *Server) handleListUnprocessed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	ids, err := s.lister.ListUnprocessed(ctx, limit)
	if err != nil {
		slog.Error("mcp_list_unprocessed_failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("list unprocessed documents: %v", err)), nil
	}
	if ids == nil {
		ids = []int{}
	}
	return jsonResult(map[string]any{
		"count":        len(ids),
		"document_ids": ids,
	})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func documentIDs(raw any) ([]int, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("document_ids must be a non-empty array of integers")
	}
	if len(items) > maxBatchSize {
		return nil, fmt.Errorf("document_ids holds %d entries, at most %d allowed", len(items), maxBatchSize)
	}

	ids := make([]int, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		id, ok := positiveInt(item)
		if !ok {
			return nil, fmt.Errorf("invalid document id %v", item)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// positiveInt accepts JSON numbers, which decode as float64.
func positiveInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case int:
		return v, v > 0
	case json.Number:
		n, err := v.Int64()
		if err != nil || n <= 0 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

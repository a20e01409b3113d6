// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes correction capture, sync, and staleness tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memman/internal/memservice"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/staleness"
	"github.com/starford/memman/internal/store"
)

var stalenessDescription = "Score every memory entry for staleness and recommend " +
	string(staleness.Fresh) + ", " + string(staleness.Review) + ", " +
	string(staleness.Demote) + ", or " + string(staleness.Delete) + "."

// Server wraps the MCP server with memman tools.
type Server struct {
	mcp *server.MCPServer
	svc *memservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *memservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"memman",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("record_correction",
		mcp.WithDescription("Record a correction the user just made. "+
			"Confident corrections are promoted to memory entries and synced "+
			"into the instruction documents on the next run."),
		mcp.WithString("correct", mcp.Required(), mcp.Description("The right approach, e.g. \"use pnpm\"")),
		mcp.WithString("incorrect", mcp.Description("The approach that was wrong, e.g. \"npm\"")),
		mcp.WithString("category",
			mcp.Description("Category; inferred from the text when omitted"),
			mcp.Enum(categoryNames()...),
		),
		mcp.WithString("paths", mcp.Description("Comma-separated file globs the correction applies to")),
		mcp.WithNumber("confidence", mcp.Description("Confidence in [0,1]; defaults to 1")),
		mcp.WithString("session_id", mcp.Description("Session identifier")),
	), s.recordCorrection)

	s.mcp.AddTool(mcp.NewTool("list_corrections",
		mcp.WithDescription("List recorded corrections, newest first."),
		mcp.WithString("source",
			mcp.Description("Only corrections from this channel"),
			mcp.Enum(string(models.SourcePattern), string(models.SourceLLM), string(models.SourceManual), string(models.SourceProtocol)),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.listCorrections)

	s.mcp.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Full-text search through memory entries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms; all must match")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchMemory)

	s.mcp.AddTool(mcp.NewTool("sync_documents",
		mcp.WithDescription("Reconcile the primary and mirror instruction documents."),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing")),
		mcp.WithString("direction",
			mcp.Description("Override the configured direction"),
			mcp.Enum(string(models.DirPrimaryToMirror), string(models.DirMirrorToPrimary), string(models.DirBidirectional)),
		),
	), s.syncDocuments)

	s.mcp.AddTool(mcp.NewTool("check_staleness",
		mcp.WithDescription(stalenessDescription),
		mcp.WithBoolean("apply", mcp.Description("Persist the new scores")),
	), s.checkStaleness)

	s.mcp.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Entry and correction counts, category distribution, and sync state."),
	), s.memoryStats)

	s.mcp.AddTool(mcp.NewTool("get_region_format",
		mcp.WithDescription("Returns the managed region contract. "+
			"Read it before editing CLAUDE.md or AGENTS.md."),
	), s.getRegionFormat)

	s.mcp.AddResource(
		mcp.NewResource(RegionFormatURI, "Managed Region Contract",
			mcp.WithResourceDescription("Which parts of the instruction documents the sync engine owns."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRegionFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) recordCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	correct, err := req.RequireString("correct")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cat := models.Category(req.GetString("category", ""))
	if cat != "" && !cat.Valid() {
		return mcp.NewToolResultError("unknown category: " + string(cat)), nil
	}
	rec, err := s.svc.RecordCorrection(ctx, memservice.RecordInput{
		Incorrect:  req.GetString("incorrect", ""),
		Correct:    correct,
		Category:   cat,
		Paths:      splitList(req.GetString("paths", "")),
		Source:     models.SourceProtocol,
		Confidence: numberArg(req, "confidence", 0),
		SessionID:  req.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) listCorrections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cs, err := s.svc.ListCorrections(ctx, store.CorrectionFilter{
		Source: models.SourceChannel(req.GetString("source", "")),
		Limit:  int(numberArg(req, "limit", 20)),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cs) == 0 {
		return mcp.NewToolResultText("no corrections recorded"), nil
	}
	return jsonResult(cs)
}

func (s *Server) searchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.SearchEntries(ctx, query, int(numberArg(req, "limit", 20)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no matching entries"), nil
	}
	return jsonResult(entries)
}

func (s *Server) syncDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := models.SyncDirection(req.GetString("direction", ""))
	switch dir {
	case "", models.DirPrimaryToMirror, models.DirMirrorToPrimary, models.DirBidirectional:
	default:
		return mcp.NewToolResultError("unknown direction: " + string(dir)), nil
	}
	res, err := s.svc.Sync(ctx, boolArg(req, "dry_run", false), dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) checkStaleness(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scores, err := s.svc.Rescore(ctx, boolArg(req, "apply", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(scores) == 0 {
		return mcp.NewToolResultText("no memory entries"), nil
	}
	return jsonResult(scores)
}

func (s *Server) memoryStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) getRegionFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RegionFormatContract), nil
}

func (s *Server) readRegionFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RegionFormatURI,
			MIMEType: "text/markdown",
			Text:     RegionFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// numberArg extracts a numeric argument; JSON numbers arrive as float64.
func numberArg(req mcp.CallToolRequest, key string, def float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return def
	}
	return v
}

func boolArg(req mcp.CallToolRequest, key string, def bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func categoryNames() []string {
	out := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = string(c)
	}
	return out
}

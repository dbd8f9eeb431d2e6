// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes bookmark tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/bookmarkservice"
	"github.com/starford/smartmarks/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	importFormatURI = "smartmarks://import-format"
)

// Server wraps the MCP server with bookmark tools. Every tool acts as a
// single owner fixed at startup.
type Server struct {
	mcp   *server.MCPServer
	svc   *bookmarkservice.Service
	owner string
}

// New creates a new MCP server with all bookmark tools registered.
func New(svc *bookmarkservice.Service, owner string, version string) *Server {
	s := &Server{svc: svc, owner: owner}

	s.mcp = server.NewMCPServer(
		"Smartmarks",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_bookmarks",
		mcp.WithDescription("List bookmarks, newest first. Optionally filter by a substring of the title or URL."),
		mcp.WithString("query", mcp.Description("Optional case-insensitive filter")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 50, max 500)")),
	), s.listBookmarks)

	s.mcp.AddTool(mcp.NewTool("add_bookmark",
		mcp.WithDescription("Save a new bookmark. Open web and terminal views see it immediately."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Display title")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Link target")),
	), s.addBookmark)

	s.mcp.AddTool(mcp.NewTool("update_bookmark",
		mcp.WithDescription("Change the title and/or URL of an existing bookmark. "+
			"Pass the etag from list_bookmarks to refuse the edit if the bookmark changed since."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bookmark ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("url", mcp.Description("New URL")),
		mcp.WithString("etag", mcp.Description("Optional version guard")),
	), s.updateBookmark)

	s.mcp.AddTool(mcp.NewTool("delete_bookmark",
		mcp.WithDescription("Delete a bookmark by ID. This cannot be undone."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bookmark ID")),
	), s.deleteBookmark)

	s.mcp.AddTool(mcp.NewTool("import_bookmarks",
		mcp.WithDescription("Import many bookmarks from a browser export or list. "+
			"Read the format first via get_import_format or the "+importFormatURI+" resource."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name with extension, which selects the format (e.g. export.html)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("File contents as text, or a base64 data: URI")),
	), s.importBookmarks)

	s.mcp.AddTool(mcp.NewTool("get_import_format",
		mcp.WithDescription("Returns the accepted import file formats."),
	), s.getImportFormat)

	s.mcp.AddResource(
		mcp.NewResource(importFormatURI, "Import Formats",
			mcp.WithResourceDescription("File formats accepted by import_bookmarks and the import inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
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

type bookmarkResult struct {
	models.Bookmark
	ETag string `json:"etag"`
}

type listResult struct {
	Bookmarks []bookmarkResult `json:"bookmarks"`
	Total     int              `json:"total"`
}

func withETag(b models.Bookmark) bookmarkResult {
	return bookmarkResult{Bookmark: b, ETag: bookmarkservice.ETag(b)}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolError turns service errors into messages a model can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("bookmark not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("bookmark changed since it was read; list it again and retry")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	items, total, err := s.svc.List(ctx, s.owner, query, limit)
	if err != nil {
		return toolError(err), nil
	}
	out := listResult{Bookmarks: make([]bookmarkResult, len(items)), Total: total}
	for i, b := range items {
		out.Bookmarks[i] = withETag(b)
	}
	return jsonResult(out), nil
}

func (s *Server) addBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b, err := s.svc.Create(ctx, s.owner, title, rawURL)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(withETag(*b)), nil
}

func (s *Server) updateBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patch models.BookmarkPatch
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := args["url"].(string); ok {
		patch.URL = &v
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update: pass title and/or url"), nil
	}

	b, err := s.svc.Update(ctx, s.owner, id, patch, req.GetString("etag", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(withETag(*b)), nil
}

func (s *Server) deleteBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, s.owner, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) getImportFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      importFormatURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}

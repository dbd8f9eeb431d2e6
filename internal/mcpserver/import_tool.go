package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/parser"
)

const maxImportSize = 5 << 20 // 5 MB

type importResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *Server) importBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(parser.Extensions, ext) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %q (allowed: %s)",
			ext, strings.Join(parser.Extensions, ", "))), nil
	}

	data := []byte(content)
	if strings.HasPrefix(content, "data:") {
		data, err = decodeDataURI(content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if len(data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImportSize)), nil
	}

	entries, err := parser.Parse(filename, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var res importResult
	for _, e := range entries {
		if _, err := s.svc.Create(ctx, s.owner, e.Title, e.URL); err != nil {
			if errors.Is(err, apperr.ErrInvalid) {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.URL, err))
				continue
			}
			return mcp.NewToolResultError(fmt.Sprintf("import stopped after %d bookmarks: %v", res.Imported, err)), nil
		}
		res.Imported++
	}
	return jsonResult(res), nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI. The media type
// is ignored; the filename extension picks the format.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

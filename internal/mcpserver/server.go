// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes photo library tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photoservice"
)

const formatURI = "metaedit://metadata-format"

// Server wraps the MCP server with photo library tools.
type Server struct {
	mcp *server.MCPServer
	svc *photoservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *photoservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"metaedit",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_photos",
		mcp.WithDescription("Find photos whose metadata matches every given filter. "+
			"Text filters match case-insensitive substrings; people must all be present. "+
			"Omit every filter to list the whole library in scan order."),
		mcp.WithReadOnlyHintAnnotation(true),
		withCriteria(),
		mcp.WithNumber("limit", mcp.Description("Maximum number of photos to return (default 50)")),
	), s.searchPhotos)

	s.mcp.AddTool(mcp.NewTool("get_photo",
		mcp.WithDescription("Read the custom metadata of one photo, with its file checksum."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("path", mcp.Required(), mcp.Description("Photo path relative to the library (e.g. 2021/img.jpg)")),
	), s.getPhoto)

	s.mcp.AddTool(mcp.NewTool("update_photo",
		mcp.WithDescription("Change metadata fields of one photo. Only the given fields change; "+
			"an empty string clears a field. The value is written into the image file. "+
			"Read the contract first via get_metadata_contract or the "+formatURI+" resource."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path", mcp.Required(), mcp.Description("Photo path relative to the library")),
		mcp.WithString("people", mcp.Description("Comma-separated names")),
		mcp.WithString("location", mcp.Description("Location text")),
		mcp.WithString("date", mcp.Description("Date text")),
		mcp.WithString("group", mcp.Description("Group text")),
		mcp.WithString("comment", mcp.Description("Comment text")),
		mcp.WithString("checksum", mcp.Description("Checksum from get_photo; the edit fails if the file changed since")),
	), s.updatePhoto)

	s.mcp.AddTool(mcp.NewTool("export_photos",
		mcp.WithDescription("Copy the photos matching the filters into the export directory, "+
			"replacing whatever it held before."),
		mcp.WithDestructiveHintAnnotation(true),
		withCriteria(),
	), s.exportPhotos)

	s.mcp.AddTool(mcp.NewTool("get_metadata_contract",
		mcp.WithDescription("Returns the metadata payload contract. "+
			"Call this before updating photos to understand the fields."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.getMetadataContract)

	// Resource: metadata payload contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Metadata Format Contract",
			mcp.WithResourceDescription("Fields stored in a photo's EXIF ImageDescription and how they are filtered."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMetadataFormatResource,
	)

	return s
}

// withCriteria adds one optional string argument per filterable field.
func withCriteria() mcp.ToolOption {
	return func(t *mcp.Tool) {
		for _, opt := range []mcp.ToolOption{
			mcp.WithString("people", mcp.Description("Comma-separated names that must all appear")),
			mcp.WithString("location", mcp.Description("Location substring")),
			mcp.WithString("date", mcp.Description("Date substring")),
			mcp.WithString("group", mcp.Description("Group substring")),
			mcp.WithString("comment", mcp.Description("Comment substring")),
		} {
			opt(t)
		}
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func criteria(req mcp.CallToolRequest) filter.Criteria {
	var c filter.Criteria
	for _, f := range models.Fields {
		c.Set(f, req.GetString(string(f), ""))
	}
	return c
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNoLibrary):
		return mcp.NewToolResultError("no photo library is open")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the photo changed, read it again")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchPhotos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	items, total, err := s.svc.Search(ctx, criteria(req), limit, 0)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"photos": items, "total": total}), nil
}

func (s *Server) getPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	photo, err := s.svc.GetPhoto(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return toolError(err), nil
	}
	return jsonResult(photo), nil
}

func (s *Server) updatePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := req.GetArguments()
	edits := make(map[models.Field]string)
	for _, f := range models.Fields {
		if _, ok := args[string(f)]; ok {
			edits[f] = req.GetString(string(f), "")
		}
	}
	if len(edits) == 0 {
		return mcp.NewToolResultError("at least one field is required"), nil
	}

	photo, err := s.svc.UpdatePhoto(ctx, path, edits, req.GetString("checksum", ""))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return toolError(err), nil
	}
	return jsonResult(photo), nil
}

func (s *Server) exportPhotos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Export(ctx, criteria(req))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported %d photos to %s", len(rep.Copies), rep.Dir)), nil
}

func (s *Server) getMetadataContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MetadataFormatContract), nil
}

func (s *Server) readMetadataFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     MetadataFormatContract,
		},
	}, nil
}

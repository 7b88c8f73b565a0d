// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes a LoreKeeper project to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/session"
)

// LayoutURI is the resource describing the project directory.
const LayoutURI = "lorekeeper://project-layout"

// Server wraps the MCP server with LoreKeeper tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
}

// New creates a new MCP server with all LoreKeeper tools registered.
// Tools are read-only; edits go through the application.
func New(sess *session.Session) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"LoreKeeper",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List the project's chapters, characters and lore entries in registry order."),
		mcp.WithString("category", mcp.Description("Optional category to list"), mcp.Enum("chapters", "characters", "lore")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("read_item",
		mcp.WithDescription("Read the content of an item. Chapters are Markdown; characters and lore entries are JSON."),
		mcp.WithString("category", mcp.Required(), mcp.Enum("chapters", "characters", "lore")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id as returned by list_items")),
	), s.readItem)

	s.mcp.AddTool(mcp.NewTool("search_project",
		mcp.WithDescription("Full-text search through titles and content of every item."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchProject)

	s.mcp.AddTool(mcp.NewTool("get_ai_notes",
		mcp.WithDescription("Return the cached analysis of a chapter and whether it is outdated."),
		mcp.WithString("chapter_id", mcp.Required(), mcp.Description("Chapter id")),
	), s.getAINotes)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Return today's word count, the daily goal and the recent writing history."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("get_project_contract",
		mcp.WithDescription("Returns the LoreKeeper project layout and file formats. "+
			"Call this before reading items to understand their structure."),
	), s.getProjectContract)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Project Layout",
			mcp.WithResourceDescription("On-disk layout and file formats of a LoreKeeper project."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats := models.Categories
	if raw := req.GetString("category", ""); raw != "" {
		c, err := models.ParseCategory(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cats = []models.Category{c}
	}

	reg := s.sess.Registry()
	var lines []string
	for _, c := range cats {
		for _, it := range reg.Items(c) {
			lines = append(lines, fmt.Sprintf("%s/%s\t%s", c, it.ID, it.Title))
		}
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no items"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := models.ParseCategory(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.sess.Content(c, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) searchProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.sess.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) getAINotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("chapter_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.sess.AINote(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sess.StatsSummary())
}

func (s *Server) getProjectContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectLayoutContract), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     ProjectLayoutContract,
		},
	}, nil
}

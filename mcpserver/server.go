// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/validator"
)

const (
	// ServerName is reported during MCP initialization.
	ServerName = "toolhive-marketplace"
	// CatalogURI is the URI of the catalog resource.
	CatalogURI = "marketplace://catalog"
)

// Tool names.
const (
	ToolListPlugins    = "list_plugins"
	ToolSearchPlugins  = "search_plugins"
	ToolGetPlugin      = "get_plugin"
	ToolValidatePlugin = "validate_plugin"
)

// Options configures a Server.
type Options struct {
	// Root is the marketplace repository root
	Root string
	// Version is reported during initialization
	Version string
	// Validator overrides the validator options used by validate_plugin;
	// Root is always set to the server's root
	Validator validator.Options
	// Logger receives request logs; stdout carries the protocol, so this must
	// not write there
	Logger *slog.Logger
}

// Server serves a marketplace catalog over MCP.
type Server struct {
	opts   Options
	mcp    *server.MCPServer
	load   func() (*catalog.Catalog, error)
	logger *slog.Logger
}

// New returns a server for the marketplace under opts.Root.
func New(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	opts.Validator.Root = opts.Root

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		load:   func() (*catalog.Catalog, error) { return catalog.Build(opts.Root) },
	}
	s.mcp = server.NewMCPServer(ServerName, opts.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the protocol over in and out until ctx is cancelled or
// in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolListPlugins,
		mcp.WithDescription("List the plugins of the marketplace, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("Only list plugins in this category")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleList)

	s.mcp.AddTool(mcp.NewTool(ToolSearchPlugins,
		mcp.WithDescription("Search plugins by name, description, keywords, tags and skills."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(ToolGetPlugin,
		mcp.WithDescription("Get one plugin with its skills, commands, agents and MCP servers."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Plugin name")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleGet)

	s.mcp.AddTool(mcp.NewTool(ToolValidatePlugin,
		mcp.WithDescription("Validate one plugin and return its findings."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Plugin name")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleValidate)
}

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(CatalogURI, "Marketplace catalog",
		mcp.WithResourceDescription("Every plugin of the marketplace with its components"),
		mcp.WithMIMEType("application/json"),
	), s.handleCatalogResource)
}

// PluginSummary is a plugin as listed by list_plugins and search_plugins.
type PluginSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Category    string   `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	MCPServers  []string `json:"mcpServers,omitempty"`
}

// PluginList is the output of list_plugins and search_plugins.
type PluginList struct {
	Query    string          `json:"query,omitempty"`
	Category string          `json:"category,omitempty"`
	Count    int             `json:"count"`
	Plugins  []PluginSummary `json:"plugins"`
}

// ValidationResult is the output of validate_plugin.
type ValidationResult struct {
	Plugin   string              `json:"plugin"`
	Valid    bool                `json:"valid"`
	Findings []validator.Finding `json:"findings"`
}

func summarize(plugins []catalog.Plugin) []PluginSummary {
	out := make([]PluginSummary, 0, len(plugins))
	for _, p := range plugins {
		sum := PluginSummary{
			Name:        p.Name,
			Description: p.Description,
			Version:     p.Version,
			Category:    p.Category,
			Keywords:    p.Keywords,
		}
		for _, sk := range p.Skills {
			sum.Skills = append(sum.Skills, sk.Name)
		}
		for _, srv := range p.MCPServers {
			sum.MCPServers = append(sum.MCPServers, srv.Name)
		}
		out = append(out, sum)
	}
	return out
}

func (s *Server) handleList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.load()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("loading marketplace", err), nil
	}
	category := req.GetString("category", "")
	plugins := summarize(c.Filter(category))
	return jsonResult(PluginList{Category: category, Count: len(plugins), Plugins: plugins})
}

func (s *Server) handleSearch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.load()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("loading marketplace", err), nil
	}
	plugins := summarize(c.Search(query))
	return jsonResult(PluginList{Query: query, Count: len(plugins), Plugins: plugins})
}

func (s *Server) handleGet(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.load()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("loading marketplace", err), nil
	}
	p, ok := c.Get(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("plugin %q not found", name)), nil
	}
	return jsonResult(p)
}

func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.load()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("loading marketplace", err), nil
	}
	if _, ok := c.Get(name); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("plugin %q not found", name)), nil
	}

	opts := s.opts.Validator
	opts.Plugins = []string{name}
	opts.ChangedSince = ""
	report, err := validator.New(opts).Validate(ctx)
	if err != nil {
		s.logger.Error("validation failed", "plugin", name, "error", err)
		return mcp.NewToolResultErrorFromErr("validating marketplace", err), nil
	}
	res := ValidationResult{Plugin: name, Valid: true, Findings: []validator.Finding{}}
	for _, f := range report.Findings {
		if f.Plugin != name {
			continue
		}
		res.Findings = append(res.Findings, f)
		if f.Severity == validator.SeverityError {
			res.Valid = false
		}
	}
	s.logger.Debug("plugin validated", "plugin", name, "findings", len(res.Findings))
	return jsonResult(res)
}

func (s *Server) handleCatalogResource(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	c, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("loading marketplace: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

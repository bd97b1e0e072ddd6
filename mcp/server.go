// Package mcp provides the MCP (Model Context Protocol) server for rigweave.
//
// The server is read-only. It answers questions about the current rig graph
// for external tooling: which nodes exist, how they are wired, whether two
// sockets could be connected and what a build would send to the host.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/rig"
)

const (
	serverName    = "rigweave"
	serverVersion = "0.1.0"
)

// Server answers tool calls and resource reads against a rig document.
type Server struct {
	source Source
	types  *graph.TypeRegistry
	rig    *rig.Orchestrator
	logger *zap.Logger
	server *mcp.Server
}

// Tool describes one callable tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes one readable resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Option configures a Server.
type Option func(*Server)

// WithOrchestrator sets the orchestrator used to preview build requests, so
// dispatch overrides are reflected.
func WithOrchestrator(o *rig.Orchestrator) Option {
	return func(s *Server) { s.rig = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server reading graphs from source. Without
// WithOrchestrator, build plans use the default dispatch table.
func NewServer(source Source, opts ...Option) *Server {
	s := &Server{
		source: source,
		types:  graph.DefaultTypeRegistry(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rig == nil {
		s.rig = rig.NewOrchestrator(rig.NewOfflineBuilder(0))
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns the tools in the order clients see them.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "rigweave_list_nodes",
			Description: "List the nodes of the rig graph with their kind, position and attachment state.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"kind": {Type: "string", Description: "Only list nodes of this kind"},
				},
			},
		},
		{
			Name:        "rigweave_search",
			Description: "Find nodes by name, kind, socket names or notes.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search text"},
					"limit": {Type: "integer", Description: "Maximum results (default 10)"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "rigweave_node",
			Description: "Show one node: parameters, sockets, attachments and connected peers.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {Type: "string", Description: "Node name or id"},
				},
				Required: []string{"node"},
			},
		},
		{
			Name:        "rigweave_connections",
			Description: "List connections, optionally only those touching one node.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {Type: "string", Description: "Node name or id"},
				},
			},
		},
		{
			Name:        "rigweave_validate",
			Description: "Rebuild the graph from its document and report substituted nodes, skipped connections and reset parameters.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "rigweave_can_connect",
			Description: "Check whether two sockets, given as node.socket, could be connected.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"from": {Type: "string", Description: "First socket as node.socket"},
					"to":   {Type: "string", Description: "Second socket as node.socket"},
				},
				Required: []string{"from", "to"},
			},
		},
		{
			Name:        "rigweave_build_plan",
			Description: "Show the template and build requests a node would send to the host.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {Type: "string", Description: "Node name or id"},
				},
				Required: []string{"node"},
			},
		},
	}
}

// ListResources returns the readable resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "rigweave://overview",
			Name:        "Rig Overview",
			Description: "Node and connection counts per kind",
			MimeType:    "text/plain",
		},
		{
			URI:         "rigweave://kinds",
			Name:        "Node Kinds",
			Description: "The node kind catalog with sockets and parameters",
			MimeType:    "text/plain",
		},
		{
			URI:         "rigweave://schema",
			Name:        "Document Schema",
			Description: "JSON Schema of the rig document",
			MimeType:    "application/schema+json",
		},
		{
			URI:         "rigweave://snapshot",
			Name:        "Rig Snapshot",
			Description: "The current rig document",
			MimeType:    "application/json",
		},
	}
}

// load rebuilds the graph from the source.
func (s *Server) load(ctx context.Context) (*graph.Graph, *document.LoadReport, *document.Document, error) {
	doc, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading snapshot: %w", err)
	}
	g, report := document.Rebuild(doc, s.types)
	return g, report, doc, nil
}

// CallTool rebuilds the graph from the source and runs the named tool.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	g, report, _, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch name {
	case "rigweave_list_nodes":
		return handleListNodes(g, str("kind")), nil
	case "rigweave_search":
		limit := 10
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		return handleSearch(g, str("query"), limit), nil
	case "rigweave_node":
		return handleNode(g, str("node"))
	case "rigweave_connections":
		return handleConnections(g, str("node"))
	case "rigweave_validate":
		return handleValidate(g, report), nil
	case "rigweave_can_connect":
		return handleCanConnect(g, str("from"), str("to"))
	case "rigweave_build_plan":
		return handleBuildPlan(g, s.rig, str("node"))
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource renders the resource at uri.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "rigweave://overview":
		g, report, _, err := s.load(ctx)
		if err != nil {
			return "", err
		}
		return getOverview(g, report), nil
	case "rigweave://kinds":
		return getKinds(), nil
	case "rigweave://schema":
		return getSchema()
	case "rigweave://snapshot":
		doc, err := s.source.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		data, err := document.Save(doc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Serve runs the SDK server over the given transport, for example
// &mcp.StdioTransport{}.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// SDK returns the underlying SDK server.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

// registerTools registers every tool with the SDK server, dispatching to
// CallTool.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, fmt.Errorf("decoding arguments: %w", err)
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers every resource with the SDK server,
// dispatching to ReadResource.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		mimeType := res.MimeType
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: mimeType, Text: text}},
			}, nil
		})
	}
}

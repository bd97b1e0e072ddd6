package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolError      = -32000
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Run serves line-delimited JSON-RPC on stdin and stdout until stdin ends
// or ctx is cancelled. Malformed lines and notifications get no reply.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return errors.New("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Debug("ignoring malformed request", zap.Error(err))
			continue
		}
		if len(req.ID) == 0 {
			continue
		}

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if result, rerr := s.dispatch(ctx, req); rerr != nil {
			resp.Error = rerr
		} else {
			resp.Result = result
		}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": serverName, "version": serverVersion},
			"capabilities": map[string]any{
				"tools":     map[string]bool{"listChanged": false},
				"resources": map[string]bool{"listChanged": false},
			},
		}, nil

	case "ping":
		return struct{}{}, nil

	case "tools/list":
		tools := s.ListTools()
		list := make([]map[string]any, len(tools))
		for i, t := range tools {
			list[i] = map[string]any{"name": t.Name, "description": t.Description, "inputSchema": t.InputSchema}
		}
		return map[string]any{"tools": list}, nil

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
		}
		text, err := s.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return nil, &rpcError{Code: codeToolError, Message: err.Error()}
		}
		return map[string]any{"content": []textContent{{Type: "text", Text: text}}}, nil

	case "resources/list":
		return map[string]any{"resources": s.resourceList()}, nil

	case "resources/read":
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
			return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
		}
		text, err := s.ReadResource(ctx, params.URI)
		if err != nil {
			return nil, &rpcError{Code: codeToolError, Message: err.Error()}
		}
		return map[string]any{"contents": []resourceContent{{
			URI: params.URI, MimeType: s.mimeType(params.URI), Text: text,
		}}}, nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}
}

func (s *Server) resourceList() []map[string]string {
	resources := s.ListResources()
	list := make([]map[string]string, len(resources))
	for i, r := range resources {
		list[i] = map[string]string{
			"uri":         r.URI,
			"name":        r.Name,
			"description": r.Description,
			"mimeType":    r.MimeType,
		}
	}
	return list
}

func (s *Server) mimeType(uri string) string {
	for _, r := range s.ListResources() {
		if r.URI == uri {
			return r.MimeType
		}
	}
	return "text/plain"
}

// Package rig drives the external host that realises rig modules.
//
// The Orchestrator turns a node's kind and parameters into builder requests,
// writes the returned handles back onto the node's sockets and re-links the
// node's connections.
package rig

import (
	"context"
	"errors"
	"fmt"
)

// Request is one template or build call.
type Request struct {
	Module     string         `json:"module"`
	Operation  string         `json:"operation"`
	Identifier string         `json:"identifier"`
	Args       map[string]any `json:"args"`
}

// Builder is the narrow contract with the host application.
type Builder interface {
	// Template stages guide objects for a module. It returns nothing useful
	// beyond success.
	Template(ctx context.Context, req Request) error

	// Build constructs the module and returns its ordered attachment handles.
	Build(ctx context.Context, req Request) ([]string, error)

	// Link connects two attachments and returns the handle of the link.
	Link(ctx context.Context, source, target string) (string, error)
}

var (
	// ErrNotBuildable is returned for kinds without a build operation.
	ErrNotBuildable = errors.New("kind has no build operation")

	// ErrNoTemplate is returned for kinds without a template operation.
	ErrNoTemplate = errors.New("kind has no template operation")

	// ErrHandleOutOfRange means the build tuple is shorter than a socket's
	// handle index.
	ErrHandleOutOfRange = errors.New("handle index out of range")
)

// ExternalOperationError reports a failed call into the host, with the node
// and socket it concerned.
type ExternalOperationError struct {
	Op     string
	Node   string
	Socket string
	Err    error
}

func (e *ExternalOperationError) Error() string {
	if e.Socket != "" {
		return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Node, e.Socket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Node, e.Err)
}

func (e *ExternalOperationError) Unwrap() error {
	return e.Err
}

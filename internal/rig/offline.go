package rig

import (
	"context"
	"fmt"
	"sync"
)

// DefaultOfflineHandles is how many handles OfflineBuilder returns per build.
const DefaultOfflineHandles = 8

// Call is one request seen by OfflineBuilder.
type Call struct {
	Op      string
	Request Request
	Source  string
	Target  string
}

// OfflineBuilder stands in for the host when none is configured. It
// fabricates predictable handles and keeps a log of every call.
type OfflineBuilder struct {
	mu      sync.Mutex
	handles int
	calls   []Call
	fail    map[string]error
}

// NewOfflineBuilder creates a builder returning n handles per build; n <= 0
// selects DefaultOfflineHandles.
func NewOfflineBuilder(n int) *OfflineBuilder {
	if n <= 0 {
		n = DefaultOfflineHandles
	}
	return &OfflineBuilder{handles: n, fail: make(map[string]error)}
}

// FailOn makes calls for op ("template", "build" or "link") return err.
// Pass nil to clear.
func (b *OfflineBuilder) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, op)
		return
	}
	b.fail[op] = err
}

// Calls returns a copy of the call log.
func (b *OfflineBuilder) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *OfflineBuilder) record(c Call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	return b.fail[c.Op]
}

// Template implements Builder.
func (b *OfflineBuilder) Template(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.record(Call{Op: "template", Request: req})
}

// Build implements Builder. Handles are named identifier_h0, identifier_h1
// and so on.
func (b *OfflineBuilder) Build(ctx context.Context, req Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.record(Call{Op: "build", Request: req}); err != nil {
		return nil, err
	}
	out := make([]string, b.handles)
	for i := range out {
		out[i] = fmt.Sprintf("%s_h%d", req.Identifier, i)
	}
	return out, nil
}

// Link implements Builder.
func (b *OfflineBuilder) Link(ctx context.Context, source, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.record(Call{Op: "link", Source: source, Target: target}); err != nil {
		return "", err
	}
	return source + "->" + target, nil
}

package rig

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/graph"
)

// Attachment records a handle written onto a socket.
type Attachment struct {
	Socket graph.SocketRef
	Handle string
}

// Link records a connection realised in the host.
type Link struct {
	Connection string
	Source     string
	Target     string
	Handle     string
}

// Report collects the outcome of a build or relink. Failures never abort
// the remaining work.
type Report struct {
	Built    []graph.NodeID
	Attached []Attachment
	Linked   []Link

	// Pending lists connections skipped because an end has no attachment.
	Pending []string

	Failures []error
}

// OK reports whether nothing failed.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

func (r *Report) merge(o *Report) {
	r.Built = append(r.Built, o.Built...)
	r.Attached = append(r.Attached, o.Attached...)
	r.Linked = append(r.Linked, o.Linked...)
	r.Pending = append(r.Pending, o.Pending...)
	r.Failures = append(r.Failures, o.Failures...)
}

// Orchestrator maps nodes onto builder calls.
type Orchestrator struct {
	builder   Builder
	overrides map[graph.NodeKind]graph.DispatchSpec
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTimeout bounds every builder call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithOverrides replaces the catalog dispatch record for the given kinds.
func WithOverrides(m map[graph.NodeKind]graph.DispatchSpec) Option {
	return func(o *Orchestrator) { o.overrides = m }
}

// NewOrchestrator creates an orchestrator that calls builder.
func NewOrchestrator(builder Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder: builder,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch returns the dispatch record in effect for a kind.
func (o *Orchestrator) Dispatch(kind graph.NodeKind) (graph.DispatchSpec, error) {
	if d, ok := o.overrides[kind]; ok {
		return d, nil
	}
	spec, err := graph.LookupKind(kind)
	if err != nil {
		return graph.DispatchSpec{}, err
	}
	return spec.Dispatch, nil
}

// Requests returns the template and build requests for a node. An operation
// the kind lacks yields a zero Request.
func (o *Orchestrator) Requests(n *graph.Node) (template, build Request, err error) {
	d, err := o.Dispatch(n.Kind)
	if err != nil {
		return Request{}, Request{}, err
	}
	if d.Template != "" {
		template = newRequest(d.Module, d.Template, n, d.TemplateArgs)
	}
	if d.Build != "" {
		build = newRequest(d.Module, d.Build, n, d.BuildArgs)
	}
	return template, build, nil
}

func newRequest(module, op string, n *graph.Node, bindings []graph.ArgBinding) Request {
	args := make(map[string]any, len(bindings))
	for _, b := range bindings {
		args[b.Arg] = b.Resolve(n.Params)
	}
	return Request{Module: module, Operation: op, Identifier: n.Name, Args: args}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// Template stages the node's guides. Failures are logged and returned as
// *ExternalOperationError; nothing in the graph changes either way.
func (o *Orchestrator) Template(ctx context.Context, g *graph.Graph, id graph.NodeID) error {
	n := g.Node(id)
	if n == nil {
		return &graph.LookupError{Key: string(id), Err: graph.ErrNodeNotFound}
	}
	req, _, err := o.Requests(n)
	if err != nil {
		return err
	}
	if req.Operation == "" {
		return &ExternalOperationError{Op: "template", Node: n.Name, Err: ErrNoTemplate}
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	if err := o.builder.Template(callCtx, req); err != nil {
		o.logger.Warn("template failed",
			zap.String("node", n.Name),
			zap.String("module", req.Module),
			zap.Error(err))
		return &ExternalOperationError{Op: "template", Node: n.Name, Err: err}
	}
	o.logger.Info("template staged", zap.String("node", n.Name), zap.String("module", req.Module))
	return nil
}

// Build realises one node, stores the returned handles on its sockets and
// re-links every connection touching it whose both ends are attached.
//
// A failed build call is returned as the error and also recorded in the
// report. Socket and link failures only appear in the report.
func (o *Orchestrator) Build(ctx context.Context, g *graph.Graph, id graph.NodeID) (*Report, error) {
	report := &Report{}
	n := g.Node(id)
	if n == nil {
		return report, &graph.LookupError{Key: string(id), Err: graph.ErrNodeNotFound}
	}
	_, req, err := o.Requests(n)
	if err != nil {
		return report, err
	}
	if req.Operation == "" {
		err := &ExternalOperationError{Op: "build", Node: n.Name, Err: ErrNotBuildable}
		report.Failures = append(report.Failures, err)
		return report, err
	}

	callCtx, cancel := o.callContext(ctx)
	handles, err := o.builder.Build(callCtx, req)
	cancel()
	if err != nil {
		o.logger.Warn("build failed", zap.String("node", n.Name), zap.String("module", req.Module), zap.Error(err))
		err := &ExternalOperationError{Op: "build", Node: n.Name, Err: err}
		report.Failures = append(report.Failures, err)
		return report, err
	}
	report.Built = append(report.Built, n.ID)
	o.logger.Info("module built",
		zap.String("node", n.Name),
		zap.String("module", req.Module),
		zap.Int("handles", len(handles)))

	for _, dir := range []graph.Direction{graph.DirectionInput, graph.DirectionOutput} {
		for _, s := range n.Sockets(dir) {
			if s.HandleIndex == graph.NoHandle {
				continue
			}
			idx := s.HandleIndex
			if idx < 0 {
				idx += len(handles)
			}
			if idx < 0 || idx >= len(handles) {
				report.Failures = append(report.Failures, &ExternalOperationError{
					Op: "attach", Node: n.Name, Socket: s.Name, Err: ErrHandleOutOfRange,
				})
				continue
			}
			ref := n.Ref(dir, s.Name)
			if err := g.SetAttachment(ref, handles[idx]); err != nil {
				report.Failures = append(report.Failures, err)
				continue
			}
			report.Attached = append(report.Attached, Attachment{Socket: ref, Handle: handles[idx]})
		}
	}

	report.merge(o.relink(ctx, g, g.ConnectionsOf(n.ID)))
	return report, nil
}

// BuildMany builds each node in order and merges the reports. A failed node
// does not stop the others.
func (o *Orchestrator) BuildMany(ctx context.Context, g *graph.Graph, ids []graph.NodeID) *Report {
	report := &Report{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, err)
			break
		}
		r, err := o.Build(ctx, g, id)
		report.merge(r)
		if err != nil && len(r.Failures) == 0 {
			report.Failures = append(report.Failures, err)
		}
	}
	return report
}

// RelinkAll re-links every connection whose both ends are attached.
func (o *Orchestrator) RelinkAll(ctx context.Context, g *graph.Graph) *Report {
	return o.relink(ctx, g, g.Connections())
}

func (o *Orchestrator) relink(ctx context.Context, g *graph.Graph, conns []*graph.Connection) *Report {
	report := &Report{}
	for _, c := range conns {
		src, err := g.Socket(c.Source)
		if err != nil {
			report.Failures = append(report.Failures, err)
			continue
		}
		tgt, err := g.Socket(c.Target)
		if err != nil {
			report.Failures = append(report.Failures, err)
			continue
		}
		if src.Attachment == "" || tgt.Attachment == "" {
			report.Pending = append(report.Pending, c.ID)
			continue
		}

		callCtx, cancel := o.callContext(ctx)
		handle, err := o.builder.Link(callCtx, src.Attachment, tgt.Attachment)
		cancel()
		if err != nil {
			o.logger.Warn("link failed",
				zap.String("source", src.Attachment),
				zap.String("target", tgt.Attachment),
				zap.Error(err))
			report.Failures = append(report.Failures, &ExternalOperationError{
				Op: "link", Node: nodeName(g, c.Source.Node), Socket: c.Source.Name, Err: err,
			})
			continue
		}
		if err := g.SetConnectionAttachments(c.ID, src.Attachment, tgt.Attachment); err != nil {
			report.Failures = append(report.Failures, err)
			continue
		}
		report.Linked = append(report.Linked, Link{
			Connection: c.ID,
			Source:     src.Attachment,
			Target:     tgt.Attachment,
			Handle:     handle,
		})
	}
	return report
}

func nodeName(g *graph.Graph, id graph.NodeID) string {
	if n := g.Node(id); n != nil {
		return n.Name
	}
	return string(id)
}

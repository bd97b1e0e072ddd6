package document

import (
	"errors"
	"fmt"

	"github.com/Benny93/rigweave/internal/graph"
)

// Substitution records a node whose kind was unknown and which was replaced
// by a generic node.
type Substitution struct {
	NodeID string
	Name   string
	Kind   string
}

// SkippedConnection records a connection that could not be restored.
type SkippedConnection struct {
	Record ConnectionRecord
	Err    error
}

// LoadReport lists everything Rebuild had to work around.
type LoadReport struct {
	Substituted []Substitution
	Skipped     []SkippedConnection

	// Renamed maps a record name to the unique name it was given.
	Renamed map[string]string

	// Reassigned lists record ids that collided and got fresh ids.
	Reassigned []string

	// Params lists parameter values that failed validation and were reset.
	Params []error
}

// Clean reports whether the document loaded without any workaround.
func (r *LoadReport) Clean() bool {
	return len(r.Substituted) == 0 && len(r.Skipped) == 0 && len(r.Renamed) == 0 &&
		len(r.Reassigned) == 0 && len(r.Params) == 0
}

// Problems renders the report as one line per issue.
func (r *LoadReport) Problems() []string {
	var out []string
	for _, s := range r.Substituted {
		out = append(out, fmt.Sprintf("node %q: unknown kind %q, replaced by a generic node", s.Name, s.Kind))
	}
	for _, s := range r.Skipped {
		out = append(out, fmt.Sprintf("connection %s.%s -> %s.%s skipped: %v",
			s.Record.SourceNode, s.Record.SourceSocket, s.Record.TargetNode, s.Record.TargetSocket, s.Err))
	}
	for from, to := range r.Renamed {
		out = append(out, fmt.Sprintf("node %q renamed to %q", from, to))
	}
	for _, id := range r.Reassigned {
		out = append(out, fmt.Sprintf("duplicate node id %q reassigned", id))
	}
	for _, err := range r.Params {
		out = append(out, err.Error())
	}
	return out
}

// Rebuild constructs a fresh graph from a document. Problems never abort the
// load: unknown kinds become generic nodes and unresolvable connections are
// skipped, all of it recorded in the report.
func Rebuild(doc *Document, types *graph.TypeRegistry) (*graph.Graph, *LoadReport) {
	g := graph.New(types)
	report := &LoadReport{Renamed: make(map[string]string)}

	byRecordID := make(map[string]graph.NodeID, len(doc.Nodes))
	byRecordName := make(map[string]graph.NodeID, len(doc.Nodes))

	for _, rec := range doc.Nodes {
		n := restoreNode(g, rec, report)
		if n == nil {
			continue
		}
		if rec.ID != "" {
			if _, seen := byRecordID[rec.ID]; !seen {
				byRecordID[rec.ID] = n.ID
			}
		}
		if _, seen := byRecordName[rec.Name]; !seen {
			byRecordName[rec.Name] = n.ID
		}
		if rec.Name != "" && n.Name != rec.Name {
			report.Renamed[rec.Name] = n.Name
		}
		restoreAttachments(g, n, rec.Sockets)
	}

	resolveNode := func(key string) *graph.Node {
		if id, ok := byRecordID[key]; ok {
			return g.Node(id)
		}
		if id, ok := byRecordName[key]; ok {
			return g.Node(id)
		}
		return nil
	}

	for _, rec := range doc.Connections {
		if err := restoreConnection(g, rec, resolveNode); err != nil {
			report.Skipped = append(report.Skipped, SkippedConnection{Record: rec, Err: err})
		}
	}
	return g, report
}

func restoreNode(g *graph.Graph, rec NodeRecord, report *LoadReport) *graph.Node {
	id := graph.NodeID(rec.ID)
	kind := graph.NodeKind(rec.Kind)
	params := rec.Parameters

	if _, err := graph.LookupKind(kind); err != nil {
		report.Substituted = append(report.Substituted, Substitution{NodeID: rec.ID, Name: rec.Name, Kind: rec.Kind})
		kind = graph.KindGeneric
		params = nil
		if notes, ok := rec.Parameters["notes"].(string); ok {
			params = map[string]any{"notes": notes}
		}
	}

	n, rejected, err := g.RestoreNode(id, kind, rec.Name, rec.Position, params)
	if errors.Is(err, graph.ErrDuplicateID) {
		report.Reassigned = append(report.Reassigned, rec.ID)
		n, rejected, err = g.RestoreNode("", kind, rec.Name, rec.Position, params)
	}
	if err != nil {
		// Only reachable if the generic kind were missing from the catalog.
		report.Params = append(report.Params, err)
		return nil
	}
	report.Params = append(report.Params, rejected...)
	return n
}

func restoreAttachments(g *graph.Graph, n *graph.Node, sockets SocketSet) {
	for _, s := range sockets.Input {
		if s.Attachment != "" && n.Socket(graph.DirectionInput, s.Name) != nil {
			_ = g.SetAttachment(n.Ref(graph.DirectionInput, s.Name), s.Attachment)
		}
	}
	for _, s := range sockets.Output {
		if s.Attachment != "" && n.Socket(graph.DirectionOutput, s.Name) != nil {
			_ = g.SetAttachment(n.Ref(graph.DirectionOutput, s.Name), s.Attachment)
		}
	}
}

// resolveSocket looks for name on the expected side first and falls back to
// the other side, so documents with swapped roles still load.
func resolveSocket(n *graph.Node, name string, expected graph.Direction) (graph.SocketRef, error) {
	if n.Socket(expected, name) != nil {
		return n.Ref(expected, name), nil
	}
	if n.Socket(expected.Opposite(), name) != nil {
		return n.Ref(expected.Opposite(), name), nil
	}
	return graph.SocketRef{}, &graph.LookupError{Key: n.Name + "." + name, Err: graph.ErrSocketNotFound}
}

func restoreConnection(g *graph.Graph, rec ConnectionRecord, resolveNode func(string) *graph.Node) error {
	src := resolveNode(rec.SourceNode)
	if src == nil {
		return &graph.LookupError{Key: rec.SourceNode, Err: graph.ErrNodeNotFound}
	}
	tgt := resolveNode(rec.TargetNode)
	if tgt == nil {
		return &graph.LookupError{Key: rec.TargetNode, Err: graph.ErrNodeNotFound}
	}

	srcRef, err := resolveSocket(src, rec.SourceSocket, graph.DirectionOutput)
	if err != nil {
		return err
	}
	tgtRef, err := resolveSocket(tgt, rec.TargetSocket, graph.DirectionInput)
	if err != nil {
		return err
	}

	c, err := g.RestoreConnection(rec.ID, srcRef, tgtRef)
	if err != nil {
		return err
	}

	// Swapped records were normalised by the graph; keep the cached handles
	// attached to the ends they were recorded for.
	srcAttach, tgtAttach := rec.SourceAttachment, rec.TargetAttachment
	if c.Source != srcRef {
		srcAttach, tgtAttach = tgtAttach, srcAttach
	}
	if srcAttach != "" || tgtAttach != "" {
		_ = g.SetConnectionAttachments(c.ID, srcAttach, tgtAttach)
	}
	return nil
}

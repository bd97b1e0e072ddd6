package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/search"
)

func findNode(g *graph.Graph, key string) (*graph.Node, error) {
	if key == "" {
		return nil, fmt.Errorf("node is required")
	}
	if n := g.NodeByName(key); n != nil {
		return n, nil
	}
	if n := g.Node(graph.NodeID(key)); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("node not found: %s", key)
}

// findSocket resolves "node.socket". Socket names may repeat across the two
// sides of a node; prefer decides which side wins.
func findSocket(g *graph.Graph, spec string, prefer graph.Direction) (graph.SocketRef, error) {
	i := strings.LastIndex(spec, ".")
	if i <= 0 || i == len(spec)-1 {
		return graph.SocketRef{}, fmt.Errorf("socket %q: expected node.socket", spec)
	}
	n, err := findNode(g, spec[:i])
	if err != nil {
		return graph.SocketRef{}, err
	}
	name := spec[i+1:]
	for _, dir := range []graph.Direction{prefer, prefer.Opposite()} {
		if n.Socket(dir, name) != nil {
			return n.Ref(dir, name), nil
		}
	}
	return graph.SocketRef{}, fmt.Errorf("socket not found: %s", spec)
}

func socketLabel(g *graph.Graph, ref graph.SocketRef) string {
	if n := g.Node(ref.Node); n != nil {
		return n.Name + "." + ref.Name
	}
	return string(ref.Node) + "." + ref.Name
}

func handleListNodes(g *graph.Graph, kind string) string {
	var sb strings.Builder
	count := 0
	for _, n := range g.Nodes() {
		if kind != "" && !strings.EqualFold(string(n.Kind), kind) {
			continue
		}
		attached := 0
		total := 0
		for _, s := range append(append([]*graph.Socket{}, n.Inputs...), n.Outputs...) {
			if s.HandleIndex == graph.NoHandle {
				continue
			}
			total++
			if s.Attachment != "" {
				attached++
			}
		}
		fmt.Fprintf(&sb, "  %s (%s) at (%.0f, %.0f), %d/%d attached\n",
			n.Name, n.Kind, n.Position.X, n.Position.Y, attached, total)
		count++
	}
	if count == 0 {
		if kind != "" {
			return fmt.Sprintf("No %s nodes.\n", kind)
		}
		return "The graph is empty.\n"
	}
	return fmt.Sprintf("Nodes (%d):\n", count) + sb.String()
}

func handleSearch(g *graph.Graph, query string, limit int) string {
	results := search.Build(g).Search(query, limit)
	if len(results) == 0 {
		return fmt.Sprintf("No nodes match %q.\n", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matches for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s) score %.2f\n", i+1, r.Name, r.Kind, r.Score)
	}
	return sb.String()
}

func handleNode(g *graph.Graph, key string) (string, error) {
	n, err := findNode(g, key)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Node: %s\n", n.Name)
	fmt.Fprintf(&sb, "ID: %s\n", n.ID)
	fmt.Fprintf(&sb, "Kind: %s\n", n.Kind)
	fmt.Fprintf(&sb, "Position: (%.0f, %.0f)\n", n.Position.X, n.Position.Y)

	if len(n.Params) > 0 {
		sb.WriteString("\nParameters:\n")
		names := make([]string, 0, len(n.Params))
		for name := range n.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s = %v\n", name, n.Params[name])
		}
	}

	for _, side := range []struct {
		title   string
		sockets []*graph.Socket
	}{{"Inputs", n.Inputs}, {"Outputs", n.Outputs}} {
		if len(side.sockets) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", side.title)
		for _, s := range side.sockets {
			fmt.Fprintf(&sb, "  %s [%s]", s.Name, s.Type)
			if s.Attachment != "" {
				fmt.Fprintf(&sb, " attached to %s", s.Attachment)
			}
			peers := s.Peers()
			if len(peers) > 0 {
				labels := make([]string, len(peers))
				for i, p := range peers {
					labels[i] = socketLabel(g, p)
				}
				fmt.Fprintf(&sb, " <-> %s", strings.Join(labels, ", "))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func handleConnections(g *graph.Graph, key string) (string, error) {
	conns := g.Connections()
	if key != "" {
		n, err := findNode(g, key)
		if err != nil {
			return "", err
		}
		conns = g.ConnectionsOf(n.ID)
	}
	if len(conns) == 0 {
		return "No connections.\n", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Connections (%d):\n", len(conns))
	for _, c := range conns {
		fmt.Fprintf(&sb, "  %s -> %s", socketLabel(g, c.Source), socketLabel(g, c.Target))
		if c.SourceAttachment != "" && c.TargetAttachment != "" {
			fmt.Fprintf(&sb, " (linked %s -> %s)", c.SourceAttachment, c.TargetAttachment)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func handleValidate(g *graph.Graph, report *document.LoadReport) string {
	if report.Clean() {
		return fmt.Sprintf("OK: %d node(s), %d connection(s) load without problems.\n",
			g.NodeCount(), g.ConnectionCount())
	}
	problems := report.Problems()
	sort.Strings(problems)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Problems (%d):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(&sb, "  %s\n", p)
	}
	return sb.String()
}

func handleCanConnect(g *graph.Graph, from, to string) (string, error) {
	a, err := findSocket(g, from, graph.DirectionOutput)
	if err != nil {
		return "", err
	}
	b, err := findSocket(g, to, graph.DirectionInput)
	if err != nil {
		return "", err
	}
	if err := g.CanConnect(a, b); err != nil {
		var reason string
		switch {
		case errors.Is(err, graph.ErrIncompatibleTypes):
			reason = "socket types are incompatible"
		case errors.Is(err, graph.ErrSameDirection):
			reason = "both sockets face the same way"
		case errors.Is(err, graph.ErrSelfLoop):
			reason = "a socket cannot connect to itself"
		case errors.Is(err, graph.ErrAlreadyConnected):
			reason = "the sockets are already connected"
		default:
			reason = err.Error()
		}
		return fmt.Sprintf("No: %s\n", reason), nil
	}
	return fmt.Sprintf("Yes: %s can connect to %s\n", from, to), nil
}

func handleBuildPlan(g *graph.Graph, o *rig.Orchestrator, key string) (string, error) {
	n, err := findNode(g, key)
	if err != nil {
		return "", err
	}
	template, build, err := o.Requests(n)
	if err != nil {
		return "", err
	}

	plan := struct {
		Node     string       `json:"node"`
		Kind     string       `json:"kind"`
		Template *rig.Request `json:"template,omitempty"`
		Build    *rig.Request `json:"build,omitempty"`
	}{Node: n.Name, Kind: string(n.Kind)}
	if template.Operation != "" {
		plan.Template = &template
	}
	if build.Operation != "" {
		plan.Build = &build
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func getOverview(g *graph.Graph, report *document.LoadReport) string {
	counts := make(map[graph.NodeKind]int)
	for _, n := range g.Nodes() {
		counts[n.Kind]++
	}

	var sb strings.Builder
	sb.WriteString("Rig Overview\n")
	sb.WriteString("============\n\n")
	fmt.Fprintf(&sb, "Nodes: %d\n", g.NodeCount())
	fmt.Fprintf(&sb, "Connections: %d\n", g.ConnectionCount())
	for _, spec := range graph.Kinds() {
		if c := counts[spec.Kind]; c > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", spec.Label, c)
		}
	}
	if !report.Clean() {
		fmt.Fprintf(&sb, "\nLoad problems: %d\n", len(report.Problems()))
	}
	return sb.String()
}

func getKinds() string {
	var sb strings.Builder
	for _, spec := range graph.Kinds() {
		fmt.Fprintf(&sb, "%s (%s)\n", spec.Label, spec.Kind)
		for _, s := range spec.Inputs {
			fmt.Fprintf(&sb, "  in  %s [%s]\n", s.Name, s.Type)
		}
		for _, s := range spec.Outputs {
			fmt.Fprintf(&sb, "  out %s [%s]\n", s.Name, s.Type)
		}
		for _, p := range spec.Params {
			fmt.Fprintf(&sb, "  param %s %s default %v", p.Name, p.Type, p.Default)
			if rule := p.Rule(); rule != "" {
				fmt.Fprintf(&sb, " (%s)", rule)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func getSchema() (string, error) {
	schema, err := jsonschema.For[document.Document](nil)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Package search finds nodes in a rig graph by name, kind, socket names and
// notes.
//
// The index is an in-memory inverted index rebuilt from a graph. Scores are
// term frequency weighted by inverse document frequency, with matches on the
// node name counting double.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Benny93/rigweave/internal/graph"
)

// nameWeight multiplies the frequency of tokens taken from the node name.
const nameWeight = 2

var (
	separators = regexp.MustCompile(`[_\.\-\s]+`)
	camelCase  = regexp.MustCompile(`([a-z])([A-Z])`)
	letterNum  = regexp.MustCompile(`([a-zA-Z])(\d)`)
	numLetter  = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// Result is one ranked match.
type Result struct {
	NodeID graph.NodeID
	Name   string
	Kind   graph.NodeKind
	Score  float64
}

// Index maps tokens to the nodes that contain them.
type Index struct {
	postings map[string]map[graph.NodeID]float64
	nodes    map[graph.NodeID]*graph.Node
}

// Tokenize splits text into lowercase search tokens. It keeps the whole
// text and also splits on separators, camelCase humps and letter/digit
// boundaries, so "leftArm_IK2" yields "left", "arm", "ik" and "2".
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		tok = strings.ToLower(tok)
		if tok != "" && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}

	for _, word := range strings.Fields(text) {
		add(word)
	}
	for _, part := range separators.Split(text, -1) {
		add(part)
		split := camelCase.ReplaceAllString(part, "$1 $2")
		split = letterNum.ReplaceAllString(split, "$1 $2")
		split = numLetter.ReplaceAllString(split, "$1 $2")
		for _, p := range strings.Fields(split) {
			add(p)
		}
	}
	return out
}

// Build indexes every node of g.
func Build(g *graph.Graph) *Index {
	idx := &Index{
		postings: make(map[string]map[graph.NodeID]float64),
		nodes:    make(map[graph.NodeID]*graph.Node),
	}
	for _, n := range g.Nodes() {
		idx.add(n)
	}
	return idx
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.nodes)
}

func (idx *Index) add(n *graph.Node) {
	idx.nodes[n.ID] = n

	freq := make(map[string]float64)
	for _, tok := range Tokenize(n.Name) {
		freq[tok] += nameWeight
	}

	var text []string
	text = append(text, string(n.Kind))
	if spec, err := graph.LookupKind(n.Kind); err == nil {
		text = append(text, spec.Label)
	}
	for _, s := range n.Inputs {
		text = append(text, s.Name)
	}
	for _, s := range n.Outputs {
		text = append(text, s.Name)
	}
	if notes := n.Params.String("notes"); notes != "" {
		text = append(text, notes)
	}
	for _, tok := range Tokenize(strings.Join(text, " ")) {
		freq[tok]++
	}

	for tok, f := range freq {
		postings := idx.postings[tok]
		if postings == nil {
			postings = make(map[graph.NodeID]float64)
			idx.postings[tok] = postings
		}
		postings[n.ID] = f
	}
}

// idf is the smoothed inverse document frequency of a token.
func (idx *Index) idf(tok string) float64 {
	df := len(idx.postings[tok])
	return math.Log(1 + float64(len(idx.nodes))/float64(df))
}

// Search ranks nodes against query. Ties are broken by name. A limit of
// zero or less returns every match.
func (idx *Index) Search(query string, limit int) []Result {
	scores := make(map[graph.NodeID]float64)
	for _, tok := range Tokenize(query) {
		postings, ok := idx.postings[tok]
		if !ok {
			continue
		}
		w := idx.idf(tok)
		for id, f := range postings {
			scores[id] += f * w
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		n := idx.nodes[id]
		results = append(results, Result{NodeID: id, Name: n.Name, Kind: n.Kind, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

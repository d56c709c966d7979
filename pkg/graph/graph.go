package graph

import (
	"fmt"
	"iter"
	"sort"

	"github.com/OFFIS-RIT/matchgraph/pkg/common"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Group is the side of the bipartite graph a node belongs to.
type Group string

const (
	GroupSource Group = "source"
	GroupTarget Group = "target"
)

// NodeKey identifies a node. The same name in both groups yields two nodes.
type NodeKey struct {
	Group Group  `json:"group"`
	Name  string `json:"name"`
}

func (k NodeKey) String() string {
	return string(k.Group) + ":" + k.Name
}

// Node is an entity of one group. It implements gonum's graph.Node.
type Node struct {
	id  int64
	Key NodeKey
}

func (n *Node) ID() int64 { return n.id }

// Match is the weighted edge between a source node and a target node.
// It implements gonum's graph.WeightedEdge; F and T follow the orientation
// requested from the underlying graph, Source and Target do not.
type Match struct {
	F, T               *Node
	W                  float64
	Justification      string
	JustificationScore float64
}

func (m *Match) From() gonum.Node { return m.F }
func (m *Match) To() gonum.Node   { return m.T }
func (m *Match) Weight() float64  { return m.W }

func (m *Match) ReversedEdge() gonum.Edge {
	r := *m
	r.F, r.T = m.T, m.F
	return &r
}

// Source returns the endpoint in the source group.
func (m *Match) Source() *Node {
	if m.F.Key.Group == GroupSource {
		return m.F
	}
	return m.T
}

// Target returns the endpoint in the target group.
func (m *Match) Target() *Node {
	if m.F.Key.Group == GroupSource {
		return m.T
	}
	return m.F
}

type pair struct {
	source, target int64
}

// Graph is an undirected weighted bipartite graph of matched entities.
// Nodes and edges are reported in first-insertion order so that everything
// derived from a graph is reproducible.
type Graph struct {
	g     *simple.WeightedUndirectedGraph
	ids   map[NodeKey]int64
	nodes []*Node
	pairs []pair
	seen  map[pair]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		g:    simple.NewWeightedUndirectedGraph(0, 0),
		ids:  make(map[NodeKey]int64),
		seen: make(map[pair]struct{}),
	}
}

// Build creates a graph from a record sequence.
func Build(records iter.Seq[common.EdgeRecord]) *Graph {
	g := New()
	for rec := range records {
		g.Add(rec)
	}
	return g
}

// BuildFromSlice is Build over a slice.
func BuildFromSlice(records []common.EdgeRecord) *Graph {
	return Build(func(yield func(common.EdgeRecord) bool) {
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	})
}

// Add inserts both endpoints if needed and sets the edge between them.
// A repeated pair overwrites the previous edge attributes.
func (g *Graph) Add(rec common.EdgeRecord) {
	src := g.ensureNode(NodeKey{Group: GroupSource, Name: rec.Source})
	tgt := g.ensureNode(NodeKey{Group: GroupTarget, Name: rec.Target})

	g.g.SetWeightedEdge(&Match{
		F:                  src,
		T:                  tgt,
		W:                  rec.Score,
		Justification:      rec.Justification,
		JustificationScore: rec.JustificationScore,
	})

	p := pair{source: src.id, target: tgt.id}
	if _, ok := g.seen[p]; !ok {
		g.seen[p] = struct{}{}
		g.pairs = append(g.pairs, p)
	}
}

func (g *Graph) ensureNode(key NodeKey) *Node {
	if id, ok := g.ids[key]; ok {
		return g.nodes[id]
	}
	n := &Node{id: int64(len(g.nodes)), Key: key}
	g.ids[key] = n.id
	g.nodes = append(g.nodes, n)
	g.g.AddNode(n)
	return n
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.pairs) }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Node looks up a node by key.
func (g *Graph) Node(key NodeKey) (*Node, bool) {
	id, ok := g.ids[key]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// Edge returns the edge between a source and a target entity.
func (g *Graph) Edge(source, target string) (*Match, bool) {
	s, ok := g.ids[NodeKey{Group: GroupSource, Name: source}]
	if !ok {
		return nil, false
	}
	t, ok := g.ids[NodeKey{Group: GroupTarget, Name: target}]
	if !ok {
		return nil, false
	}
	return g.match(s, t)
}

func (g *Graph) match(uid, vid int64) (*Match, bool) {
	e := g.g.WeightedEdge(uid, vid)
	if e == nil {
		return nil, false
	}
	m, ok := e.(*Match)
	return m, ok
}

// Edges returns all edges in the order their pair first appeared, oriented
// from source to target.
func (g *Graph) Edges() []*Match {
	out := make([]*Match, 0, len(g.pairs))
	for _, p := range g.pairs {
		if m, ok := g.match(p.source, p.target); ok {
			out = append(out, m)
		}
	}
	return out
}

// Incident returns the edges touching the node, ordered by neighbour
// insertion. Unknown keys have no edges.
func (g *Graph) Incident(key NodeKey) []*Match {
	id, ok := g.ids[key]
	if !ok {
		return nil
	}
	neighbours := gonum.NodesOf(g.g.From(id))
	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].ID() < neighbours[j].ID() })

	out := make([]*Match, 0, len(neighbours))
	for _, n := range neighbours {
		if m, ok := g.match(id, n.ID()); ok {
			out = append(out, m)
		}
	}
	return out
}

// Degree returns the number of edges touching the node.
func (g *Graph) Degree(key NodeKey) int {
	id, ok := g.ids[key]
	if !ok {
		return 0
	}
	return g.g.From(id).Len()
}

// HasJustification reports whether any edge carries rationale data. Graphs
// without it are rendered in the plain variant.
func (g *Graph) HasJustification() bool {
	for _, m := range g.Edges() {
		if m.Justification != "" || m.JustificationScore != 0 {
			return true
		}
	}
	return false
}

// Validate checks that every edge joins a source node to a target node.
func (g *Graph) Validate() error {
	for _, m := range g.Edges() {
		if m.F.Key.Group == m.T.Key.Group {
			return fmt.Errorf("edge %s -- %s joins two %s nodes", m.F.Key, m.T.Key, m.F.Key.Group)
		}
	}
	return nil
}

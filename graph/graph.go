// Package graph implements the reference variation graph: a DAG whose nodes
// carry nucleotide sequences from a reference genome augmented with variant
// alternatives, built from an indexed FASTA and a variant catalog.  Graphs
// share their nodes through an Arena; subgraphs are filtered views over a
// parent's node set.
package graph

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Graph is one view over an arena: an insertion order (which is also the
// topological traversal order), forward and reverse adjacency, and a root.
type Graph struct {
	arena    *Arena
	order    []uint32
	orderIdx map[uint32]int
	next     map[uint32][]uint32
	prev     map[uint32][]uint32
	root     uint32
	hasRoot  bool
	popSize  int
}

// NewGraph returns an empty graph over the given arena.
func NewGraph(arena *Arena) *Graph {
	return &Graph{
		arena:    arena,
		orderIdx: make(map[uint32]int),
		next:     make(map[uint32][]uint32),
		prev:     make(map[uint32][]uint32),
	}
}

// Arena returns the node arena this graph references.
func (g *Graph) Arena() *Arena { return g.arena }

// AddNode adds n to the arena and appends it to this graph's order.  The
// first node added becomes the root.
func (g *Graph) AddNode(n *Node) uint32 {
	id := g.arena.Add(n)
	g.append(id)
	return id
}

// append places an existing arena node at the end of the traversal order.
func (g *Graph) append(id uint32) {
	if !g.hasRoot {
		g.root = id
		g.hasRoot = true
	}
	g.orderIdx[id] = len(g.order)
	g.order = append(g.order, id)
}

// AddEdge connects u to v.  Edges must point forward in insertion order so
// that the order remains a valid topological order.
func (g *Graph) AddEdge(u, v uint32) error {
	ui, ok := g.orderIdx[u]
	if !ok {
		return errors.E(fmt.Sprintf("graph: edge source %d not in graph", u))
	}
	vi, ok := g.orderIdx[v]
	if !ok {
		return errors.E(fmt.Sprintf("graph: edge destination %d not in graph", v))
	}
	if ui >= vi {
		return errors.E(fmt.Sprintf("graph: edge %d->%d violates insertion order", u, v))
	}
	g.addEdgeUnchecked(u, v)
	return nil
}

func (g *Graph) addEdgeUnchecked(u, v uint32) {
	g.next[u] = append(g.next[u], v)
	g.prev[v] = append(g.prev[v], u)
}

// Node resolves an ID against the arena.
func (g *Graph) Node(id uint32) *Node { return g.arena.Node(id) }

// Order returns the traversal order.  Callers must not modify it.
func (g *Graph) Order() []uint32 { return g.order }

// Contains reports whether the graph's order includes id.
func (g *Graph) Contains(id uint32) bool {
	_, ok := g.orderIdx[id]
	return ok
}

// Next returns the successors of id.
func (g *Graph) Next(id uint32) []uint32 { return g.next[id] }

// Prev returns the predecessors of id.
func (g *Graph) Prev(id uint32) []uint32 { return g.prev[id] }

// Root returns the root node ID.
func (g *Graph) Root() uint32 { return g.root }

// NumNodes returns the number of nodes in this view.
func (g *Graph) NumNodes() int { return len(g.order) }

// PopSize returns the haplotype count of the source catalog.
func (g *Graph) PopSize() int { return g.popSize }

// SetPopSize records the haplotype count; it is set once during build.
func (g *Graph) SetPopSize(n int) { g.popSize = n }

// Linear reports whether no node has more than one successor.  Sub-optimal
// score tracking is only meaningful on linear graphs.
func (g *Graph) Linear() bool {
	for _, id := range g.order {
		if len(g.next[id]) > 1 {
			return false
		}
	}
	return true
}

// MaxNodeLen returns the longest node sequence in the graph.
func (g *Graph) MaxNodeLen() int {
	m := 0
	for _, id := range g.order {
		if l := g.Node(id).Len(); l > m {
			m = l
		}
	}
	return m
}

// Validate checks the structural invariants: every edge points forward in
// insertion order and, in a graph of more than one node, no non-root node
// is without both predecessors and successors.  A non-root node with
// successors but no predecessor (such as the first node of a later region)
// is accepted.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, v := range g.next[id] {
			vi, ok := g.orderIdx[v]
			if !ok {
				return errors.E(fmt.Sprintf("graph: edge %d->%d leaves the graph", id, v))
			}
			if vi <= g.orderIdx[id] {
				return errors.E(fmt.Sprintf("graph: edge %d->%d violates topological order", id, v))
			}
		}
		if id != g.root && len(g.prev[id]) == 0 && len(g.next[id]) == 0 && len(g.order) > 1 {
			return errors.E(fmt.Sprintf("graph: node %d is disconnected", id))
		}
	}
	return nil
}

// Stats summarizes a graph for progress logging.
type Stats struct {
	Nodes     int
	Edges     int
	Length    int // total sequence bases
	SNPs      int // single-base alternate nodes
	Deletions int // empty alternate nodes
}

func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d edges, %d bases, %d SNPs, %d deletions",
		s.Nodes, s.Edges, s.Length, s.SNPs, s.Deletions)
}

// Stats computes summary statistics over the graph's nodes and edges.
func (g *Graph) Stats() Stats {
	var s Stats
	s.Nodes = len(g.order)
	for _, id := range g.order {
		n := g.Node(id)
		s.Edges += len(g.next[id])
		s.Length += n.Len()
		if !n.Ref {
			switch n.Len() {
			case 0:
				s.Deletions++
			case 1:
				s.SNPs++
			}
		}
	}
	return s
}

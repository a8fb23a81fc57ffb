package graph

import (
	"math/bits"

	"github.com/grailbio/base/bitset"
	gsimd "github.com/grailbio/base/simd"
)

// Population is a haplotype bitset: bit i is set iff haplotype i carries the
// allele.  The zero Population is "universal" and stands for the all-ones
// bitset of reference/backbone nodes, whatever the catalog's haplotype count.
type Population struct {
	words []uintptr
	n     int
}

// NewPopulation returns an explicit all-zero bitset over n haplotypes.
func NewPopulation(n int) Population {
	nWords := (n + gsimd.BitsPerWord - 1) / gsimd.BitsPerWord
	return Population{words: make([]uintptr, nWords), n: n}
}

// Universal reports whether p is the implicit all-ones bitset.
func (p Population) Universal() bool { return p.n == 0 }

// Size returns the haplotype count, or 0 for a universal population.
func (p Population) Size() int { return p.n }

// Set marks haplotype i as carrying the allele.
func (p Population) Set(i int) { bitset.Set(p.words, i) }

// Test reports whether haplotype i carries the allele.
func (p Population) Test(i int) bool {
	if p.Universal() {
		return true
	}
	if i < 0 || i >= p.n {
		return false
	}
	return bitset.Test(p.words, i)
}

// Count returns the number of carrying haplotypes of an explicit
// population.  A universal population records no size and counts 0.
func (p Population) Count() int {
	c := 0
	for _, w := range p.words {
		c += bits.OnesCount(uint(w))
	}
	return c
}

// Intersects reports whether p and q share any haplotype.  A universal
// population intersects every population, including an empty explicit one.
func (p Population) Intersects(q Population) bool {
	if p.Universal() || q.Universal() {
		return true
	}
	n := len(p.words)
	if len(q.words) < n {
		n = len(q.words)
	}
	for i := 0; i < n; i++ {
		if p.words[i]&q.words[i] != 0 {
			return true
		}
	}
	return false
}

// Node is one vertex of a variation graph.  Nodes are immutable once added
// to an arena.
type Node struct {
	// ID is assigned by the arena, monotonically from zero.
	ID uint32
	// Seq is the node's coded sequence.  It is empty for a pure deletion
	// branch.
	Seq []Base
	// EndPos is the 0-indexed linearized genomic coordinate of the node's
	// last base.  An empty node inherits its predecessor's EndPos.
	EndPos uint32
	// AF is the allele frequency, 1 for reference and monomorphic spans.
	AF float32
	// Ref marks nodes on the reference backbone.
	Ref bool
	// Pinched marks nodes no concurrent alternative spans; every path of the
	// graph passes through them, so per-node alignment state may be reset
	// there.
	Pinched bool
	// Pop is the set of haplotypes carrying this node.
	Pop Population
}

// Len returns the sequence length.
func (n *Node) Len() int { return len(n.Seq) }

// BeginPos returns the coordinate of the node's first base.  For an empty
// node it returns EndPos+1, the position the deleted span would occupy.
func (n *Node) BeginPos() uint32 {
	return n.EndPos - uint32(len(n.Seq)) + 1
}

// SeqString returns the ASCII sequence.
func (n *Node) SeqString() string { return SeqString(n.Seq) }

// Arena owns the nodes shared by a family of graphs.  Graphs reference
// arena nodes by ID and never copy them.
type Arena struct {
	nodes []*Node
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Add assigns the next ID to n and stores it.
func (a *Arena) Add(n *Node) uint32 {
	n.ID = uint32(len(a.nodes))
	a.nodes = append(a.nodes, n)
	return n.ID
}

// Put stores a node under an explicit ID, growing the arena as needed.  It
// is used when restoring a serialized arena.
func (a *Arena) Put(id uint32, n *Node) {
	for uint32(len(a.nodes)) <= id {
		a.nodes = append(a.nodes, nil)
	}
	n.ID = id
	a.nodes[id] = n
}

// Node returns the node with the given ID, or nil.
func (a *Arena) Node(id uint32) *Node {
	if id >= uint32(len(a.nodes)) {
		return nil
	}
	return a.nodes[id]
}

// Len returns the number of ID slots in use.
func (a *Arena) Len() int { return len(a.nodes) }

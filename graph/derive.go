package graph

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// DeriveRef returns the subgraph of parent containing only reference
// backbone nodes.  Deriving REF from a REF-derived graph is the identity.
func DeriveRef(parent *Graph) (*Graph, error) {
	return deriveSubset(parent, func(n *Node) bool { return n.Ref })
}

// DeriveMaxAF returns the linear path from the root that always follows the
// successor with the highest allele frequency.
func DeriveMaxAF(parent *Graph) (*Graph, error) {
	included := make(map[uint32]bool, len(parent.order))
	if parent.hasRoot {
		curr := parent.root
		for {
			included[curr] = true
			succ := parent.next[curr]
			if len(succ) == 0 {
				break
			}
			best := succ[0]
			for _, id := range succ[1:] {
				if parent.Node(id).AF > parent.Node(best).AF {
					best = id
				}
			}
			curr = best
		}
	}
	return deriveSubset(parent, func(n *Node) bool { return included[n.ID] })
}

// DeriveFilter returns the subgraph of nodes whose population intersects the
// given haplotype set.  Backbone nodes carry the universal population and
// are always retained.
func DeriveFilter(parent *Graph, filter Population) (*Graph, error) {
	return deriveSubset(parent, func(n *Node) bool { return n.Pop.Intersects(filter) })
}

// deriveSubset builds a view of parent restricted to the nodes keep accepts.
// The derived order is the parent's order filtered, and the adjacency is the
// parent's adjacency intersected with the retained set.  The parent's root
// must survive.
func deriveSubset(parent *Graph, keep func(*Node) bool) (*Graph, error) {
	g := NewGraph(parent.arena)
	g.popSize = parent.popSize
	included := make(map[uint32]bool, len(parent.order))
	for _, id := range parent.order {
		if keep(parent.Node(id)) {
			included[id] = true
			g.append(id)
		}
	}
	if len(g.order) == 0 {
		return nil, errors.New("graph: derivation retained no nodes")
	}
	if !included[parent.root] {
		return nil, errors.E(fmt.Sprintf("graph: derivation drops the root node %d", parent.root))
	}
	for _, id := range g.order {
		for _, v := range parent.next[id] {
			if included[v] {
				g.addEdgeUnchecked(id, v)
			}
		}
	}
	return g, nil
}

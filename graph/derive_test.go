package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deriveParent builds AAA -> {CCC(ref, af .4), GGG(alt, af .6)} -> TTTA with
// explicit populations over 4 haplotypes.
func deriveParent() *Graph {
	g := NewGraph(NewArena())
	g.SetPopSize(4)
	g.AddNode(&Node{Seq: SeqFromString("AAA"), EndPos: 2, Ref: true, AF: 1, Pinched: true})
	ref := &Node{Seq: SeqFromString("CCC"), EndPos: 5, Ref: true, AF: 0.4, Pop: NewPopulation(4)}
	ref.Pop.Set(0)
	ref.Pop.Set(1)
	alt := &Node{Seq: SeqFromString("GGG"), EndPos: 5, AF: 0.6, Pop: NewPopulation(4)}
	alt.Pop.Set(2)
	alt.Pop.Set(3)
	g.AddNode(ref)
	g.AddNode(alt)
	g.AddNode(&Node{Seq: SeqFromString("TTTA"), EndPos: 9, Ref: true, AF: 1, Pinched: true})
	for _, e := range [][2]uint32{{0, 1}, {0, 2}, {1, 3}, {2, 3}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			panic(err)
		}
	}
	return g
}

func TestDeriveRef(t *testing.T) {
	parent := deriveParent()
	ref, err := DeriveRef(parent)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 3}, ref.Order())
	assert.Equal(t, []uint32{1}, ref.Next(0))
	assert.Equal(t, []uint32{3}, ref.Next(1))
	assert.True(t, ref.Linear())
	assert.Equal(t, parent.Arena(), ref.Arena())
	assert.Equal(t, parent.Root(), ref.Root())
}

func TestDeriveRefIdempotent(t *testing.T) {
	parent := deriveParent()
	once, err := DeriveRef(parent)
	require.NoError(t, err)
	twice, err := DeriveRef(once)
	require.NoError(t, err)
	assert.Equal(t, once.Order(), twice.Order())
}

func TestDeriveMaxAF(t *testing.T) {
	parent := deriveParent()
	maxaf, err := DeriveMaxAF(parent)
	require.NoError(t, err)
	// The path follows GGG (af .6) over CCC (af .4).
	assert.Equal(t, []uint32{0, 2, 3}, maxaf.Order())
	assert.True(t, maxaf.Linear())

	again, err := DeriveMaxAF(maxaf)
	require.NoError(t, err)
	assert.Equal(t, maxaf.Order(), again.Order())
}

func TestDeriveFilter(t *testing.T) {
	parent := deriveParent()
	filter := NewPopulation(4)
	filter.Set(2)
	sub, err := DeriveFilter(parent, filter)
	require.NoError(t, err)
	// Haplotype 2 carries GGG but not CCC; the backbone is universal.
	assert.Equal(t, []uint32{0, 2, 3}, sub.Order())
	assert.Equal(t, []uint32{2}, sub.Next(0))
}

func TestDeriveDropsRoot(t *testing.T) {
	g := NewGraph(NewArena())
	g.SetPopSize(2)
	root := &Node{Seq: SeqFromString("A"), EndPos: 0, Pop: NewPopulation(2)}
	root.Pop.Set(0)
	g.AddNode(root)
	tail := &Node{Seq: SeqFromString("C"), EndPos: 1, Ref: true}
	g.AddNode(tail)
	require.NoError(t, g.AddEdge(0, 1))

	filter := NewPopulation(2)
	filter.Set(1)
	_, err := DeriveFilter(g, filter)
	assert.Error(t, err)
}

func TestDeriveEmpty(t *testing.T) {
	parent := deriveParent()
	_, err := deriveSubset(parent, func(*Node) bool { return false })
	assert.Error(t, err)
}

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseCoding(t *testing.T) {
	assert.Equal(t, BaseA, BaseFromChar('a'))
	assert.Equal(t, BaseT, BaseFromChar('T'))
	assert.Equal(t, BaseN, BaseFromChar('x'))
	assert.Equal(t, "ACGTN", SeqString(SeqFromString("acgtn")))
	assert.Equal(t, BaseT, BaseA.Comp())
	assert.Equal(t, BaseG, BaseC.Comp())
	assert.Equal(t, BaseN, BaseN.Comp())
}

func TestPopulation(t *testing.T) {
	p := NewPopulation(70)
	assert.False(t, p.Universal())
	assert.Equal(t, 0, p.Count())
	p.Set(0)
	p.Set(69)
	assert.True(t, p.Test(0))
	assert.True(t, p.Test(69))
	assert.False(t, p.Test(35))
	assert.Equal(t, 2, p.Count())

	q := NewPopulation(70)
	q.Set(35)
	assert.False(t, p.Intersects(q))
	q.Set(69)
	assert.True(t, p.Intersects(q))

	var universal Population
	assert.True(t, universal.Universal())
	assert.True(t, universal.Test(123))
	assert.True(t, universal.Intersects(p))
	assert.True(t, p.Intersects(universal))
}

func TestNodeCoordinates(t *testing.T) {
	n := &Node{Seq: SeqFromString("ACGT"), EndPos: 9}
	assert.Equal(t, 4, n.Len())
	assert.Equal(t, uint32(6), n.BeginPos())

	empty := &Node{EndPos: 9}
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, uint32(10), empty.BeginPos())
}

func TestGraphEdges(t *testing.T) {
	g := NewGraph(NewArena())
	a := g.AddNode(&Node{Seq: SeqFromString("AA"), EndPos: 1, Ref: true})
	b := g.AddNode(&Node{Seq: SeqFromString("CC"), EndPos: 3, Ref: true})
	assert.Equal(t, a, g.Root())
	require.NoError(t, g.AddEdge(a, b))
	assert.Equal(t, []uint32{b}, g.Next(a))
	assert.Equal(t, []uint32{a}, g.Prev(b))

	// Backward and dangling edges are rejected.
	assert.Error(t, g.AddEdge(b, a))
	assert.Error(t, g.AddEdge(a, 99))
	assert.NoError(t, g.Validate())
}

func TestLinear(t *testing.T) {
	g := NewGraph(NewArena())
	a := g.AddNode(&Node{Seq: SeqFromString("A"), EndPos: 0, Ref: true})
	b := g.AddNode(&Node{Seq: SeqFromString("C"), EndPos: 1, Ref: true})
	c := g.AddNode(&Node{Seq: SeqFromString("G"), EndPos: 1})
	require.NoError(t, g.AddEdge(a, b))
	assert.True(t, g.Linear())
	require.NoError(t, g.AddEdge(a, c))
	assert.False(t, g.Linear())
}

func TestStats(t *testing.T) {
	g := NewGraph(NewArena())
	a := g.AddNode(&Node{Seq: SeqFromString("AAAA"), EndPos: 3, Ref: true, Pinched: true})
	b := g.AddNode(&Node{Seq: SeqFromString("C"), EndPos: 4, Ref: true})
	c := g.AddNode(&Node{Seq: SeqFromString("T"), EndPos: 4})
	d := g.AddNode(&Node{EndPos: 3})
	e := g.AddNode(&Node{Seq: SeqFromString("GG"), EndPos: 6, Ref: true, Pinched: true})
	for _, edge := range [][2]uint32{{a, b}, {a, c}, {a, d}, {b, e}, {c, e}, {d, e}} {
		require.NoError(t, g.AddEdge(edge[0], edge[1]))
	}
	s := g.Stats()
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 6, s.Edges)
	assert.Equal(t, 8, s.Length)
	assert.Equal(t, 1, s.SNPs)
	assert.Equal(t, 1, s.Deletions)
	assert.Equal(t, 4, g.MaxNodeLen())
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("chr1:100-2,000")
	require.NoError(t, err)
	assert.Equal(t, Region{"chr1", 100, 2000}, r)

	r, err = ParseRegion("chrX")
	require.NoError(t, err)
	assert.Equal(t, Region{Contig: "chrX"}, r)

	_, err = ParseRegion("chr1:9-3")
	assert.Error(t, err)
	_, err = ParseRegion(":1-2")
	assert.Error(t, err)
	_, err = ParseRegion("")
	assert.Error(t, err)
}

func TestMaterializeAlt(t *testing.T) {
	seq, ok := materializeAlt("C", "<CN7>")
	assert.True(t, ok)
	assert.Equal(t, "CCCCCCC", seq)

	seq, ok = materializeAlt("C", "<CN0>")
	assert.True(t, ok)
	assert.Equal(t, "", seq)

	_, ok = materializeAlt("G", "<DUP>")
	assert.False(t, ok)
	_, ok = materializeAlt("G", "*")
	assert.False(t, ok)

	seq, ok = materializeAlt("G", "GAT")
	assert.True(t, ok)
	assert.Equal(t, "GAT", seq)
}

package graph

import (
	"strings"
	"testing"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/vargraph/vcf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFA = `>x
CAAATAAGGCTTGGAAATTTTCTGGAGTTCTATTATATTCCAACTCTCTGGTTCCTGGTGCTATGTGTAACTAGTAATGG
TAATGGATATGTTGGGCTTTTTTCTTTGATTTATTTGAAGTGACGTTTGACAATCTATCACTAGGGGTAATGTGGGGAAA
>y
GGAGCCAGACAAATCTGGGTTCAAATCCTGGAGCCAGACAAATCTGGGTTCAAATCCTGGAGCCAGACAAATCTGGGTTC
`

const testVCFHeader = `##fileformat=VCFv4.1
##phasing=true
##contig=<ID=x>
##contig=<ID=y>
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele Freq">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2
`

const testVCFRecords = `x	9	.	G	A,C,T	99	.	AF=0.01,0.6,0.1	GT	0|1	2|3
x	10	.	C	<CN7>,<CN0>	99	.	AF=0.01,0.01	GT	1|1	2|1
y	5	.	C	T,G	99	.	AF=0.01,0.1	GT	1|1	2|1
y	34	.	C	<CN2>,<CN0>	99	.	AF=0.01,0.1	GT	1|1	2|1
y	39	.	C	T,G	99	.	AF=0.01	GT	1|0	0|1
`

func testBuilder(t *testing.T, vcfText string) (*Builder, fasta.Fasta) {
	fa, err := fasta.New(strings.NewReader(testFA))
	require.NoError(t, err)
	b := NewBuilder(fa)
	if vcfText != "" {
		b.SetVariants(func() (*vcf.Reader, error) {
			return vcf.New(strings.NewReader(vcfText))
		})
	}
	return b, fa
}

type wantNode struct {
	seq     string
	ref     bool
	pinched bool
}

func TestBuildTwoRegions(t *testing.T) {
	b, _ := testBuilder(t, testVCFHeader+testVCFRecords)
	g := NewGraph(NewArena())

	next, err := b.Build(g, Region{"x", 1, 15}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(15), next)
	next, err = b.Build(g, Region{"y", 1, 15}, next)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), next)

	want := []wantNode{
		{"CAAATAAG", true, true},
		{"G", true, false},
		{"A", false, false},
		{"C", false, false},
		{"T", false, false},
		{"C", true, false},
		{"CCCCCCC", false, false},
		{"", false, false},
		{"TTGGA", true, true},
		{"GGAG", true, true},
		{"C", true, false},
		{"T", false, false},
		{"G", false, false},
		{"CAGACAAATC", true, true},
	}
	require.Equal(t, len(want), g.NumNodes())
	for i, id := range g.Order() {
		n := g.Node(id)
		assert.Equal(t, want[i].seq, n.SeqString(), "node %d", i)
		assert.Equal(t, want[i].ref, n.Ref, "node %d", i)
		assert.Equal(t, want[i].pinched, n.Pinched, "node %d", i)
	}

	// Coordinates: the second region starts at linear offset 15.
	assert.Equal(t, uint32(7), g.Node(g.Order()[0]).EndPos)
	assert.Equal(t, uint32(15), g.Node(g.Order()[9]).BeginPos())
	assert.Equal(t, uint32(29), g.Node(g.Order()[13]).EndPos)
	// The empty deletion branch inherits its predecessor's end.
	assert.Equal(t, uint32(8), g.Node(g.Order()[7]).EndPos)

	// The backbone before the bubble fans out to every allele; the alleles
	// fan in to the next backbone chunk.
	ids := g.Order()
	assert.ElementsMatch(t, []uint32{ids[1], ids[2], ids[3], ids[4]}, g.Next(ids[0]))
	assert.ElementsMatch(t, []uint32{ids[5], ids[6], ids[7]}, g.Next(ids[1]))
	assert.ElementsMatch(t, []uint32{ids[8]}, g.Next(ids[6]))
	// Regions are separate components.
	assert.Empty(t, g.Next(ids[8]))
	assert.Empty(t, g.Prev(ids[9]))

	require.NoError(t, g.Validate())
	assert.False(t, g.Linear())
}

func TestBuildPopulationsAndFrequencies(t *testing.T) {
	b, _ := testBuilder(t, testVCFHeader+testVCFRecords)
	g := NewGraph(NewArena())
	_, err := b.Build(g, Region{"x", 1, 15}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, g.PopSize())

	ids := g.Order()
	// x:9 G->A,C,T with genotypes 0|1 and 2|3: one haplotype per allele.
	refNode := g.Node(ids[1])
	assert.InDelta(t, 1-0.71, float64(refNode.AF), 1e-6)
	for allele, idx := range []int{1, 2, 3, 4} {
		pop := g.Node(ids[idx]).Pop
		require.False(t, pop.Universal())
		assert.Equal(t, 1, pop.Count(), "allele %d", allele)
		assert.True(t, pop.Test(allele), "allele %d", allele)
	}
	// Backbone chunks are carried by everyone.
	assert.True(t, g.Node(ids[0]).Pop.Universal())
}

func TestBuildLinearNoVariants(t *testing.T) {
	b, _ := testBuilder(t, "")
	b.SetMaxNodeLen(50)
	g := NewGraph(NewArena())
	next, err := b.Build(g, Region{Contig: "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(160), next)
	// 160 bases in chunks of 50.
	require.Equal(t, 4, g.NumNodes())
	assert.Equal(t, 50, g.Node(g.Order()[0]).Len())
	assert.Equal(t, 10, g.Node(g.Order()[3]).Len())
	assert.True(t, g.Linear())
	for _, id := range g.Order() {
		assert.True(t, g.Node(id).Pinched)
	}
}

func TestBuildRejectsOverlap(t *testing.T) {
	overlapping := testVCFHeader +
		"x	9	.	GGC	A	99	.	AF=0.1	GT	0|1	0|0\n" +
		"x	10	.	C	T	99	.	AF=0.1	GT	0|1	0|0\n"
	b, _ := testBuilder(t, overlapping)
	g := NewGraph(NewArena())
	_, err := b.Build(g, Region{"x", 1, 20}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestBuildRecordLimit(t *testing.T) {
	b, _ := testBuilder(t, testVCFHeader+testVCFRecords)
	b.SetRecordLimit(1)
	g := NewGraph(NewArena())
	_, err := b.Build(g, Region{"x", 1, 15}, 0)
	require.NoError(t, err)
	// Only the first record becomes a bubble: backbone, 4 alleles, tail.
	assert.Equal(t, 6, g.NumNodes())
}

func TestBuildSkipsUnsupportedAlts(t *testing.T) {
	text := testVCFHeader + "x	9	.	G	<DUP>,T	99	.	AF=0.1,0.2	GT	1|0	2|0\n"
	b, _ := testBuilder(t, text)
	g := NewGraph(NewArena())
	_, err := b.Build(g, Region{"x", 1, 15}, 0)
	require.NoError(t, err)
	// backbone + ref G + T (DUP skipped) + tail backbone
	require.Equal(t, 4, g.NumNodes())
	assert.Equal(t, "T", g.Node(g.Order()[2]).SeqString())
}

func TestBuildSampleFilter(t *testing.T) {
	b, _ := testBuilder(t, testVCFHeader+testVCFRecords)
	b.SetSampleFilter([]string{"s2"})
	g := NewGraph(NewArena())
	_, err := b.Build(g, Region{"x", 1, 15}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, g.PopSize())
	// x:9 genotypes restricted to s2 (2|3): haplotype 0 carries allele 2.
	cNode := g.Node(g.Order()[3])
	assert.Equal(t, "C", cNode.SeqString())
	assert.True(t, cNode.Pop.Test(0))
	assert.False(t, cNode.Pop.Test(1))
}

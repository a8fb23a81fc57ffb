package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPenalty(t *testing.T) {
	p := New(2, 2, 10, 10)
	p.MismatchMin = 2
	p.MismatchMax = 6

	assert.Equal(t, 2, p.Penalty(0))
	assert.Equal(t, 3, p.Penalty(10))
	assert.Equal(t, 4, p.Penalty(20))
	assert.Equal(t, 5, p.Penalty(30))
	assert.Equal(t, 6, p.Penalty(40))
	// Qualities above 40 saturate; missing quality takes the max penalty.
	assert.Equal(t, 6, p.Penalty(60))
	assert.Equal(t, 6, p.Penalty(-1))
}

func TestValidate(t *testing.T) {
	p := Default()
	assert.NoError(t, p.Validate())

	p.MismatchMin = 7
	p.MismatchMax = 3
	assert.Error(t, p.Validate())

	p = Default()
	p.ReadGapOpen = -1
	assert.Error(t, p.Validate())
}

func TestBowtie2Template(t *testing.T) {
	p, err := FromCommandLine("bowtie2 --ma 2 --mp 6,2 --rdg 5,3 --rfg 4,2 --np 1 --local")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Match)
	assert.Equal(t, 2, p.MismatchMin)
	assert.Equal(t, 6, p.MismatchMax)
	assert.Equal(t, 5, p.ReadGapOpen)
	assert.Equal(t, 3, p.ReadGapExt)
	assert.Equal(t, 4, p.RefGapOpen)
	assert.Equal(t, 2, p.RefGapExt)
	assert.Equal(t, 1, p.Ambig)
	assert.False(t, p.EndToEnd)
}

func TestBowtie2EndToEnd(t *testing.T) {
	p, err := FromCommandLine("bowtie2 --end-to-end --mp 6")
	require.NoError(t, err)
	assert.True(t, p.EndToEnd)
	// --end-to-end zeroes the match bonus unless --ma is given.
	assert.Equal(t, 0, p.Match)
	assert.Equal(t, 6, p.MismatchMin)
	assert.Equal(t, 6, p.MismatchMax)
}

func TestBwaMemTemplate(t *testing.T) {
	p, err := FromCommandLine("bwa mem -A 2 -B 5 -O 4 -E 2")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Match)
	assert.Equal(t, 5, p.MismatchMin)
	assert.Equal(t, 5, p.MismatchMax)
	assert.Equal(t, 4, p.ReadGapOpen)
	assert.Equal(t, 2, p.ReadGapExt)
	assert.Equal(t, 4, p.RefGapOpen)
	assert.Equal(t, 2, p.RefGapExt)
	assert.False(t, p.EndToEnd)
}

func TestUnsupportedProgram(t *testing.T) {
	_, err := FromCommandLine("hisat2 --mp 6,2")
	assert.Error(t, err)
	_, err = FromCommandLine("bwa aln")
	assert.Error(t, err)
	_, err = FromCommandLine("")
	assert.Error(t, err)
}

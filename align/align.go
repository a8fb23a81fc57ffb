// Package align implements the inter-sequence SIMD Smith-Waterman engine and
// the orchestration that drives it: reads are packed one per vector lane and
// advanced together through a topological traversal of a variation graph,
// with score columns seeded across node boundaries.
package align

import (
	"errors"
	"fmt"

	"github.com/grailbio/vargraph/graph"
	"github.com/grailbio/vargraph/scoring"
	"github.com/grailbio/vargraph/simd"
)

// ErrSaturation is returned when the requested cell width cannot bound the
// score range of the profile and read length.
var ErrSaturation = errors.New("align: cell width cannot represent the score range")

// ErrMalformedGraph is returned when a traversal encounters a predecessor
// whose seed has not been computed, i.e. the graph order is not topological.
var ErrMalformedGraph = errors.New("align: graph order is not topological")

// Opts selects the engine's mode switches.
type Opts struct {
	// EndToEnd scores whole-read alignments; otherwise alignment is local.
	EndToEnd bool
	// ScoreOnly collects the maximum score and nothing else.
	ScoreOnly bool
	// MaxOnly collects the maximum score and positions but no sub-optimal
	// score.  The engine uses the mode it is given; Run forces MaxOnly on
	// branched graphs, where comparable secondary loci are not meaningful.
	MaxOnly bool
	// VecBits selects the simulated register width; 0 means 512.
	VecBits simd.VecBits
}

// Aligner aligns batches of reads against one graph traversal.  An Aligner
// is built for a fixed maximum read length; it is not safe for concurrent
// use.
type Aligner interface {
	// AlignInto aligns reads (ASCII sequences, with optional parallel raw
	// Phred qualities) against g and fills res.  Unless fwdOnly is set the
	// traversal is repeated with reverse-complemented reads and the
	// higher-scoring strand wins; equal scores merge.
	AlignInto(reads, quals [][]byte, g *graph.Graph, fwdOnly bool, res *Results) error
	// Align is AlignInto on the forward strand with fresh Results.
	Align(reads [][]byte, g *graph.Graph) (*Results, error)
	// ReadCapacity returns the lane count, the largest batch aligned in one
	// sweep.
	ReadCapacity() int
}

// New constructs an aligner for reads of at most readLen bases.  The wide
// flag selects 16-bit cells; otherwise cells are 8 bits.
func New(readLen int, prof scoring.Profile, wide bool, opts Opts) (Aligner, error) {
	if wide {
		e, err := newEngine[int16](readLen, prof, opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	e, err := newEngine[int8](readLen, prof, opts)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// wideMargin is the safety slack of the cell-width heuristic.
const wideMargin = 8

// NeedsWide reports whether 8-bit cells risk saturating for the given read
// length and profile.
func NeedsWide(readLen int, prof scoring.Profile) bool {
	span := int(simd.MaxVal[int8]()) - int(simd.MinVal[int8]())
	return readLen*prof.Match >= span-wideMargin
}

// Results holds per-read alignment outcomes.  Scores are bias-corrected.
// Position lists are 1-based linearized coordinates of the reference base at
// which the score was observed; within one list, and between the max and sub
// lists of a read, positions are always more than 2*readLen apart.
type Results struct {
	MaxScore []int
	SubScore []int

	MaxPosFwd, MaxPosRev [][]uint32
	SubPosFwd, SubPosRev [][]uint32

	// HasPositions and HasSub record which outputs the engine mode tracked.
	HasPositions bool
	HasSub       bool

	Profile scoring.Profile
}

// Len returns the number of reads covered.
func (r *Results) Len() int { return len(r.MaxScore) }

func (r *Results) resize(n int) {
	r.MaxScore = growInts(r.MaxScore, n)
	r.SubScore = growInts(r.SubScore, n)
	r.MaxPosFwd = growLists(r.MaxPosFwd, n)
	r.MaxPosRev = growLists(r.MaxPosRev, n)
	r.SubPosFwd = growLists(r.SubPosFwd, n)
	r.SubPosRev = growLists(r.SubPosRev, n)
}

func growInts(s []int, n int) []int {
	s = s[:0]
	for i := 0; i < n; i++ {
		s = append(s, 0)
	}
	return s
}

func growLists(s [][]uint32, n int) [][]uint32 {
	for i := range s {
		s[i] = nil
	}
	s = s[:0]
	for i := 0; i < n; i++ {
		s = append(s, nil)
	}
	return s
}

// MaxPositions returns read i's max-score positions, forward strand first.
func (r *Results) MaxPositions(i int) []uint32 {
	return append(append([]uint32(nil), r.MaxPosFwd[i]...), r.MaxPosRev[i]...)
}

// SubPositions returns read i's sub-optimal positions, forward strand first.
func (r *Results) SubPositions(i int) []uint32 {
	return append(append([]uint32(nil), r.SubPosFwd[i]...), r.SubPosRev[i]...)
}

// Strand markers.
const (
	StrandFwd = 'F'
	StrandRev = 'R'
)

// MaxStrand returns the strand of read i's best alignment.  Ties break
// forward-first.
func (r *Results) MaxStrand(i int) byte {
	if len(r.MaxPosFwd[i]) == 0 && len(r.MaxPosRev[i]) > 0 {
		return StrandRev
	}
	return StrandFwd
}

// SubStrand returns the strand of read i's sub-optimal alignment.
func (r *Results) SubStrand(i int) byte {
	if len(r.SubPosFwd[i]) == 0 && len(r.SubPosRev[i]) > 0 {
		return StrandRev
	}
	return StrandFwd
}

func (r *Results) String() string {
	return fmt.Sprintf("Results(%d reads, positions=%v sub=%v)", r.Len(), r.HasPositions, r.HasSub)
}

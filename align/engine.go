package align

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/vargraph/graph"
	"github.com/grailbio/vargraph/scoring"
	"github.com/grailbio/vargraph/simd"
)

// seed carries a node's final score and read-gap columns into its
// successors.
type seed[T simd.Elem] struct {
	sCol []simd.Vec[T] // last column of the score matrix, readLen+1 rows
	iCol []simd.Vec[T]
}

func newSeed[T simd.Elem](readLen, lanes int) *seed[T] {
	s := &seed[T]{
		sCol: make([]simd.Vec[T], readLen+1),
		iCol: make([]simd.Vec[T], readLen+1),
	}
	for i := range s.sCol {
		s.sCol[i] = simd.MakeVec[T](lanes)
		s.iCol[i] = simd.MakeVec[T](lanes)
	}
	return s
}

func (s *seed[T]) copyFrom(o *seed[T]) {
	for i := range s.sCol {
		s.sCol[i].CopyFrom(o.sCol[i])
		s.iCol[i].CopyFrom(o.iCol[i])
	}
}

// engine is one monomorphized aligner instance.  Its fixed buffers are
// allocated up front and reused across batches; seed buffers are allocated
// on demand and recycled through seedFree.
type engine[T simd.Elem] struct {
	prof    scoring.Profile
	readLen int
	lanes   int

	endToEnd  bool
	scoreOnly bool
	maxOnly   bool

	bias T

	gapExtRd      T
	gapOpenExtRd  T
	gapExtRef     T
	gapOpenExtRef T

	// qp is the query profile: for read position i and reference base b,
	// qp[i][b] holds each lane's substitution score.
	qp [][graph.NumBases]simd.Vec[T]

	s, dc, ic      []simd.Vec[T]
	sd, tmp, diag  simd.Vec[T]

	maxScore, subScore, waitingScore simd.Vec[T]
	maxLastPos, subLastPos           []uint32
	waitingPos, waitingLastPos       []uint32
	maxPosList, subPosList           [][]uint32

	seedFree []*seed[T] // recycled seed buffers

	// scratch for reverse-complemented reads and reversed qualities
	rcSeq, rcQual []byte
}

func newEngine[T simd.Elem](readLen int, prof scoring.Profile, opts Opts) (*engine[T], error) {
	if readLen <= 0 {
		return nil, fmt.Errorf("align: non-positive read length %d", readLen)
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	span := int(simd.MaxVal[T]()) - int(simd.MinVal[T]())
	if readLen*prof.Match > span {
		return nil, fmt.Errorf("%w: read length %d, match %d", ErrSaturation, readLen, prof.Match)
	}
	for _, p := range []int{prof.MismatchMax, prof.ReadGapOpen + prof.ReadGapExt,
		prof.RefGapOpen + prof.RefGapExt, prof.Ambig} {
		if p > int(simd.MaxVal[T]()) {
			return nil, fmt.Errorf("%w: penalty %d exceeds cell range", ErrSaturation, p)
		}
	}

	bits := opts.VecBits
	if bits == 0 {
		bits = simd.Bits512
	}
	lanes := simd.Lanes[T](bits)

	prof.EndToEnd = opts.EndToEnd
	e := &engine[T]{
		prof:          prof,
		readLen:       readLen,
		lanes:         lanes,
		endToEnd:      opts.EndToEnd,
		scoreOnly:     opts.ScoreOnly,
		maxOnly:       opts.MaxOnly,
		gapExtRd:      T(prof.ReadGapExt),
		gapOpenExtRd:  T(prof.ReadGapOpen + prof.ReadGapExt),
		gapExtRef:     T(prof.RefGapExt),
		gapOpenExtRef: T(prof.RefGapOpen + prof.RefGapExt),
	}

	if opts.EndToEnd {
		e.bias = T(int(simd.MaxVal[T]()) - readLen*prof.Match)
		budget := int(simd.MaxVal[T]()) - readLen*prof.Match
		if prof.ReadGapOpen+prof.ReadGapExt*(readLen-1) > budget || readLen*prof.MismatchMax > budget {
			log.Printf("align: possible score saturation in end-to-end mode: "+
				"cell span %d, bias %d, gap budget %d, mismatch budget %d",
				span, budget, (budget-prof.ReadGapOpen)/max1(prof.ReadGapExt), budget/max1(prof.MismatchMax))
		}
	} else {
		e.bias = simd.MinVal[T]()
	}

	e.qp = make([][graph.NumBases]simd.Vec[T], readLen)
	for i := range e.qp {
		for b := 0; b < graph.NumBases; b++ {
			e.qp[i][b] = simd.MakeVec[T](lanes)
		}
	}
	e.s = makeCols[T](readLen+1, lanes)
	e.dc = makeCols[T](readLen+1, lanes)
	e.ic = makeCols[T](readLen+1, lanes)
	e.sd = simd.MakeVec[T](lanes)
	e.tmp = simd.MakeVec[T](lanes)
	e.diag = simd.MakeVec[T](lanes)

	e.maxScore = simd.MakeVec[T](lanes)
	e.subScore = simd.MakeVec[T](lanes)
	e.waitingScore = simd.MakeVec[T](lanes)
	e.maxLastPos = make([]uint32, lanes)
	e.subLastPos = make([]uint32, lanes)
	e.waitingPos = make([]uint32, lanes)
	e.waitingLastPos = make([]uint32, lanes)
	e.maxPosList = make([][]uint32, lanes)
	e.subPosList = make([][]uint32, lanes)
	return e, nil
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func makeCols[T simd.Elem](rows, lanes int) []simd.Vec[T] {
	cols := make([]simd.Vec[T], rows)
	for i := range cols {
		cols[i] = simd.MakeVec[T](lanes)
	}
	return cols
}

func (e *engine[T]) ReadCapacity() int { return e.lanes }

func (e *engine[T]) Align(reads [][]byte, g *graph.Graph) (*Results, error) {
	res := &Results{}
	if err := e.AlignInto(reads, nil, g, true, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *engine[T]) AlignInto(reads, quals [][]byte, g *graph.Graph, fwdOnly bool, res *Results) error {
	for _, r := range reads {
		if len(r) > e.readLen {
			return fmt.Errorf("align: read of %d bases exceeds engine read length %d", len(r), e.readLen)
		}
	}
	res.resize(len(reads))
	res.Profile = e.prof
	res.HasPositions = !e.scoreOnly
	res.HasSub = !e.scoreOnly && !e.maxOnly

	for beg := 0; beg < len(reads); beg += e.lanes {
		end := beg + e.lanes
		if end > len(reads) {
			end = len(reads)
		}
		if err := e.alignGroup(reads, quals, beg, end, g, fwdOnly, res); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine[T]) alignGroup(reads, quals [][]byte, beg, end int, g *graph.Graph, fwdOnly bool, res *Results) error {
	e.resetBookkeeping()
	e.loadReads(reads, quals, beg, end, false)
	if err := e.traverse(g); err != nil {
		return err
	}
	e.commitFinalWaiting()
	for r := beg; r < end; r++ {
		res.MaxPosFwd[r] = append([]uint32(nil), e.maxPosList[r-beg]...)
		res.SubPosFwd[r] = append([]uint32(nil), e.subPosList[r-beg]...)
	}

	if !fwdOnly {
		// Reverse strand: the traversal repeats with reverse-complemented
		// reads and the score bookkeeping running on, so only strictly
		// better reverse scores displace the forward lists.
		fwdMax := simd.MakeVec[T](e.lanes)
		fwdSub := simd.MakeVec[T](e.lanes)
		fwdMax.CopyFrom(e.maxScore)
		fwdSub.CopyFrom(e.subScore)
		for i := 0; i < e.lanes; i++ {
			e.maxLastPos[i] = 0
			e.subLastPos[i] = 0
			e.maxPosList[i] = e.maxPosList[i][:0]
			e.subPosList[i] = e.subPosList[i][:0]
		}
		e.loadReads(reads, quals, beg, end, true)
		if err := e.traverse(g); err != nil {
			return err
		}
		e.commitFinalWaiting()
		for r := beg; r < end; r++ {
			res.MaxPosRev[r] = append([]uint32(nil), e.maxPosList[r-beg]...)
			res.SubPosRev[r] = append([]uint32(nil), e.subPosList[r-beg]...)
		}
		gtMax := e.maxScore.GtV(fwdMax)
		gtSub := e.subScore.GtV(fwdSub)
		for r := beg; r < end; r++ {
			if gtMax.Test(r - beg) {
				res.MaxPosFwd[r] = nil
			}
			if gtSub.Test(r - beg) {
				res.SubPosFwd[r] = nil
			}
		}
	}

	for r := beg; r < end; r++ {
		res.MaxScore[r] = int(e.maxScore[r-beg]) - int(e.bias)
		if res.HasSub {
			res.SubScore[r] = int(e.subScore[r-beg]) - int(e.bias)
		}
	}
	return nil
}

func (e *engine[T]) resetBookkeeping() {
	min := simd.MinVal[T]()
	e.maxScore.Fill(min)
	e.subScore.Fill(min)
	e.waitingScore.Fill(min)
	for i := 0; i < e.lanes; i++ {
		e.maxLastPos[i] = 0
		e.subLastPos[i] = 0
		e.waitingPos[i] = 0
		e.waitingLastPos[i] = 0
		e.maxPosList[i] = e.maxPosList[i][:0]
		e.subPosList[i] = e.subPosList[i][:0]
	}
}

// traverse runs the seeded node recurrence over the graph in its
// topological order, clearing the seed table at pinch points.
func (e *engine[T]) traverse(g *graph.Graph) error {
	seedMap := make(map[uint32]*seed[T])
	in := e.getSeedBuf()
	defer func() { e.seedFree = append(e.seedFree, in) }()
	for _, id := range g.Order() {
		n := g.Node(id)
		if err := e.gatherSeed(g.Prev(id), seedMap, in); err != nil {
			return err
		}
		if n.Pinched {
			for _, s := range seedMap {
				e.seedFree = append(e.seedFree, s)
			}
			seedMap = make(map[uint32]*seed[T])
		}
		out := e.getSeedBuf()
		e.fillNode(n, in, out)
		seedMap[id] = out
	}
	for _, s := range seedMap {
		e.seedFree = append(e.seedFree, s)
	}
	return nil
}

func (e *engine[T]) getSeedBuf() *seed[T] {
	if n := len(e.seedFree); n > 0 {
		s := e.seedFree[n-1]
		e.seedFree = e.seedFree[:n-1]
		return s
	}
	return newSeed[T](e.readLen, e.lanes)
}

// seedMatrix synthesizes the seed of a node with no predecessors.  In
// end-to-end mode the initial column decays with reference gap penalties
// from the bias; in local mode every cell starts at the bias.
func (e *engine[T]) seedMatrix(s *seed[T]) {
	if e.endToEnd {
		s.sCol[0].Fill(e.bias)
		for i := 1; i <= e.readLen; i++ {
			v := int(e.bias) - e.prof.RefGapOpen - i*e.prof.RefGapExt
			if v < int(simd.MinVal[T]()) {
				v = int(simd.MinVal[T]())
			}
			s.sCol[i].Fill(T(v))
		}
	} else {
		for i := 0; i <= e.readLen; i++ {
			s.sCol[i].Fill(e.bias)
		}
	}
	for i := 0; i <= e.readLen; i++ {
		s.iCol[i].CopyFrom(s.sCol[i])
	}
}

// gatherSeed merges the seeds of all predecessors lane-wise, or synthesizes
// the initial seed when there are none.
func (e *engine[T]) gatherSeed(prev []uint32, seedMap map[uint32]*seed[T], dst *seed[T]) error {
	if len(prev) == 0 {
		e.seedMatrix(dst)
		return nil
	}
	first, ok := seedMap[prev[0]]
	if !ok {
		return fmt.Errorf("%w: predecessor %d has no seed", ErrMalformedGraph, prev[0])
	}
	dst.copyFrom(first)
	for _, p := range prev[1:] {
		s, ok := seedMap[p]
		if !ok {
			return fmt.Errorf("%w: predecessor %d has no seed", ErrMalformedGraph, p)
		}
		for i := 1; i <= e.readLen; i++ {
			dst.sCol[i].MaxV(dst.sCol[i], s.sCol[i])
			dst.iCol[i].MaxV(dst.iCol[i], s.iCol[i])
		}
	}
	return nil
}

// fillNode advances every lane through one node's columns.  An empty node
// is a pure deletion edge and passes its seed through unchanged.
func (e *engine[T]) fillNode(n *graph.Node, in, out *seed[T]) {
	if n.Len() == 0 {
		out.copyFrom(in)
		return
	}
	for i := 0; i <= e.readLen; i++ {
		e.s[i].CopyFrom(in.sCol[i])
		e.ic[i].CopyFrom(in.iCol[i])
	}
	e.dc[0].Fill(simd.MinVal[T]())

	// 1-based genomic coordinate of the first column.
	pos := n.EndPos - uint32(n.Len()) + 2
	for _, rb := range n.Seq {
		e.sd.Fill(e.bias)
		for row := 1; row <= e.readLen; row++ {
			e.fillCell(rb, row, pos)
		}
		if e.endToEnd {
			e.observe(e.readLen, pos)
		}
		pos++
	}

	for i := 0; i <= e.readLen; i++ {
		out.sCol[i].CopyFrom(e.s[i])
		out.iCol[i].CopyFrom(e.ic[i])
	}
}

// fillCell computes one DP cell for every lane.  Adjacent read/reference
// gaps (switching between the D and I matrices without reopening) are not
// modeled.
func (e *engine[T]) fillCell(rb graph.Base, row int, pos uint32) {
	e.dc[row].SubSatS(e.dc[row-1], e.gapExtRef)
	e.tmp.SubSatS(e.s[row-1], e.gapOpenExtRef)
	e.dc[row].MaxV(e.dc[row], e.tmp)

	e.ic[row].SubSatS(e.ic[row], e.gapExtRd)
	e.tmp.SubSatS(e.s[row], e.gapOpenExtRd)
	e.ic[row].MaxV(e.ic[row], e.tmp)

	e.diag.AddSatV(e.sd, e.qp[row-1][rb])
	e.sd.CopyFrom(e.s[row]) // S(i-1, j-1) for the next row
	e.s[row].MaxV(e.dc[row], e.ic[row])
	e.s[row].MaxV(e.s[row], e.diag)

	if !e.endToEnd {
		e.observe(row, pos)
	}
}

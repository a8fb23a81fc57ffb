package align

import (
	"github.com/grailbio/bio/biosimd"
	"github.com/grailbio/vargraph/graph"
)

// loadReads packs reads [beg, end) into the query profile, one lane each.
// Shorter reads are left-padded with zero-contribution columns so every
// read's last base lands on the profile's last row.  For the reverse strand
// the read is reverse-complemented (and its qualities reversed) before
// packing.
func (e *engine[T]) loadReads(reads, quals [][]byte, beg, end int, revcomp bool) {
	for i := range e.qp {
		for b := 0; b < graph.NumBases; b++ {
			e.qp[i][b].Fill(0)
		}
	}
	for r := beg; r < end; r++ {
		lane := r - beg
		seq := reads[r]
		var qual []byte
		if quals != nil && len(quals[r]) == len(seq) {
			qual = quals[r]
		}
		if revcomp {
			e.rcSeq = resize(e.rcSeq, len(seq))
			biosimd.ReverseComp8NoValidate(e.rcSeq, seq)
			seq = e.rcSeq
			if qual != nil {
				e.rcQual = resize(e.rcQual, len(qual))
				for i, q := range qual {
					e.rcQual[len(qual)-1-i] = q
				}
				qual = e.rcQual
			}
		}
		pad := e.readLen - len(seq)
		for p := 0; p < len(seq); p++ {
			row := pad + p
			rdb := graph.BaseFromChar(seq[p])
			e.qp[row][graph.BaseN][lane] = T(-e.prof.Ambig)
			for b := graph.BaseA; b <= graph.BaseT; b++ {
				var score int
				switch {
				case rdb == graph.BaseN:
					score = -e.prof.Ambig
				case rdb == b:
					score = e.prof.Match
				case qual == nil:
					score = -e.prof.MismatchMax
				default:
					score = -e.prof.Penalty(int(qual[p]))
				}
				e.qp[row][b][lane] = T(score)
			}
		}
	}
}

func resize(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// Package sim generates reads from a variation graph by random walks,
// optionally mutating them with substitution and indel errors, and records
// the provenance of each read for downstream scoring of aligner output.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/vargraph/graph"
)

// Profile is one read-generation stratum.  Mut and Indel are counts unless
// Rates is set, in which case they are per-base probabilities.  VarNodes and
// VarBases constrain the variant content of the originating walk; -1 accepts
// any value.
type Profile struct {
	Len      int
	Mut      float64
	Indel    float64
	Rates    bool
	VarNodes int
	VarBases int
}

// DefaultProfile accepts any variant content and introduces no errors.
func DefaultProfile(readLen int) Profile {
	return Profile{Len: readLen, VarNodes: -1, VarBases: -1}
}

func (p Profile) String() string {
	return fmt.Sprintf("len=%d;mut=%g;indel=%g;vnode=%d;vbase=%d;rate=%v",
		p.Len, p.Mut, p.Indel, p.VarNodes, p.VarBases, p.Rates)
}

// Read is one simulated read.  Pos and EndPos are 1-based linearized
// coordinates of the origin span; Origin is the unmutated sequence.
type Read struct {
	Seq      string
	Origin   string
	Pos      uint32
	EndPos   uint32
	Sample   int // source sample index, -1 when the walk stayed on the backbone
	SubErr   int
	IndelErr int
	VarNodes int
	VarBases int
}

// maxAttempts bounds the walk retries per read before a stratum is declared
// unsatisfiable.
const maxAttempts = 10000

// Simulator draws reads from one graph under one profile.
type Simulator struct {
	g    *graph.Graph
	prof Profile
	rng  *rand.Rand
}

// New returns a deterministic simulator for the given seed.
func New(g *graph.Graph, prof Profile, seed int64) *Simulator {
	return &Simulator{g: g, prof: prof, rng: rand.New(rand.NewSource(seed))}
}

// GetBatch generates n reads matching the profile's stratum.
func (s *Simulator) GetBatch(n int) ([]*Read, error) {
	out := make([]*Read, 0, n)
	for len(out) < n {
		r, err := s.generate()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Simulator) generate() (*Read, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, ok := s.walk()
		if !ok {
			continue
		}
		if s.prof.VarNodes >= 0 && r.VarNodes != s.prof.VarNodes {
			continue
		}
		if s.prof.VarBases >= 0 && r.VarBases != s.prof.VarBases {
			continue
		}
		s.mutate(r)
		return r, nil
	}
	return nil, errors.E(fmt.Sprintf("sim: no walk satisfies profile %s", s.prof))
}

// walk copies prof.Len bases starting from a random offset in a random
// node, following random successors.  When the walk enters an allele node it
// commits to one carrying haplotype and only follows nodes that haplotype
// can reach.
func (s *Simulator) walk() (*Read, bool) {
	order := s.g.Order()
	if len(order) == 0 {
		return nil, false
	}
	id := order[s.rng.Intn(len(order))]
	node := s.g.Node(id)
	if node.Len() == 0 {
		return nil, false
	}
	base := s.rng.Intn(node.Len())

	r := &Read{Sample: -1}
	indiv := -1
	seq := make([]graph.Base, 0, s.prof.Len)
	r.Pos = node.BeginPos() + uint32(base) + 1 // 1-based

	for len(seq) < s.prof.Len {
		if !node.Pop.Universal() {
			if indiv < 0 {
				indiv = s.pickHaplotype(node.Pop)
				if indiv < 0 {
					return nil, false
				}
			}
			r.VarNodes++
		}
		for base < node.Len() && len(seq) < s.prof.Len {
			seq = append(seq, node.Seq[base])
			if !node.Pop.Universal() {
				r.VarBases++
			}
			base++
		}
		if len(seq) == s.prof.Len {
			r.EndPos = node.BeginPos() + uint32(base)
			break
		}
		next := s.pickNext(node.ID, indiv)
		if next == nil {
			return nil, false // dead end before a full read
		}
		node = next
		base = 0
	}

	r.Origin = graph.SeqString(seq)
	r.Seq = r.Origin
	r.Sample = sampleOf(indiv)
	return r, true
}

func sampleOf(haplotype int) int {
	if haplotype < 0 {
		return -1
	}
	return haplotype / 2
}

func (s *Simulator) pickHaplotype(pop graph.Population) int {
	carriers := make([]int, 0, pop.Count())
	for i := 0; i < pop.Size(); i++ {
		if pop.Test(i) {
			carriers = append(carriers, i)
		}
	}
	if len(carriers) == 0 {
		return -1
	}
	return carriers[s.rng.Intn(len(carriers))]
}

// pickNext selects a random successor, restricted to nodes the committed
// haplotype carries.  Empty successors are skipped through.
func (s *Simulator) pickNext(id uint32, indiv int) *graph.Node {
	for hops := 0; hops < 64; hops++ {
		succ := s.g.Next(id)
		var eligible []uint32
		for _, v := range succ {
			n := s.g.Node(v)
			if indiv < 0 || n.Pop.Test(indiv) {
				eligible = append(eligible, v)
			}
		}
		if len(eligible) == 0 {
			return nil
		}
		id = eligible[s.rng.Intn(len(eligible))]
		if n := s.g.Node(id); n.Len() > 0 {
			return n
		}
		// Deletion node: pass through to its successors.
	}
	return nil
}

// mutate applies the profile's substitution and indel errors to r.Seq.  A
// read lengthened by insertions is trimmed back to the profile length; a
// read shortened by deletions is left shorter.
func (s *Simulator) mutate(r *Read) {
	seq := []byte(r.Seq)
	nSub, nIndel := s.errorCounts(len(seq))

	for i := 0; i < nIndel && len(seq) > 1; i++ {
		p := s.rng.Intn(len(seq))
		if s.rng.Intn(2) == 0 {
			// Deletion.
			seq = append(seq[:p], seq[p+1:]...)
		} else {
			seq = append(seq[:p], append([]byte{randBase(s.rng)}, seq[p:]...)...)
		}
		r.IndelErr++
	}
	if len(seq) > s.prof.Len {
		seq = seq[:s.prof.Len]
	}

	if nSub > len(seq) {
		nSub = len(seq)
	}
	for _, p := range s.rng.Perm(len(seq))[:nSub] {
		old := seq[p]
		for seq[p] == old {
			seq[p] = randBase(s.rng)
		}
		r.SubErr++
	}
	r.Seq = string(seq)
}

func (s *Simulator) errorCounts(n int) (nSub, nIndel int) {
	if !s.prof.Rates {
		return int(s.prof.Mut), int(s.prof.Indel)
	}
	for i := 0; i < n; i++ {
		if s.rng.Float64() < s.prof.Mut {
			nSub++
		}
		if s.rng.Float64() < s.prof.Indel {
			nIndel++
		}
	}
	return nSub, nIndel
}

func randBase(rng *rand.Rand) byte {
	return [4]byte{'A', 'C', 'G', 'T'}[rng.Intn(4)]
}

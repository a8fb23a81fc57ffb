package graph

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/vargraph/vcf"
)

// Region names a contiguous span of one contig.  Lo and Hi are 1-based and
// inclusive; zero values mean the whole contig.
type Region struct {
	Contig string
	Lo, Hi int
}

func (r Region) String() string {
	if r.Lo == 0 && r.Hi == 0 {
		return r.Contig
	}
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Lo, r.Hi)
}

// ParseRegion parses "contig" or "contig:lo-hi".  Thousands separators in
// the bounds are tolerated.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		if s == "" {
			return Region{}, errors.New("graph: empty region")
		}
		return Region{Contig: s}, nil
	}
	r := Region{Contig: s[:colon]}
	span := strings.ReplaceAll(s[colon+1:], ",", "")
	dash := strings.IndexByte(span, '-')
	if r.Contig == "" || dash < 0 {
		return Region{}, errors.E(fmt.Sprintf("graph: malformed region %q", s))
	}
	var err error
	if r.Lo, err = strconv.Atoi(span[:dash]); err != nil {
		return Region{}, errors.E(err, fmt.Sprintf("graph: malformed region %q", s))
	}
	if r.Hi, err = strconv.Atoi(span[dash+1:]); err != nil {
		return Region{}, errors.E(err, fmt.Sprintf("graph: malformed region %q", s))
	}
	if r.Hi != 0 && r.Hi < r.Lo {
		return Region{}, errors.E(fmt.Sprintf("graph: inverted region %q", s))
	}
	return r, nil
}

// DefaultMaxNodeLen caps the length of a single backbone node.
const DefaultMaxNodeLen = 50000

// Builder constructs variation graphs region by region from a reference
// reader and a variant catalog.
type Builder struct {
	ref          fasta.Fasta
	openVariants func() (*vcf.Reader, error)
	sampleFilter []string
	maxNodeLen   int
	recordLimit  int
}

// NewBuilder returns a Builder over the given reference.
func NewBuilder(ref fasta.Fasta) *Builder {
	return &Builder{ref: ref, maxNodeLen: DefaultMaxNodeLen}
}

// SetVariants installs a factory producing a fresh variant reader; the
// builder opens one per region.  Without it graphs are linear.
func (b *Builder) SetVariants(open func() (*vcf.Reader, error)) { b.openVariants = open }

// SetVariantsFile is SetVariants over a VCF path (plain or gzip).
func (b *Builder) SetVariantsFile(path string) {
	b.openVariants = func() (*vcf.Reader, error) { return vcf.Open(path) }
}

// SetSampleFilter restricts populations to the named catalog samples.
func (b *Builder) SetSampleFilter(names []string) { b.sampleFilter = names }

// SetMaxNodeLen caps backbone node length.
func (b *Builder) SetMaxNodeLen(n int) {
	if n > 0 {
		b.maxNodeLen = n
	}
}

// SetRecordLimit truncates processing after n variant records per region.
func (b *Builder) SetRecordLimit(n int) { b.recordLimit = n }

// Build appends the given region to g, placing it at the given linearized
// offset, and returns the offset one past the region's last base.
func (b *Builder) Build(g *Graph, region Region, offset uint32) (uint32, error) {
	contigLen, err := b.ref.Len(region.Contig)
	if err != nil {
		return offset, errors.E(err, "graph: reference contig "+region.Contig)
	}
	lo, hi := region.Lo, region.Hi
	if lo < 1 {
		lo = 1
	}
	if hi < 1 || hi > int(contigLen) {
		hi = int(contigLen)
	}

	st := builderState{
		b:      b,
		g:      g,
		contig: region.Contig,
		offset: offset,
		cursor: lo,
	}

	if b.openVariants != nil {
		vr, err := b.openVariants()
		if err != nil {
			return offset, err
		}
		defer vr.Close() // nolint: errcheck
		if err := vr.SetSampleFilter(b.sampleFilter); err != nil {
			return offset, err
		}
		vr.SetRegion(region.Contig, lo, hi)
		if g.PopSize() == 0 {
			g.SetPopSize(vr.NumHaplotypes())
		}
		nRecords := 0
		for {
			if b.recordLimit > 0 && nRecords >= b.recordLimit {
				break
			}
			rec, err := vr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return offset, err
			}
			nRecords++
			if err := st.addVariant(rec); err != nil {
				return offset, err
			}
		}
	}

	if err := st.emitBackbone(hi); err != nil {
		return offset, err
	}
	return offset + uint32(hi-lo+1), nil
}

// builderState tracks the frontier of one region build: the node IDs at the
// right edge of the partial graph, awaiting connection.
type builderState struct {
	b        *Builder
	g        *Graph
	contig   string
	offset   uint32
	cursor   int // 1-based contig position of the next base to emit
	frontier []uint32
}

// endPos linearizes the 1-based contig coordinate of a span's last base.
func (st *builderState) endPos(last int) uint32 {
	return st.offset + uint32(last) - 1
}

// emitBackbone covers [cursor, target] with reference nodes of at most
// maxNodeLen bases, each becoming the sole frontier and hence a pinch point.
func (st *builderState) emitBackbone(target int) error {
	for st.cursor <= target {
		last := st.cursor + st.b.maxNodeLen - 1
		if last > target {
			last = target
		}
		seq, err := st.b.ref.Get(st.contig, uint64(st.cursor-1), uint64(last))
		if err != nil {
			return errors.E(err, "graph: reference read "+st.contig)
		}
		id := st.g.AddNode(&Node{
			Seq:     SeqFromString(seq),
			EndPos:  st.endPos(last),
			AF:      1,
			Ref:     true,
			Pinched: true,
		})
		st.connect([]uint32{id})
		st.cursor = last + 1
	}
	return nil
}

// connect wires every new node to every frontier node, then advances the
// frontier.
func (st *builderState) connect(added []uint32) {
	for _, p := range st.frontier {
		for _, c := range added {
			st.g.addEdgeUnchecked(p, c)
		}
	}
	st.frontier = added
}

func (st *builderState) addVariant(rec *vcf.Record) error {
	if rec.Pos < st.cursor {
		return errors.E(fmt.Sprintf(
			"graph: variant record %s:%d overlaps the previous record; pre-merge overlapping clusters upstream",
			rec.Chrom, rec.Pos))
	}
	if err := st.emitBackbone(rec.Pos - 1); err != nil {
		return err
	}

	span := rec.RefSpan()
	refEnd := st.endPos(rec.Pos + span - 1)
	altAFSum := 0.0
	for _, af := range rec.AltFreqs {
		altAFSum += af
	}
	refAF := 1 - altAFSum
	if refAF < 0 {
		refAF = 0
	}

	alleles := make([]uint32, 0, 1+len(rec.Alts))
	alleles = append(alleles, st.g.AddNode(&Node{
		Seq:    SeqFromString(rec.Ref),
		EndPos: refEnd,
		AF:     float32(refAF),
		Ref:    true,
		Pop:    allelePop(rec, 0, st.g.PopSize()),
	}))

	for i, alt := range rec.Alts {
		seq, ok := materializeAlt(rec.Ref, alt)
		if !ok {
			log.Printf("graph: skipping unsupported alt allele %q at %s:%d", alt, rec.Chrom, rec.Pos)
			continue
		}
		af := float32(0)
		if i < len(rec.AltFreqs) {
			af = float32(rec.AltFreqs[i])
		}
		n := &Node{
			Seq:    SeqFromString(seq),
			EndPos: refEnd,
			AF:     af,
			Pop:    allelePop(rec, i+1, st.g.PopSize()),
		}
		if len(n.Seq) == 0 {
			// A pure deletion inherits the predecessor's end.
			n.EndPos = st.endPos(rec.Pos - 1)
		}
		alleles = append(alleles, st.g.AddNode(n))
	}

	st.connect(alleles)
	st.cursor = rec.Pos + span
	return nil
}

// materializeAlt resolves an alternate allele token to explicit sequence.
// Copy-number tokens <CNn> expand to n copies of the reference allele; other
// symbolic or breakend tokens cannot be materialized.
func materializeAlt(ref, alt string) (string, bool) {
	if alt == "" || alt == "*" {
		return "", false
	}
	if alt[0] == '<' {
		if strings.HasPrefix(alt, "<CN") && strings.HasSuffix(alt, ">") {
			n, err := strconv.Atoi(alt[3 : len(alt)-1])
			if err != nil || n < 0 {
				return "", false
			}
			return strings.Repeat(ref, n), true
		}
		return "", false
	}
	if strings.ContainsAny(alt, "[]<>") {
		return "", false
	}
	return alt, true
}

// allelePop collects the haplotypes whose genotype selects the given allele
// index.  Without genotype columns every allele is carried universally.
func allelePop(rec *vcf.Record, allele, popSize int) Population {
	if len(rec.Genotypes) == 0 || popSize == 0 {
		return Population{}
	}
	pop := NewPopulation(popSize)
	for h, a := range rec.Genotypes {
		if a == allele && h < popSize {
			pop.Set(h)
		}
	}
	return pop
}

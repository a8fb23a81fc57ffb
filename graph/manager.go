package graph

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"blainsmith.com/go/seahash"
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bio/encoding/fasta"
)

// BaseLabel is the label of the graph built directly from the reference and
// the full catalog.
const BaseLabel = "base"

// contigOffset maps the linearized coordinate space back to contigs: a
// contig owns the 1-based positions (Offset, Offset+length].
type contigOffset struct {
	Offset uint32
	Name   string
}

// Compare orders contigOffsets by offset, for llrb floor lookups.
func (c contigOffset) Compare(other llrb.Comparable) int {
	o := other.(contigOffset)
	switch {
	case c.Offset < o.Offset:
		return -1
	case c.Offset > o.Offset:
		return 1
	}
	return 0
}

// Manager owns a family of labeled graphs sharing one node arena, the
// contig offset table, and the graph-definition file round trip.
type Manager struct {
	arena   *Arena
	graphs  map[string]*Graph
	labels  []string // insertion-ordered
	meta    [][2]string
	offsets *llrb.Tree
	contigs []contigOffset
	rng     *rand.Rand
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		arena:   NewArena(),
		graphs:  make(map[string]*Graph),
		offsets: &llrb.Tree{},
		rng:     rand.New(rand.NewSource(1)),
	}
}

// SetSeed seeds the RNG used for population-subset derivations.
func (m *Manager) SetSeed(seed int64) { m.rng = rand.New(rand.NewSource(seed)) }

// SetMeta records a metadata line for the definition file header.
func (m *Manager) SetMeta(key, value string) {
	for i := range m.meta {
		if m.meta[i][0] == key {
			m.meta[i][1] = value
			return
		}
	}
	m.meta = append(m.meta, [2]string{key, value})
}

// Labels returns the graph labels in insertion order.
func (m *Manager) Labels() []string { return m.labels }

// At returns the graph with the given label.
func (m *Manager) At(label string) (*Graph, error) {
	g, ok := m.graphs[label]
	if !ok {
		return nil, errors.E(fmt.Sprintf("graph: unknown graph label %q", label))
	}
	return g, nil
}

func (m *Manager) addGraph(label string, g *Graph) {
	if _, ok := m.graphs[label]; !ok {
		m.labels = append(m.labels, label)
	}
	m.graphs[label] = g
}

func (m *Manager) addContig(offset uint32, name string) {
	m.contigs = append(m.contigs, contigOffset{offset, name})
	m.offsets.Insert(contigOffset{Offset: offset, Name: name})
}

// CreateBase builds the base graph from a reference and an optional variant
// catalog over the given regions (all contigs when empty).
func (m *Manager) CreateBase(ref fasta.Fasta, vcfPath string, regions []Region, sampleFilter []string, maxNodeLen, recordLimit int) (*Graph, error) {
	if len(regions) == 0 {
		for _, name := range ref.SeqNames() {
			regions = append(regions, Region{Contig: name})
		}
	}
	b := NewBuilder(ref)
	b.SetMaxNodeLen(maxNodeLen)
	if vcfPath != "" {
		b.SetVariantsFile(vcfPath)
		b.SetSampleFilter(sampleFilter)
		b.SetRecordLimit(recordLimit)
	}

	base := NewGraph(m.arena)
	offset := uint32(0)
	for _, region := range regions {
		log.Printf("graph: building %s (offset %d)", region, offset)
		m.addContig(offset, region.Contig)
		next, err := b.Build(base, region, offset)
		if err != nil {
			return nil, err
		}
		offset = next
	}
	m.SetMeta("date", time.Now().Format("2006-01-02"))
	if len(sampleFilter) > 0 {
		m.SetMeta("samples", strings.Join(sampleFilter, ","))
	}
	m.addGraph(BaseLabel, base)
	log.Printf("graph: base: %s", base.Stats())
	return base, nil
}

// Contig describes one contig's slice of the linearized coordinate space.
type Contig struct {
	Name   string
	Offset uint32
	Length uint32
}

// Contigs returns the contig table with lengths inferred from the offsets
// and the arena's last coordinate.
func (m *Manager) Contigs() []Contig {
	maxEnd := uint32(0)
	for id := uint32(0); id < uint32(m.arena.Len()); id++ {
		if n := m.arena.Node(id); n != nil && n.EndPos > maxEnd {
			maxEnd = n.EndPos
		}
	}
	out := make([]Contig, len(m.contigs))
	for i, c := range m.contigs {
		end := maxEnd + 1
		if i+1 < len(m.contigs) {
			end = m.contigs[i+1].Offset
		}
		out[i] = Contig{Name: c.Name, Offset: c.Offset, Length: end - c.Offset}
	}
	return out
}

// AbsolutePosition resolves a linearized 1-based position to its contig and
// the 1-based position within it.
func (m *Manager) AbsolutePosition(pos uint32) (string, uint32, error) {
	if pos == 0 || m.offsets.Len() == 0 {
		return "", 0, errors.E(fmt.Sprintf("graph: position %d outside any contig", pos))
	}
	e := m.offsets.Floor(contigOffset{Offset: pos - 1})
	if e == nil {
		return "", 0, errors.E(fmt.Sprintf("graph: position %d outside any contig", pos))
	}
	c := e.(contigOffset)
	return c.Name, pos - c.Offset, nil
}

// Derive materializes the subgraph described by a definition expression and
// returns its label.  Expressions take the forms
//
//	b=REF          reference backbone of base
//	b=MAXAF        highest-frequency path of base
//	b=50  b=10%    population subset of base (sample count or percentage)
//	a:b=10%        the same, derived from parent graph a
func (m *Manager) Derive(def string) (string, error) {
	def = strings.TrimSpace(def)
	eq := strings.IndexByte(def, '=')
	if eq < 0 {
		return "", errors.E(fmt.Sprintf("graph: malformed subgraph definition %q", def))
	}
	name, value := def[:eq], strings.TrimSpace(def[eq+1:])
	parent := BaseLabel
	label := name
	if colon := strings.LastIndexByte(name, ':'); colon >= 0 {
		parent = name[:colon]
		label = name[colon+1:]
	}
	if label == "" || value == "" {
		return "", errors.E(fmt.Sprintf("graph: malformed subgraph definition %q", def))
	}
	pg, err := m.At(parent)
	if err != nil {
		return "", err
	}

	var derived *Graph
	switch value {
	case "REF":
		derived, err = DeriveRef(pg)
	case "MAXAF":
		derived, err = DeriveMaxAF(pg)
	default:
		var filter Population
		filter, err = m.sampleSubset(pg, value)
		if err != nil {
			return "", err
		}
		derived, err = DeriveFilter(pg, filter)
	}
	if err != nil {
		return "", err
	}
	m.addGraph(label, derived)
	return label, nil
}

// sampleSubset draws a random sample subset ("N" or "N%") as a haplotype
// filter, two haplotypes per sample.
func (m *Manager) sampleSubset(g *Graph, value string) (Population, error) {
	popSize := g.PopSize()
	if popSize == 0 {
		return Population{}, errors.New("graph: population subsets require a graph built with genotypes")
	}
	nSamples := popSize / 2
	count := 0
	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(value[:len(value)-1])
		if err != nil || pct < 0 || pct > 100 {
			return Population{}, errors.E(fmt.Sprintf("graph: bad subset percentage %q", value))
		}
		count = nSamples * pct / 100
	} else {
		var err error
		if count, err = strconv.Atoi(value); err != nil || count < 0 {
			return Population{}, errors.E(fmt.Sprintf("graph: bad subset count %q", value))
		}
		if count > nSamples {
			count = nSamples
		}
	}
	filter := NewPopulation(popSize)
	for _, s := range m.rng.Perm(nSamples)[:count] {
		filter.Set(2 * s)
		filter.Set(2*s + 1)
	}
	return filter, nil
}

// nodeTable serializes the arena's node block, shared by Write and the
// checksum computation.
func (m *Manager) nodeTable() []byte {
	var buf bytes.Buffer
	for id := uint32(0); id < uint32(m.arena.Len()); id++ {
		n := m.arena.Node(id)
		if n == nil {
			continue
		}
		pinched := 0
		if n.Pinched {
			pinched = 1
		}
		fmt.Fprintf(&buf, "%d\t%d\t%s\t%d\t%d\n%s\n",
			n.ID, n.EndPos, strconv.FormatFloat(float64(n.AF), 'g', -1, 32), pinched, n.Len(), n.SeqString())
	}
	return buf.Bytes()
}

// Write serializes the manager: metadata, contig offsets, per-graph order
// and adjacency, then the arena-wide node table.  A seahash of the node
// table is recorded in the metadata block and verified on load.
func (m *Manager) Write(w io.Writer) error {
	nodes := m.nodeTable()
	m.SetMeta("checksum", strconv.FormatUint(seahash.Sum64(nodes), 16))

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "@vgraph")
	for _, kv := range m.meta {
		fmt.Fprintf(bw, "%s\t%s\n", kv[0], kv[1])
	}

	fmt.Fprintln(bw, "\n@contigs")
	for _, c := range m.contigs {
		fmt.Fprintf(bw, "%d\t%s\n", c.Offset, c.Name)
	}

	fmt.Fprintln(bw, "\n@graphs")
	for _, label := range m.labels {
		g := m.graphs[label]
		ids := make([]string, len(g.order))
		for i, id := range g.order {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		fmt.Fprintf(bw, "%s\t%s\t", label, strings.Join(ids, ","))
		for _, id := range g.order {
			succ := g.next[id]
			if len(succ) == 0 {
				continue
			}
			dsts := make([]string, len(succ))
			for i, d := range succ {
				dsts[i] = strconv.FormatUint(uint64(d), 10)
			}
			fmt.Fprintf(bw, "%d:%s;", id, strings.Join(dsts, ","))
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "\n@nodes")
	if _, err := bw.Write(nodes); err != nil {
		return errors.E(err, "graph: writing definition")
	}
	if err := bw.Flush(); err != nil {
		return errors.E(err, "graph: writing definition")
	}
	return nil
}

// Open restores a manager from its serialized form, replacing any current
// contents.
func (m *Manager) Open(r io.Reader) error {
	s := bufio.NewScanner(r)
	s.Buffer(nil, 64*1024*1024)

	m.arena = NewArena()
	m.graphs = make(map[string]*Graph)
	m.labels = nil
	m.meta = nil
	m.offsets = &llrb.Tree{}
	m.contigs = nil

	line, ok := nextContent(s)
	if !ok || line != "@vgraph" {
		return errors.New("graph: not a graph definition file (missing @vgraph)")
	}
	line, err := m.readMeta(s)
	if err != nil {
		return err
	}
	if line != "@contigs" {
		return errors.New("graph: definition missing @contigs section")
	}
	if line, err = m.readContigs(s); err != nil {
		return err
	}
	if line != "@graphs" {
		return errors.New("graph: definition missing @graphs section")
	}
	if line, err = m.readGraphs(s); err != nil {
		return err
	}
	if line != "@nodes" {
		return errors.New("graph: definition missing @nodes section")
	}
	if err = m.readNodes(s); err != nil {
		return err
	}
	return m.finishOpen()
}

// nextContent skips blank and comment lines.
func nextContent(s *bufio.Scanner) (string, bool) {
	for s.Scan() {
		line := s.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return line, true
	}
	return "", false
}

func (m *Manager) readMeta(s *bufio.Scanner) (string, error) {
	for {
		line, ok := nextContent(s)
		if !ok {
			return "", errors.New("graph: truncated definition file")
		}
		if line[0] == '@' {
			return line, nil
		}
		kv := strings.SplitN(line, "\t", 2)
		if len(kv) != 2 {
			return "", errors.E(fmt.Sprintf("graph: malformed metadata line %q", line))
		}
		m.SetMeta(kv[0], kv[1])
	}
}

func (m *Manager) readContigs(s *bufio.Scanner) (string, error) {
	for {
		line, ok := nextContent(s)
		if !ok {
			return "", errors.New("graph: truncated definition file")
		}
		if line[0] == '@' {
			return line, nil
		}
		kv := strings.SplitN(line, "\t", 2)
		if len(kv) != 2 {
			return "", errors.E(fmt.Sprintf("graph: malformed contig line %q", line))
		}
		off, err := strconv.ParseUint(kv[0], 10, 32)
		if err != nil {
			return "", errors.E(err, "graph: contig offset "+kv[0])
		}
		m.addContig(uint32(off), kv[1])
	}
}

func (m *Manager) readGraphs(s *bufio.Scanner) (string, error) {
	for {
		line, ok := nextContent(s)
		if !ok {
			return "", errors.New("graph: truncated definition file")
		}
		if line[0] == '@' {
			return line, nil
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return "", errors.E(fmt.Sprintf("graph: malformed graph line %q", line))
		}
		g := NewGraph(m.arena)
		for _, tok := range strings.Split(fields[1], ",") {
			id, err := strconv.ParseUint(tok, 10, 32)
			if err != nil {
				return "", errors.E(err, "graph: node id "+tok)
			}
			g.append(uint32(id))
		}
		if len(fields) > 2 && fields[2] != "" {
			for _, epair := range strings.Split(fields[2], ";") {
				if epair == "" {
					continue
				}
				sd := strings.SplitN(epair, ":", 2)
				if len(sd) != 2 {
					return "", errors.E(fmt.Sprintf("graph: malformed edge group %q", epair))
				}
				src, err := strconv.ParseUint(sd[0], 10, 32)
				if err != nil {
					return "", errors.E(err, "graph: edge source "+sd[0])
				}
				for _, dtok := range strings.Split(sd[1], ",") {
					dst, err := strconv.ParseUint(dtok, 10, 32)
					if err != nil {
						return "", errors.E(err, "graph: edge destination "+dtok)
					}
					g.addEdgeUnchecked(uint32(src), uint32(dst))
				}
			}
		}
		m.addGraph(fields[0], g)
	}
}

func (m *Manager) readNodes(s *bufio.Scanner) error {
	for {
		line, ok := nextContent(s)
		if !ok {
			return nil
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return errors.E(fmt.Sprintf("graph: malformed node line %q", line))
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return errors.E(err, "graph: node id "+fields[0])
		}
		if m.arena.Node(uint32(id)) != nil {
			return errors.E(fmt.Sprintf("graph: duplicate node id %d", id))
		}
		endPos, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.E(err, "graph: node end position "+fields[1])
		}
		af, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return errors.E(err, "graph: node allele frequency "+fields[2])
		}
		seqLen, err := strconv.Atoi(fields[4])
		if err != nil {
			return errors.E(err, "graph: node sequence length "+fields[4])
		}
		// The sequence always occupies the next line, even when empty.
		if !s.Scan() {
			return errors.New("graph: truncated node sequence")
		}
		seq := s.Text()
		if len(seq) != seqLen {
			return errors.E(fmt.Sprintf("graph: node %d sequence length %d, expected %d", id, len(seq), seqLen))
		}
		m.arena.Put(uint32(id), &Node{
			Seq:     SeqFromString(seq),
			EndPos:  uint32(endPos),
			AF:      float32(af),
			Pinched: fields[3] == "1",
			Ref:     true, // populations and ref flags are not persisted
		})
	}
}

// finishOpen validates node references and the node-table checksum.
func (m *Manager) finishOpen() error {
	for _, label := range m.labels {
		g := m.graphs[label]
		for _, id := range g.order {
			if m.arena.Node(id) == nil {
				return errors.E(fmt.Sprintf("graph: graph %q references unknown node %d", label, id))
			}
		}
	}
	for _, kv := range m.meta {
		if kv[0] != "checksum" {
			continue
		}
		want, err := strconv.ParseUint(kv[1], 16, 64)
		if err != nil {
			return errors.E(err, "graph: bad checksum metadata")
		}
		if got := seahash.Sum64(m.nodeTable()); got != want {
			return errors.E(fmt.Sprintf("graph: node table checksum mismatch: %x != %x", got, want))
		}
	}
	return nil
}

// WriteDOT exports a labeled graph in DOT format.
func (m *Manager) WriteDOT(w io.Writer, label string) error {
	g, err := m.At(label)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph \"%s\" {\n\trankdir=LR;\n", label)
	for _, id := range g.Order() {
		n := g.Node(id)
		seq := n.SeqString()
		if seq == "" {
			seq = "-"
		}
		fmt.Fprintf(bw, "\tn%d [label=\"%d: %s\\n%d,af=%s\"];\n",
			id, id, seq, n.EndPos, strconv.FormatFloat(float64(n.AF), 'g', -1, 32))
	}
	for _, id := range g.Order() {
		succ := append([]uint32(nil), g.Next(id)...)
		sort.Slice(succ, func(i, j int) bool { return succ[i] < succ[j] })
		for _, v := range succ {
			fmt.Fprintf(bw, "\tn%d -> n%d;\n", id, v)
		}
	}
	fmt.Fprintln(bw, "}")
	if err := bw.Flush(); err != nil {
		return errors.E(err, "graph: writing DOT")
	}
	return nil
}

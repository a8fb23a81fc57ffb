package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/bio/encoding/fastq"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/vargraph/align"
	"github.com/grailbio/vargraph/scoring"
	"v.io/x/lib/cmdline"
)

func newCmdAlign() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "align",
		Short: "Align reads to a set of variation graphs",
		Long: `
Align reads SAM, FASTA, or FASTQ input and aligns each read against its
target subgraph, appending the score and position tags (ms, mp, mc, st, and
the sub-optimal ss, sp, sc, su on linear graphs) plus AS and gd.  Targets map
read groups to subgraph labels, e.g. "1=a;2=b;*=base".`,
	}
	gdfFile := cmd.Flags.String("graph", "", "Graph definition file (required).")
	readsFile := cmd.Flags.String("reads", "", "Read input: .sam, .fasta, or .fastq, optionally .gz (required).")
	outFile := cmd.Flags.String("out", "", "Output SAM file; stdout by default.")
	targets := cmd.Flags.String("targets", "", "Read-group to subgraph mapping; default everything to 'base'.")
	chunk := cmd.Flags.Int("chunk", align.DefaultChunkSize, "Maximum reads per task.")
	threads := cmd.Flags.Int("threads", 0, "Worker count; 0 means all cores.")
	fwdOnly := cmd.Flags.Bool("fwdonly", false, "Align to the forward strand only.")
	ete := cmd.Flags.Bool("ete", false, "End-to-end alignment.")
	msOnly := cmd.Flags.Bool("msonly", false, "Report the max score only.")
	maxOnly := cmd.Flags.Bool("maxonly", false, "Skip sub-optimal score tracking.")
	wide := cmd.Flags.Bool("wide", false, "Force 16-bit score cells.")
	p64 := cmd.Flags.Bool("p64", false, "FASTQ qualities are Phred+64.")
	template := cmd.Flags.String("profile", "", `Scoring from an aligner command line, e.g. "bowtie2 --ma 2 --mp 6,2".`)
	ma := cmd.Flags.Int("ma", 2, "Match bonus.")
	mp := cmd.Flags.String("mp", "2,2", "Mismatch penalty MAX,MIN.")
	np := cmd.Flags.Int("np", 0, "Ambiguous base penalty.")
	rdg := cmd.Flags.String("rdg", "3,1", "Read gap open,extend penalties.")
	rfg := cmd.Flags.String("rfg", "3,1", "Reference gap open,extend penalties.")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *gdfFile == "" || *readsFile == "" {
			return fmt.Errorf("align: -graph and -reads are required")
		}
		m, err := openManager(*gdfFile)
		if err != nil {
			return err
		}

		prof := scoring.Default()
		if *template != "" {
			if prof, err = scoring.FromCommandLine(*template); err != nil {
				return err
			}
		} else {
			prof.Match = *ma
			prof.Ambig = *np
			if prof.MismatchMax, prof.MismatchMin, err = parsePair(*mp); err != nil {
				return err
			}
			if prof.ReadGapOpen, prof.ReadGapExt, err = parsePair(*rdg); err != nil {
				return err
			}
			if prof.RefGapOpen, prof.RefGapExt, err = parsePair(*rfg); err != nil {
				return err
			}
			if err = prof.Validate(); err != nil {
				return err
			}
		}

		phredOffset := byte(33)
		if *p64 {
			phredOffset = 64
		}
		recs, header, err := loadReads(*readsFile, phredOffset)
		if err != nil {
			return err
		}
		log.Printf("align: %d reads loaded from %s", len(recs), *readsFile)

		targetMap, err := align.ParseTargets(*targets)
		if err != nil {
			return err
		}
		tasks, maxReadLen := align.CreateTasks(recs, targetMap, *chunk)
		for _, task := range tasks {
			if _, err := m.At(task.Label); err != nil {
				return err
			}
		}
		log.Printf("align: %d tasks, longest read %d", len(tasks), maxReadLen)

		header, err = addProgram(header, "vargraph_align", "align "+strings.Join(argv, " "))
		if err != nil {
			return err
		}
		out, err := createOutput(*outFile)
		if err != nil {
			return err
		}
		w, err := align.NewWriter(out.Writer(), header)
		if err != nil {
			return err
		}

		cfg := align.Config{
			Threads:     *threads,
			FwdOnly:     *fwdOnly,
			EndToEnd:    *ete,
			ScoreOnly:   *msOnly,
			MaxOnly:     *maxOnly,
			Wide:        *wide,
			PhredOffset: phredOffset,
		}
		if err := align.Run(m, tasks, prof, w, cfg); err != nil {
			return err
		}
		return out.Close()
	})
	return cmd
}

func parsePair(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	a, err := parseIntStrict(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("align: bad pair %q", s)
	}
	b := a
	if len(parts) > 1 {
		if b, err = parseIntStrict(parts[1]); err != nil {
			return 0, 0, fmt.Errorf("align: bad pair %q", s)
		}
	}
	return a, b, nil
}

func parseIntStrict(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v)
	return v, err
}

// loadReads reads SAM, FASTA, or FASTQ input into records, returning the
// output header (the input's own for SAM, a fresh one otherwise).
func loadReads(path string, phredOffset byte) ([]*sam.Record, *sam.Header, error) {
	switch {
	case strings.HasSuffix(path, ".sam"):
		return loadSAM(path)
	case hasAnySuffix(path, ".fastq", ".fq", ".fastq.gz", ".fq.gz"):
		return loadFASTQ(path, phredOffset)
	case hasAnySuffix(path, ".fasta", ".fa", ".fasta.gz", ".fa.gz"):
		return loadFASTA(path)
	}
	return nil, nil, fmt.Errorf("align: cannot determine read format of %q", path)
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func loadSAM(path string) ([]*sam.Record, *sam.Header, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close() // nolint: errcheck
	r, err := sam.NewReader(bufio.NewReader(in))
	if err != nil {
		return nil, nil, err
	}
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	return recs, r.Header(), nil
}

func emptyHeader() (*sam.Header, error) {
	return sam.NewHeader([]byte("@HD\tVN:1.6\n"), nil)
}

func loadFASTQ(path string, phredOffset byte) ([]*sam.Record, *sam.Header, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close() // nolint: errcheck

	var recs []*sam.Record
	sc := fastq.NewScanner(in, fastq.ID|fastq.Seq|fastq.Qual)
	var read fastq.Read
	for sc.Scan(&read) {
		name := strings.TrimPrefix(strings.Fields(read.ID)[0], "@")
		qual := make([]byte, len(read.Qual))
		for i := 0; i < len(read.Qual); i++ {
			qual[i] = read.Qual[i] - phredOffset
		}
		rec, err := unmappedRecord(name, []byte(read.Seq), qual)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	h, err := emptyHeader()
	return recs, h, err
}

func loadFASTA(path string) ([]*sam.Record, *sam.Header, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close() // nolint: errcheck
	fa, err := fasta.New(in)
	if err != nil {
		return nil, nil, err
	}
	var recs []*sam.Record
	for _, name := range fa.SeqNames() {
		n, err := fa.Len(name)
		if err != nil {
			return nil, nil, err
		}
		seq, err := fa.Get(name, 0, n)
		if err != nil {
			return nil, nil, err
		}
		// No qualities: 0xff marks them missing.
		qual := make([]byte, len(seq))
		for i := range qual {
			qual[i] = 0xff
		}
		rec, err := unmappedRecord(name, []byte(seq), qual)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	h, err := emptyHeader()
	return recs, h, err
}

func unmappedRecord(name string, seq, qual []byte) (*sam.Record, error) {
	rec, err := sam.NewRecord(name, nil, nil, -1, -1, 0, 0xff, nil, seq, qual, nil)
	if err != nil {
		return nil, err
	}
	rec.Flags = sam.Unmapped
	return rec, nil
}

// addProgram appends a @PG line to a header by round-tripping its text form.
func addProgram(h *sam.Header, id, cl string) (*sam.Header, error) {
	text, err := h.MarshalText()
	if err != nil {
		return nil, err
	}
	text = append(text, []byte(fmt.Sprintf("@PG\tID:%s\tPN:vargraph\tCL:%s\n", id, cl))...)
	return sam.NewHeader(text, nil)
}

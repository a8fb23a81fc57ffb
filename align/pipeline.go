package align

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/vargraph/graph"
	"github.com/grailbio/vargraph/scoring"
	"github.com/grailbio/vargraph/simd"
)

// Writer serializes tagged output records.  A mutex keeps the stream
// consistent; record order across tasks is not preserved.
type Writer struct {
	mu sync.Mutex
	w  *sam.Writer
}

// NewWriter returns a Writer emitting SAM text with the given header.
func NewWriter(w io.Writer, h *sam.Header) (*Writer, error) {
	sw, err := sam.NewWriter(w, h, sam.FlagDecimal)
	if err != nil {
		return nil, errors.E(err, "align: opening output")
	}
	return &Writer{w: sw}, nil
}

// WriteTask appends one task's records as a block.
func (w *Writer) WriteTask(recs []*sam.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range recs {
		if err := w.w.Write(rec); err != nil {
			return errors.E(err, "align: writing record "+rec.Name)
		}
	}
	return nil
}

// Config drives a Run.
type Config struct {
	// Threads bounds the worker pool; 0 means GOMAXPROCS.
	Threads int
	// FwdOnly skips the reverse-strand pass.
	FwdOnly bool
	// EndToEnd, ScoreOnly and MaxOnly select engine modes.  MaxOnly is
	// forced per task whenever the target graph is branched.
	EndToEnd  bool
	ScoreOnly bool
	MaxOnly   bool
	// Wide forces 16-bit cells; otherwise the per-task read length decides.
	Wide bool
	// VecBits selects register width; 0 means 512.
	VecBits simd.VecBits
	// PhredOffset is subtracted from FASTQ quality characters upstream; Run
	// does not read it.
	PhredOffset byte
}

// engineKey identifies a reusable engine configuration.  Workers draw
// engines from per-key free pools rather than sharing instances.
type engineKey struct {
	readLen   int
	wide      bool
	endToEnd  bool
	scoreOnly bool
	maxOnly   bool
}

type enginePools struct {
	mu    sync.Mutex
	pools map[engineKey]*sync.Pool
}

func (p *enginePools) get(key engineKey, prof scoring.Profile, bits simd.VecBits) (Aligner, error) {
	p.mu.Lock()
	pool, ok := p.pools[key]
	if !ok {
		pool = &sync.Pool{}
		p.pools[key] = pool
	}
	p.mu.Unlock()
	if a, ok := pool.Get().(Aligner); ok {
		return a, nil
	}
	return New(key.readLen, prof, key.wide, Opts{
		EndToEnd:  key.endToEnd,
		ScoreOnly: key.scoreOnly,
		MaxOnly:   key.maxOnly,
		VecBits:   bits,
	})
}

func (p *enginePools) put(key engineKey, a Aligner) {
	p.mu.Lock()
	p.pools[key].Put(a)
	p.mu.Unlock()
}

// Run aligns every task against its target graph in m and writes tagged
// records to out.  Tasks are all-or-nothing: a failed task contributes no
// records.
func Run(m *graph.Manager, tasks []Task, prof scoring.Profile, out *Writer, cfg Config) error {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	pools := &enginePools{pools: make(map[engineKey]*sync.Pool)}
	var nAligned uint64

	err := traverse.Limit(threads).Each(len(tasks), func(ti int) error {
		task := tasks[ti]
		g, err := m.At(task.Label)
		if err != nil {
			return err
		}

		readLen := 0
		seqs := make([][]byte, len(task.Records))
		quals := make([][]byte, len(task.Records))
		for i, rec := range task.Records {
			seqs[i] = rec.Seq.Expand()
			if len(seqs[i]) > readLen {
				readLen = len(seqs[i])
			}
			if q := rec.Qual; len(q) > 0 && q[0] != 0xff {
				quals[i] = q
			}
		}
		if readLen == 0 {
			return errors.E("align: task with empty reads for graph " + task.Label)
		}

		key := engineKey{
			readLen:   readLen,
			wide:      cfg.Wide || NeedsWide(readLen, prof),
			endToEnd:  cfg.EndToEnd,
			scoreOnly: cfg.ScoreOnly,
			maxOnly:   cfg.MaxOnly || !g.Linear(),
		}
		eng, err := pools.get(key, prof, cfg.VecBits)
		if err != nil {
			return err
		}
		defer pools.put(key, eng)

		var res Results
		if err := eng.AlignInto(seqs, quals, g, cfg.FwdOnly, &res); err != nil {
			return err
		}
		for i, rec := range task.Records {
			if err := Annotate(rec, &res, i, task.Label); err != nil {
				return err
			}
		}
		if err := out.WriteTask(task.Records); err != nil {
			return err
		}
		n := atomic.AddUint64(&nAligned, uint64(len(task.Records)))
		log.Debug.Printf("align: task %d/%d done (%s, %d reads, %d total)",
			ti+1, len(tasks), task.Label, len(task.Records), n)
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("align: %d reads aligned over %d tasks", nAligned, len(tasks))
	return nil
}

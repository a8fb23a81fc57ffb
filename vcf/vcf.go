// Package vcf contains a minimal reader for VCF-formatted variant catalogs.
// It surfaces exactly what the graph builder consumes: per-record contig,
// position, reference and alternate alleles, allele frequencies, and
// per-haplotype genotype indices, with optional sample filtering and region
// restriction.  It is not a general-purpose VCF library.
package vcf

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const missingAllele = -1

// Record is one variant line.  Pos is 1-based.  Genotypes holds one allele
// index per haplotype (two per sample column, in column order); entries are
// -1 when the call is missing.  AltFreqs holds the INFO AF values, one per
// alternate allele, and is empty when the catalog carries no AF field.
type Record struct {
	Chrom     string
	Pos       int
	ID        string
	Ref       string
	Alts      []string
	AltFreqs  []float64
	Genotypes []int
}

// RefSpan returns the number of reference bases the record covers.
func (r *Record) RefSpan() int { return len(r.Ref) }

// Reader is a streaming VCF reader.  Configure any sample filter and region
// before the first Read call.
type Reader struct {
	s       *bufio.Scanner
	closer  io.Closer
	samples []string // all sample columns, in file order
	keep    []int    // indices into the sample columns after filtering
	chrom   string   // region restriction; empty means all
	lo, hi  int      // 1-based inclusive; hi 0 means contig end
	line    int
}

// New reads the VCF header from r and returns a Reader positioned at the
// first record.
func New(r io.Reader) (*Reader, error) {
	v := &Reader{s: bufio.NewScanner(r)}
	v.s.Buffer(nil, 16*1024*1024)
	for v.s.Scan() {
		v.line++
		line := v.s.Text()
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			fields := strings.Split(line, "\t")
			if len(fields) > fixedColumns+1 {
				v.samples = fields[fixedColumns+1:]
			}
			v.keep = make([]int, len(v.samples))
			for i := range v.keep {
				v.keep[i] = i
			}
			return v, v.s.Err()
		}
		return nil, errors.Errorf("vcf: line %d: expected header line, got %q", v.line, line)
	}
	if err := v.s.Err(); err != nil {
		return nil, errors.Wrap(err, "vcf: reading header")
	}
	return nil, errors.New("vcf: missing #CHROM header line")
}

// Open opens a plain or gzip-compressed VCF file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "vcf: open")
	}
	var in io.Reader = f
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close() // nolint: errcheck
			return nil, errors.Wrap(err, "vcf: gzip open "+path)
		}
		in = gz
	}
	v, err := New(in)
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, err
	}
	v.closer = f
	return v, nil
}

// Close releases the underlying file, if any.
func (v *Reader) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer.Close()
}

// Samples returns the sample names visible after filtering.
func (v *Reader) Samples() []string {
	out := make([]string, len(v.keep))
	for i, k := range v.keep {
		out[i] = v.samples[k]
	}
	return out
}

// NumHaplotypes returns the haplotype count of the filtered sample set,
// assuming diploid genotype columns.
func (v *Reader) NumHaplotypes() int { return 2 * len(v.keep) }

// SetSampleFilter restricts genotype extraction to the named samples.  Names
// absent from the file are an error.  An empty list keeps every sample.
func (v *Reader) SetSampleFilter(names []string) error {
	if len(names) == 0 {
		return nil
	}
	index := make(map[string]int, len(v.samples))
	for i, s := range v.samples {
		index[s] = i
	}
	v.keep = v.keep[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		i, ok := index[n]
		if !ok {
			return errors.Errorf("vcf: sample %q not present", n)
		}
		v.keep = append(v.keep, i)
	}
	return nil
}

// SetRegion restricts Read to records on chrom within [lo, hi] (1-based,
// inclusive).  hi == 0 means the end of the contig.
func (v *Reader) SetRegion(chrom string, lo, hi int) {
	v.chrom = chrom
	v.lo = lo
	v.hi = hi
}

const fixedColumns = 8 // CHROM..INFO; FORMAT and samples follow

// Read returns the next record inside the configured region, or io.EOF.
func (v *Reader) Read() (*Record, error) {
	for v.s.Scan() {
		v.line++
		line := v.s.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		rec, err := v.parse(line)
		if err != nil {
			return nil, err
		}
		if v.chrom != "" {
			if rec.Chrom != v.chrom {
				continue
			}
			if rec.Pos < v.lo {
				continue
			}
			if v.hi > 0 && rec.Pos+rec.RefSpan()-1 > v.hi {
				continue
			}
		}
		return rec, nil
	}
	if err := v.s.Err(); err != nil {
		return nil, errors.Wrap(err, "vcf: read")
	}
	return nil, io.EOF
}

func (v *Reader) parse(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < fixedColumns {
		return nil, errors.Errorf("vcf: line %d: %d fields", v.line, len(fields))
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, errors.Wrapf(err, "vcf: line %d: POS", v.line)
	}
	rec := &Record{
		Chrom: fields[0],
		Pos:   pos,
		ID:    fields[2],
		Ref:   strings.ToUpper(fields[3]),
	}
	if fields[4] != "." && fields[4] != "" {
		for _, alt := range strings.Split(fields[4], ",") {
			rec.Alts = append(rec.Alts, strings.ToUpper(alt))
		}
	}
	rec.AltFreqs = parseAF(fields[7], len(rec.Alts))
	if len(fields) > fixedColumns+1 {
		gtIdx := gtFieldIndex(fields[fixedColumns])
		if gtIdx >= 0 {
			rec.Genotypes = make([]int, 0, 2*len(v.keep))
			for _, k := range v.keep {
				col := fixedColumns + 1 + k
				if col >= len(fields) {
					return nil, errors.Errorf("vcf: line %d: missing sample column %d", v.line, k)
				}
				a, b := parseGT(fields[col], gtIdx)
				rec.Genotypes = append(rec.Genotypes, a, b)
			}
		}
	}
	return rec, nil
}

func parseAF(info string, nAlts int) []float64 {
	for _, kv := range strings.Split(info, ";") {
		if !strings.HasPrefix(kv, "AF=") {
			continue
		}
		vals := strings.Split(kv[3:], ",")
		out := make([]float64, 0, nAlts)
		for i := 0; i < nAlts && i < len(vals); i++ {
			f, err := strconv.ParseFloat(vals[i], 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

func gtFieldIndex(format string) int {
	for i, k := range strings.Split(format, ":") {
		if k == "GT" {
			return i
		}
	}
	return -1
}

// parseGT extracts the two haplotype allele indices from a sample column.
// Haploid calls are duplicated; missing calls yield -1.
func parseGT(sample string, gtIdx int) (int, int) {
	parts := strings.Split(sample, ":")
	if gtIdx >= len(parts) {
		return missingAllele, missingAllele
	}
	gt := parts[gtIdx]
	sep := "|"
	if !strings.Contains(gt, sep) {
		sep = "/"
	}
	alleles := strings.Split(gt, sep)
	a := parseAllele(alleles[0])
	b := a
	if len(alleles) > 1 {
		b = parseAllele(alleles[1])
	}
	return a, b
}

func parseAllele(s string) int {
	if s == "." || s == "" {
		return missingAllele
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return missingAllele
	}
	return v
}

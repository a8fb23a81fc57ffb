package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/cmdline"
)

var standardColumns = []string{
	"QNAME", "FLAG", "RNAME", "POS", "MAPQ", "CIGAR", "RNEXT", "PNEXT", "TLEN", "SEQ", "QUAL",
}

func newCmdConvert() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "convert",
		Short:    "Export SAM record fields and tags as TSV",
		ArgsName: "sam-file...",
		Long: `
Convert extracts the named columns from SAM records and writes one TSV row
per record.  Columns are the standard field names (QNAME, FLAG, RNAME, POS,
MAPQ, CIGAR, RNEXT, PNEXT, TLEN, SEQ, QUAL) or any two-character tag name,
e.g. "QNAME,ms,mp".  When several inputs are given, the first column is the
source file.  Missing tags produce "*".`,
	}
	format := cmd.Flags.String("format", "", "Comma-separated column list (required).")
	outFile := cmd.Flags.String("out", "", "Output file; stdout by default.")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *format == "" {
			return fmt.Errorf("convert: -format is required")
		}
		cols := splitList(*format)
		if len(cols) == 0 {
			return fmt.Errorf("convert: empty column list")
		}
		if len(argv) == 0 {
			return fmt.Errorf("convert: at least one SAM file is required")
		}

		out, err := createOutput(*outFile)
		if err != nil {
			return err
		}
		w := tsv.NewWriter(out.Writer())
		warned := make(map[string]bool)

		for _, path := range argv {
			if err := convertFile(path, len(argv) > 1, cols, w, warned); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return out.Close()
	})
	return cmd
}

func convertFile(path string, labelSource bool, cols []string, w *tsv.Writer, warned map[string]bool) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close() // nolint: errcheck
	r, err := sam.NewReader(bufio.NewReader(in))
	if err != nil {
		return err
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if labelSource {
			w.WriteString(path)
		}
		for _, col := range cols {
			w.WriteString(columnValue(rec, col, warned))
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
}

func columnValue(rec *sam.Record, col string, warned map[string]bool) string {
	switch col {
	case "QNAME":
		return rec.Name
	case "FLAG":
		return fmt.Sprint(int(rec.Flags))
	case "RNAME":
		if rec.Ref == nil {
			return "*"
		}
		return rec.Ref.Name()
	case "POS":
		return fmt.Sprint(rec.Pos + 1)
	case "MAPQ":
		return fmt.Sprint(rec.MapQ)
	case "CIGAR":
		if len(rec.Cigar) == 0 {
			return "*"
		}
		return rec.Cigar.String()
	case "RNEXT":
		if rec.MateRef == nil {
			return "*"
		}
		return rec.MateRef.Name()
	case "PNEXT":
		return fmt.Sprint(rec.MatePos + 1)
	case "TLEN":
		return fmt.Sprint(rec.TempLen)
	case "SEQ":
		return string(rec.Seq.Expand())
	case "QUAL":
		return qualString(rec.Qual)
	}
	if len(col) == 2 {
		if aux := rec.AuxFields.Get(sam.NewTag(col)); aux != nil {
			return fmt.Sprint(aux.Value())
		}
	}
	if !warned[col] {
		warned[col] = true
		log.Printf("convert: column %q not present; emitting '*'", col)
	}
	return "*"
}

func qualString(qual []byte) string {
	if len(qual) == 0 || qual[0] == 0xff {
		return "*"
	}
	var b strings.Builder
	for _, q := range qual {
		b.WriteByte(q + 33)
	}
	return b.String()
}

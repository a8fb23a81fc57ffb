package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/vargraph/graph"
	"v.io/x/lib/cmdline"
)

func newCmdDefine() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "define",
		Short: "Define a set of variation graphs from a FASTA and a variant catalog",
		Long: `
Define builds the base graph from a reference FASTA and an optional VCF, then
derives any requested subgraphs, and writes a graph-definition file usable by
sim and align.

Subgraphs are defined as "label=value" expressions separated by ';', where
value is REF, MAXAF, a sample count, or a sample percentage.  Scope a
derivation under a parent with ':', e.g. "a=50;a:b=10%".`,
	}
	fastaFile := cmd.Flags.String("fasta", "", "Reference FASTA filename (required).")
	vcfFile := cmd.Flags.String("vcf", "", "Variant file (vcf or vcf.gz).")
	outFile := cmd.Flags.String("out", "", "Output filename; stdout by default.")
	region := cmd.Flags.String("region", "", "Semicolon-separated regions CHR[:MIN-MAX]; all contigs by default.")
	subdef := cmd.Flags.String("subgraph", "", "Subgraph definition expressions.")
	sampleFile := cmd.Flags.String("filter", "", "File listing sample names to restrict the catalog to.")
	limVar := cmd.Flags.Int("limvar", 0, "Limit to the first N variant records per region.")
	nodeLen := cmd.Flags.Int("node-len", graph.DefaultMaxNodeLen, "Maximum backbone node length.")
	seed := cmd.Flags.Int64("seed", 0, "RNG seed for population subsets; 0 derives one from the clock.")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *fastaFile == "" {
			return fmt.Errorf("define: -fasta is required")
		}
		fa, closeFa, err := openFasta(*fastaFile)
		if err != nil {
			return err
		}
		defer closeFa() // nolint: errcheck

		var regions []graph.Region
		if *region != "" {
			for _, tok := range strings.Split(*region, ";") {
				if strings.TrimSpace(tok) == "" {
					continue
				}
				r, err := graph.ParseRegion(tok)
				if err != nil {
					return err
				}
				regions = append(regions, r)
			}
		}

		var samples []string
		if *sampleFile != "" {
			raw, err := os.ReadFile(*sampleFile)
			if err != nil {
				return err
			}
			samples = strings.FieldsFunc(string(raw), func(r rune) bool {
				return r == ',' || r == '\n' || r == '\r' || r == '\t' || r == ' '
			})
		}

		m := graph.NewManager()
		if *seed == 0 {
			*seed = time.Now().UnixNano()
		}
		m.SetSeed(*seed)
		m.SetMeta("fasta", *fastaFile)
		if *vcfFile != "" {
			m.SetMeta("vcf", *vcfFile)
		}
		if _, err := m.CreateBase(fa, *vcfFile, regions, samples, *nodeLen, *limVar); err != nil {
			return err
		}

		if *subdef != "" {
			for _, def := range strings.Split(*subdef, ";") {
				if strings.TrimSpace(def) == "" {
					continue
				}
				label, err := m.Derive(def)
				if err != nil {
					return err
				}
				g, _ := m.At(label)
				log.Printf("define: derived %q: %s", label, g.Stats())
			}
		}

		out, err := createOutput(*outFile)
		if err != nil {
			return err
		}
		if err := m.Write(out.Writer()); err != nil {
			return err
		}
		return out.Close()
	})
	return cmd
}

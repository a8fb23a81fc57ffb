package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/vargraph/align"
	"github.com/grailbio/vargraph/sim"
	"v.io/x/lib/cmdline"
)

func newCmdSim() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "sim",
		Short: "Simulate reads from a set of variation graphs",
		Long: `
Sim draws reads from the labeled subgraphs of a graph-definition file.  One
read group is created per combination of the stratum flags (-vnodes, -vbases,
-mut, -indel) and source subgraph; -numreads reads are generated for each.
"*" accepts any value for -vnodes and -vbases; for -mut and -indel it means
no errors.`,
	}
	gdfFile := cmd.Flags.String("graph", "", "Graph definition file (required).")
	outFile := cmd.Flags.String("out", "", "Output SAM file; stdout by default.")
	srcLabels := cmd.Flags.String("sub", "base", "Comma-separated subgraph labels to simulate from.")
	readLen := cmd.Flags.Int("rlen", 50, "Read length.")
	numReads := cmd.Flags.Int("numreads", 1000, "Reads per read group.")
	threads := cmd.Flags.Int("threads", 1, "Worker count.")
	vnodes := cmd.Flags.String("vnodes", "*", "Variant-node counts, comma separated; '*' for any.")
	vbases := cmd.Flags.String("vbases", "*", "Variant-base counts, comma separated; '*' for any.")
	mut := cmd.Flags.String("mut", "0", "Substitution errors, comma separated.")
	indel := cmd.Flags.String("indel", "0", "Indel errors, comma separated.")
	useRate := cmd.Flags.Bool("rate", false, "Interpret -mut and -indel as per-base rates.")
	seed := cmd.Flags.Int64("seed", 0, "RNG seed; 0 derives one from the clock.")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *gdfFile == "" {
			return fmt.Errorf("sim: -graph is required")
		}
		m, err := openManager(*gdfFile)
		if err != nil {
			return err
		}
		if *seed == 0 {
			*seed = time.Now().UnixNano()
		}

		labels := splitList(*srcLabels)
		for _, l := range labels {
			if _, err := m.At(l); err != nil {
				return err
			}
		}

		type rgTask struct {
			label string
			rgID  string
			prof  sim.Profile
		}
		var tasks []rgTask
		var rgLines []string
		rgID := 0
		for _, vb := range splitList(*vbases) {
			for _, vn := range splitList(*vnodes) {
				for _, in := range splitList(*indel) {
					for _, mu := range splitList(*mut) {
						prof := sim.DefaultProfile(*readLen)
						prof.Rates = *useRate
						var err error
						if prof.Mut, err = starFloat(mu); err != nil {
							return err
						}
						if prof.Indel, err = starFloat(in); err != nil {
							return err
						}
						if prof.VarNodes, err = starInt(vn); err != nil {
							return err
						}
						if prof.VarBases, err = starInt(vb); err != nil {
							return err
						}
						for _, label := range labels {
							rgID++
							id := strconv.Itoa(rgID)
							rate := 0
							if prof.Rates {
								rate = 1
							}
							rgLines = append(rgLines, fmt.Sprintf(
								"@RG\tID:%s\tSM:sim\tDS:%s\tgd:%s\trt:%d\tph:%s",
								id, prof, label, rate, *gdfFile))
							tasks = append(tasks, rgTask{label: label, rgID: id, prof: prof})
						}
					}
				}
			}
		}

		var hdr strings.Builder
		hdr.WriteString("@HD\tVN:1.6\n")
		for _, c := range m.Contigs() {
			fmt.Fprintf(&hdr, "@SQ\tSN:%s\tLN:%d\n", c.Name, c.Length)
		}
		for _, line := range rgLines {
			hdr.WriteString(line)
			hdr.WriteByte('\n')
		}
		fmt.Fprintf(&hdr, "@PG\tID:vargraph_sim\tPN:vargraph\tCL:sim %s\n", strings.Join(argv, " "))
		header, err := sam.NewHeader([]byte(hdr.String()), nil)
		if err != nil {
			return err
		}
		refs := make(map[string]*sam.Reference)
		for _, ref := range header.Refs() {
			refs[ref.Name()] = ref
		}

		out, err := createOutput(*outFile)
		if err != nil {
			return err
		}
		w, err := align.NewWriter(out.Writer(), header)
		if err != nil {
			return err
		}

		log.Printf("sim: %d read groups over %d subgraphs", len(tasks), len(labels))
		err = traverse.Limit(*threads).Each(len(tasks), func(ti int) error {
			task := tasks[ti]
			g, err := m.At(task.label)
			if err != nil {
				return err
			}
			s := sim.New(g, task.prof, *seed+int64(ti))
			batch, err := s.GetBatch(*numReads)
			if err != nil {
				return err
			}
			recs := make([]*sam.Record, len(batch))
			for i, r := range batch {
				name := fmt.Sprintf("%s_%s_%d", task.label, task.rgID, i)
				if recs[i], err = sim.ToRecord(r, name, task.rgID, m.AbsolutePosition, refs); err != nil {
					return err
				}
			}
			return w.WriteTask(recs)
		})
		if err != nil {
			return err
		}
		return out.Close()
	})
	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func starFloat(s string) (float64, error) {
	if s == "*" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func starInt(s string) (int, error) {
	if s == "*" {
		return -1, nil
	}
	return strconv.Atoi(s)
}

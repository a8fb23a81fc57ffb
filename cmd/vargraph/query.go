package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

func newCmdQuery() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "query",
		Short: "Inspect a graph-definition file",
		Long: `
Query prints statistics for the labeled subgraphs of a definition file and
can export a subgraph in DOT format.`,
	}
	gdfFile := cmd.Flags.String("graph", "", "Graph definition file (required).")
	dot := cmd.Flags.String("dot", "", "Subgraph label to export as DOT.")
	outFile := cmd.Flags.String("out", "", "DOT output file; stdout by default.")
	stat := cmd.Flags.String("stat", "", "Print statistics for a subgraph label, or '-' for all.")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *gdfFile == "" {
			return fmt.Errorf("query: -graph is required")
		}
		m, err := openManager(*gdfFile)
		if err != nil {
			return err
		}

		if *dot != "" {
			out, err := createOutput(*outFile)
			if err != nil {
				return err
			}
			if err := m.WriteDOT(out.Writer(), *dot); err != nil {
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}

		if *stat != "" {
			labels := []string{*stat}
			if *stat == "-" {
				labels = m.Labels()
			}
			for _, label := range labels {
				g, err := m.At(label)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "%s : %s\n", label, g.Stats())
			}
		}
		return nil
	})
	return cmd
}

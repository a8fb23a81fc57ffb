// Vargraph builds reference variation graphs from a FASTA and a variant
// catalog, simulates reads from them, and aligns reads against them with a
// vectorized Smith-Waterman engine, reporting scores and positions as SAM
// tags.
package main

import (
	"v.io/x/lib/cmdline"
)

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "vargraph",
		Short:    "Build, simulate from, and align to variation graphs",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdDefine(),
			newCmdSim(),
			newCmdAlign(),
			newCmdConvert(),
			newCmdQuery(),
		},
	})
}

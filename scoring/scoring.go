// Package scoring defines the alignment scoring profile and its derivation
// from the command-line templates of well-known aligners.
package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Profile holds the aligner scoring parameters.  "Score" values are added,
// "penalty" values are subtracted; all are supplied as non-negative integers.
type Profile struct {
	Match       int // match bonus
	MismatchMin int // mismatch penalty at base quality 0
	MismatchMax int // mismatch penalty at base quality >= 40, or without qualities
	ReadGapOpen int // gap open penalty, gap in read
	ReadGapExt  int // gap extension penalty, gap in read
	RefGapOpen  int // gap open penalty, gap in reference
	RefGapExt   int // gap extension penalty, gap in reference
	Ambig       int // ambiguous (N) base penalty
	EndToEnd    bool
	Tol         int // position tolerance when classifying simulated reads
}

// Default mirrors the built-in parameters: match 2, mismatch 2, gap open 3,
// gap extension 1.
func Default() Profile {
	return Profile{
		Match:       2,
		MismatchMin: 2,
		MismatchMax: 2,
		ReadGapOpen: 3,
		ReadGapExt:  1,
		RefGapOpen:  3,
		RefGapExt:   1,
		Tol:         5,
	}
}

// New returns a profile with symmetric read/reference gap penalties.
func New(match, mismatch, gapOpen, gapExt int) Profile {
	p := Default()
	p.Match = match
	p.MismatchMin = mismatch
	p.MismatchMax = mismatch
	p.ReadGapOpen = gapOpen
	p.ReadGapExt = gapExt
	p.RefGapOpen = gapOpen
	p.RefGapExt = gapExt
	return p
}

const qualCap = 40

// Penalty returns the mismatch penalty for a base of the given Phred
// quality.  Qualities above 40 saturate; a negative quality means the
// quality string was absent and the maximum penalty applies.
func (p *Profile) Penalty(qual int) int {
	if qual < 0 {
		return p.MismatchMax
	}
	if qual > qualCap {
		qual = qualCap
	}
	return p.MismatchMin + ((p.MismatchMax-p.MismatchMin)*qual)/qualCap
}

// Validate checks the profile for values the engine cannot honor.
func (p *Profile) Validate() error {
	if p.Match < 0 || p.MismatchMin < 0 || p.MismatchMax < 0 ||
		p.ReadGapOpen < 0 || p.ReadGapExt < 0 || p.RefGapOpen < 0 || p.RefGapExt < 0 ||
		p.Ambig < 0 {
		return errors.New("scoring: negative score parameter")
	}
	if p.MismatchMin > p.MismatchMax {
		return errors.New("scoring: mismatch penalty min exceeds max")
	}
	return nil
}

func (p Profile) String() string {
	mode := "local"
	if p.EndToEnd {
		mode = "ete"
	}
	return fmt.Sprintf("match=%d mismatch=%d,%d rdg=%d,%d rfg=%d,%d np=%d %s",
		p.Match, p.MismatchMin, p.MismatchMax,
		p.ReadGapOpen, p.ReadGapExt, p.RefGapOpen, p.RefGapExt, p.Ambig, mode)
}

// SupportedPrograms lists the aligner command lines FromCommandLine
// understands.
var SupportedPrograms = []string{"bowtie2", "bwa mem"}

// FromCommandLine derives a profile from an aligner-style command line, e.g.
//
//	bowtie2 --ma 2 --mp 6,2 --rdg 5,3 --rfg 5,3 --np 1 --end-to-end
//	bwa mem -A 1 -B 4 -O 6 -E 1
//
// Unrecognized flags are ignored; only the scoring flags of each template
// are interpreted.
func FromCommandLine(cl string) (Profile, error) {
	toks := strings.Fields(cl)
	if len(toks) == 0 {
		return Profile{}, errors.New("scoring: empty command line")
	}
	switch {
	case strings.Contains(toks[0], "bowtie2"):
		return bowtie2(toks[1:])
	case strings.Contains(toks[0], "bwa"):
		if len(toks) < 2 || toks[1] != "mem" {
			return Profile{}, errors.New("scoring: only \"bwa mem\" command lines are supported")
		}
		return bwaMem(toks[2:])
	}
	return Profile{}, errors.New("scoring: unrecognized program: " + toks[0])
}

func bowtie2(toks []string) (Profile, error) {
	// bowtie2 defaults: --local uses --ma 2, --end-to-end defaults --ma to 0.
	p := Profile{
		Match:       2,
		MismatchMin: 2,
		MismatchMax: 6,
		ReadGapOpen: 5,
		ReadGapExt:  3,
		RefGapOpen:  5,
		RefGapExt:   3,
		Ambig:       1,
		Tol:         5,
	}
	matchSet := false
	for i := 0; i < len(toks); i++ {
		var err error
		switch toks[i] {
		case "--end-to-end":
			p.EndToEnd = true
		case "--local":
			p.EndToEnd = false
		case "--ma":
			if p.Match, err = intArg(toks, &i); err != nil {
				return p, err
			}
			matchSet = true
		case "--mp":
			if p.MismatchMax, p.MismatchMin, err = pairArg(toks, &i); err != nil {
				return p, err
			}
		case "--np":
			if p.Ambig, err = intArg(toks, &i); err != nil {
				return p, err
			}
		case "--rdg":
			if p.ReadGapOpen, p.ReadGapExt, err = pairArg(toks, &i); err != nil {
				return p, err
			}
		case "--rfg":
			if p.RefGapOpen, p.RefGapExt, err = pairArg(toks, &i); err != nil {
				return p, err
			}
		}
	}
	if p.EndToEnd && !matchSet {
		p.Match = 0
	}
	return p, p.Validate()
}

func bwaMem(toks []string) (Profile, error) {
	// bwa mem defaults: -A 1 -B 4 -O 6 -E 1.  Always local.
	p := Profile{
		Match:       1,
		MismatchMin: 4,
		MismatchMax: 4,
		ReadGapOpen: 6,
		ReadGapExt:  1,
		RefGapOpen:  6,
		RefGapExt:   1,
		Ambig:       1,
		Tol:         5,
	}
	for i := 0; i < len(toks); i++ {
		var err error
		switch toks[i] {
		case "-A":
			if p.Match, err = intArg(toks, &i); err != nil {
				return p, err
			}
		case "-B":
			mm, err := intArg(toks, &i)
			if err != nil {
				return p, err
			}
			p.MismatchMin, p.MismatchMax = mm, mm
		case "-O":
			open, err := intArg(toks, &i)
			if err != nil {
				return p, err
			}
			p.ReadGapOpen, p.RefGapOpen = open, open
		case "-E":
			ext, err := intArg(toks, &i)
			if err != nil {
				return p, err
			}
			p.ReadGapExt, p.RefGapExt = ext, ext
		}
	}
	return p, p.Validate()
}

func intArg(toks []string, i *int) (int, error) {
	*i++
	if *i >= len(toks) {
		return 0, errors.New("scoring: flag " + toks[*i-1] + " missing argument")
	}
	v, err := strconv.Atoi(toks[*i])
	if err != nil {
		return 0, errors.E(err, "scoring: flag "+toks[*i-1])
	}
	return v, nil
}

// pairArg parses an "A,B" argument.  bwa and bowtie2 both allow a single
// value standing for the pair.
func pairArg(toks []string, i *int) (int, int, error) {
	*i++
	if *i >= len(toks) {
		return 0, 0, errors.New("scoring: flag " + toks[*i-1] + " missing argument")
	}
	parts := strings.Split(toks[*i], ",")
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.E(err, "scoring: flag "+toks[*i-1])
	}
	b := a
	if len(parts) > 1 {
		if b, err = strconv.Atoi(parts[1]); err != nil {
			return 0, 0, errors.E(err, "scoring: flag "+toks[*i-1])
		}
	}
	return a, b, nil
}

package align

import (
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Alignment record tags.  AS mirrors the max score into the standard
// alignment-score tag.
var (
	TagMaxPos    = sam.NewTag("mp")
	TagSubPos    = sam.NewTag("sp")
	TagMaxScore  = sam.NewTag("ms")
	TagSubScore  = sam.NewTag("ss")
	TagMaxCount  = sam.NewTag("mc")
	TagSubCount  = sam.NewTag("sc")
	TagStrand    = sam.NewTag("st")
	TagSubStrand = sam.NewTag("su")
	TagGraph     = sam.NewTag("gd")
	TagASMirror  = sam.NewTag("AS")
)

// Simulated-read record tags and read-group tags, written by the simulator
// and passed through by the aligner.
var (
	TagOrigin     = sam.NewTag("ro")
	TagSample     = sam.NewTag("nd")
	TagSubErr     = sam.NewTag("se")
	TagIndelErr   = sam.NewTag("ni")
	TagVarNodes   = sam.NewTag("vd")
	TagVarBases   = sam.NewTag("vb")
	TagRGGraph    = sam.NewTag("gd")
	TagRGRateFlag = sam.NewTag("rt")
	TagRGDefFile  = sam.NewTag("ph")
)

func joinPos(positions []uint32) string {
	var b strings.Builder
	for i, p := range positions {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(p), 10))
	}
	return b.String()
}

func addAux(rec *sam.Record, tag sam.Tag, value interface{}) error {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		return errors.E(err, "align: building aux tag "+tag.String())
	}
	rec.AuxFields = append(rec.AuxFields, aux)
	return nil
}

// Annotate appends the alignment tags for read i of res to rec.
func Annotate(rec *sam.Record, res *Results, i int, label string) error {
	if err := addAux(rec, TagMaxScore, res.MaxScore[i]); err != nil {
		return err
	}
	if err := addAux(rec, TagASMirror, res.MaxScore[i]); err != nil {
		return err
	}
	if res.HasPositions {
		maxPos := res.MaxPositions(i)
		if err := addAux(rec, TagMaxCount, len(maxPos)); err != nil {
			return err
		}
		if len(maxPos) > 0 {
			if err := addAux(rec, TagMaxPos, joinPos(maxPos)); err != nil {
				return err
			}
			if err := addAux(rec, TagStrand, string(res.MaxStrand(i))); err != nil {
				return err
			}
		}
	}
	if res.HasSub {
		if subPos := res.SubPositions(i); len(subPos) > 0 {
			if err := addAux(rec, TagSubScore, res.SubScore[i]); err != nil {
				return err
			}
			if err := addAux(rec, TagSubPos, joinPos(subPos)); err != nil {
				return err
			}
			if err := addAux(rec, TagSubCount, len(subPos)); err != nil {
				return err
			}
			if err := addAux(rec, TagSubStrand, string(res.SubStrand(i))); err != nil {
				return err
			}
		}
	}
	return addAux(rec, TagGraph, label)
}

package sim

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// simQual is the constant base quality claimed by simulated reads.
const simQual = 40

// ToRecord converts a simulated read into a SAM record.  The read's
// linearized origin is resolved to (contig, position) through resolve and
// looked up in refs; provenance travels in the ro/nd/se/ni/vd/vb tags and
// the read group in RG.
func ToRecord(r *Read, name, rgID string,
	resolve func(uint32) (string, uint32, error),
	refs map[string]*sam.Reference) (*sam.Record, error) {

	contig, local, err := resolve(r.Pos)
	if err != nil {
		return nil, err
	}
	ref, ok := refs[contig]
	if !ok {
		return nil, errors.E("sim: contig missing from header: " + contig)
	}

	qual := make([]byte, len(r.Seq))
	for i := range qual {
		qual[i] = simQual
	}
	rec, err := sam.NewRecord(name, ref, nil, int(local)-1, -1, 0, 0xff, nil, []byte(r.Seq), qual, nil)
	if err != nil {
		return nil, errors.E(err, "sim: building record "+name)
	}

	for _, tv := range []struct {
		tag   sam.Tag
		value interface{}
	}{
		{sam.NewTag("RG"), rgID},
		{sam.NewTag("ro"), r.Origin},
		{sam.NewTag("nd"), r.Sample},
		{sam.NewTag("se"), r.SubErr},
		{sam.NewTag("ni"), r.IndelErr},
		{sam.NewTag("vd"), r.VarNodes},
		{sam.NewTag("vb"), r.VarBases},
	} {
		aux, err := sam.NewAux(tv.tag, tv.value)
		if err != nil {
			return nil, errors.E(err, "sim: building aux "+tv.tag.String())
		}
		rec.AuxFields = append(rec.AuxFields, aux)
	}
	return rec, nil
}

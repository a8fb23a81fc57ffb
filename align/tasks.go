package align

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/vargraph/graph"
)

// DefaultChunkSize bounds the number of records per task.
const DefaultChunkSize = 4096

var rgTag = sam.NewTag("RG")

// Task is one unit of work: a slice of input records bound for one target
// graph.  A task either produces all of its output records or none.
type Task struct {
	Label   string
	Records []*sam.Record
}

// ParseTargets parses a read-group-to-graph mapping of the form
// "rg1=labelA;rg2=labelB;*=base".  The "*" entry is a wildcard default for
// unmatched read groups.
func ParseTargets(s string) (map[string]string, error) {
	targets := make(map[string]string)
	s = strings.TrimSpace(s)
	if s == "" {
		return targets, nil
	}
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, errors.E(fmt.Sprintf("align: malformed alignment target %q", tok))
		}
		targets[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return targets, nil
}

// readGroup returns a record's RG tag, or "" when absent.
func readGroup(rec *sam.Record) string {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return ""
	}
	if s, ok := aux.Value().(string); ok {
		return s
	}
	return ""
}

// CreateTasks groups records by target graph label and splits each group
// into tasks of at most chunkSize records, preserving input order within a
// group.  It returns the tasks and the longest read seen.
func CreateTasks(recs []*sam.Record, targets map[string]string, chunkSize int) ([]Task, int) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	byLabel := make(map[string][]*sam.Record)
	var labelOrder []string
	maxReadLen := 0

	for _, rec := range recs {
		if rec.Seq.Length > maxReadLen {
			maxReadLen = rec.Seq.Length
		}
		label, ok := targets[readGroup(rec)]
		if !ok {
			if label, ok = targets["*"]; !ok {
				label = graph.BaseLabel
			}
		}
		if _, seen := byLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		byLabel[label] = append(byLabel[label], rec)
	}

	var tasks []Task
	for _, label := range labelOrder {
		group := byLabel[label]
		for beg := 0; beg < len(group); beg += chunkSize {
			end := beg + chunkSize
			if end > len(group) {
				end = len(group)
			}
			tasks = append(tasks, Task{Label: label, Records: group[beg:end]})
		}
	}
	return tasks, maxReadLen
}

package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
)

// Absent is the total shown for a member flagged absent.
const Absent = "Absent"

// Merge overlays a payload on a record without touching lock or audit fields.
// The absence map is replaced whole when the payload carries one. Member-keyed values are merged per member
// when both sides are member-keyed; anything else is replaced by the incoming value.
func Merge(rec team.Record, p team.Payload) team.Record {
	out := rec.Clone()
	if p.Absent != nil {
		out.Absent = make(map[string]bool, len(p.Absent))
		for k, v := range p.Absent {
			out.Absent[k] = v
		}
	}
	for col, incoming := range p.Scores {
		stored, ok := out.Scores[col]
		if ok && stored.IsComposite() && incoming.IsComposite() {
			for m, v := range incoming.Members {
				stored.Members[m] = v
			}
			out.Scores[col] = stored
			continue
		}
		out.Scores[col] = incoming.Clone()
	}
	return out
}

// MemberTotal sums the member's numeric individual columns, or returns Absent.
// Missing and non-numeric values count as zero.
func MemberTotal(cols []rubric.Column, rec team.Record, member string) string {
	if rec.IsAbsent(member) {
		return Absent
	}
	var sum float64
	for _, col := range cols {
		if !col.Counted() {
			continue
		}
		sum += numeric(rec.MemberValue(col.Name, member))
	}
	return core.FormatNumber(sum)
}

// Totals computes every member's total.
func Totals(cols []rubric.Column, t team.Team, rec team.Record) map[string]string {
	totals := make(map[string]string)
	for _, key := range t.MemberKeys() {
		totals[key] = MemberTotal(cols, rec, key)
	}
	return totals
}

func numeric(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

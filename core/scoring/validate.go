package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
)

func memberField(col, member string) string { return fmt.Sprintf("%s[%s]", col, member) }

func newValidationError(errs []core.FieldError) error {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return core.NewValidationError(nil, errs...)
}

// checkPayload validates the payload keys against the live columns and roster, and each value against its column.
func checkPayload(cols []rubric.Column, t team.Team, p team.Payload) error {
	byName := make(map[string]rubric.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	var errs []core.FieldError
	for m := range p.Absent {
		if !t.HasMember(m) {
			errs = append(errs, core.FieldError{Field: memberField(team.KeyAbsentMembers, m), Error: "unknown member"})
		}
	}

	for name, s := range p.Scores {
		col, ok := byName[name]
		if !ok {
			errs = append(errs, core.FieldError{Field: name, Error: "unknown column"})
			continue
		}
		if col.IsIndividual() != s.IsComposite() {
			msg := "expected a single team value"
			if col.IsIndividual() {
				msg = "expected values keyed by member"
			}
			errs = append(errs, core.FieldError{Field: name, Error: msg})
			continue
		}
		if !col.IsIndividual() {
			if msg := checkValue(col, s.Value); msg != "" {
				errs = append(errs, core.FieldError{Field: name, Error: msg})
			}
			continue
		}
		for m, v := range s.Members {
			if !t.HasMember(m) {
				errs = append(errs, core.FieldError{Field: memberField(name, m), Error: "unknown member"})
				continue
			}
			if msg := checkValue(col, v); msg != "" {
				errs = append(errs, core.FieldError{Field: memberField(name, m), Error: msg})
			}
		}
	}

	if len(errs) > 0 {
		return newValidationError(errs)
	}
	return nil
}

// checkValue returns why v is not acceptable for col, "" if it is. Blank values are accepted here.
func checkValue(col rubric.Column, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	switch col.InputKind {
	case core.InputNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "must be a number"
		}
		if f < 0 {
			return "must be greater than or equal to 0"
		}
		if col.MaxScore != nil && f > *col.MaxScore {
			return "must be less than or equal to " + core.FormatNumber(*col.MaxScore)
		}
	case core.InputOptions:
		if !core.StringInSlice(v, col.Options) {
			return "must be one of: " + strings.Join(col.Options, ", ")
		}
	}
	return ""
}

// checkComplete requires a value in every team cell and in every individual cell of a present member.
// Options columns always have their first option as implicit value.
func checkComplete(cols []rubric.Column, t team.Team, rec team.Record) error {
	var errs []core.FieldError
	members := t.MemberKeys()
	for _, col := range cols {
		if col.HasOptions() {
			continue
		}
		if !col.IsIndividual() {
			if strings.TrimSpace(rec.TeamValue(col.Name)) == "" {
				errs = append(errs, core.FieldError{Field: col.Name, Error: "a value is required for " + t.Name})
			}
			continue
		}
		for _, m := range members {
			if rec.IsAbsent(m) {
				continue
			}
			if strings.TrimSpace(rec.MemberValue(col.Name, m)) == "" {
				errs = append(errs, core.FieldError{Field: memberField(col.Name, m), Error: "a value is required for " + m})
			}
		}
	}
	if len(errs) > 0 {
		return newValidationError(errs)
	}
	return nil
}

package team

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

// Reserved record keys of the legacy data bag.
const (
	KeyScoringLocked = "_scoringLocked"
	KeySubmittedBy   = "_submittedBy"
	KeySubmittedAt   = "_submittedAt"
	KeyAbsentMembers = "_absentMembers"
)

// Score is a cell value: a scalar for team columns or a member-keyed map for individual columns.
type Score struct {
	Value   string
	Members map[string]string
}

func Scalar(v string) Score { return Score{Value: v} }

func Composite(members map[string]string) Score {
	if members == nil {
		members = make(map[string]string)
	}
	return Score{Members: members}
}

func (s Score) IsComposite() bool { return s.Members != nil }

func (s Score) Clone() Score {
	if !s.IsComposite() {
		return s
	}
	members := make(map[string]string, len(s.Members))
	for k, v := range s.Members {
		members[k] = v
	}
	return Score{Members: members}
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.IsComposite() {
		return json.Marshal(s.Members)
	}
	return json.Marshal(s.Value)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	score, err := scoreFromBag(raw)
	if err != nil {
		return err
	}
	*s = score
	return nil
}

// Record is the per-team, per-cycle bag of scores plus lock and audit metadata.
type Record struct {
	Scores      map[string]Score
	Absent      map[string]bool
	Locked      bool
	SubmittedBy string
	SubmittedAt time.Time // UTC, zero when never submitted
}

func NewRecord() Record {
	return Record{
		Scores: make(map[string]Score),
		Absent: make(map[string]bool),
	}
}

func (r Record) Clone() Record {
	c := NewRecord()
	for k, v := range r.Scores {
		c.Scores[k] = v.Clone()
	}
	for k, v := range r.Absent {
		c.Absent[k] = v
	}
	c.Locked = r.Locked
	c.SubmittedBy = r.SubmittedBy
	c.SubmittedAt = r.SubmittedAt
	return c
}

func (r Record) IsAbsent(member string) bool { return r.Absent[member] }

// TeamValue returns the scalar stored under column, "" if none.
func (r Record) TeamValue(column string) string {
	if s, ok := r.Scores[column]; ok && !s.IsComposite() {
		return s.Value
	}
	return ""
}

// MemberValue returns the member's value stored under column, "" if none.
func (r Record) MemberValue(column, member string) string {
	if s, ok := r.Scores[column]; ok && s.IsComposite() {
		return s.Members[member]
	}
	return ""
}

// AbsentMembers returns the sorted keys of the members flagged absent.
func (r Record) AbsentMembers() []string {
	keys := make([]string, 0, len(r.Absent))
	for k, absent := range r.Absent {
		if absent {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Bag renders the record in its legacy wire form: column names plus the reserved "_" keys.
func (r Record) Bag() map[string]interface{} {
	bag := make(map[string]interface{}, len(r.Scores)+4)
	for k, v := range r.Scores {
		if v.IsComposite() {
			members := make(map[string]interface{}, len(v.Members))
			for m, val := range v.Members {
				members[m] = val
			}
			bag[k] = members
		} else {
			bag[k] = v.Value
		}
	}
	absent := make(map[string]interface{}, len(r.Absent))
	for k, v := range r.Absent {
		absent[k] = v
	}
	bag[KeyAbsentMembers] = absent
	bag[KeyScoringLocked] = r.Locked
	if r.SubmittedBy != "" {
		bag[KeySubmittedBy] = r.SubmittedBy
	}
	if !r.SubmittedAt.IsZero() {
		bag[KeySubmittedAt] = r.SubmittedAt.UTC().Format(time.RFC3339Nano)
	}
	return bag
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Bag())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var bag map[string]interface{}
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	rec, err := ParseRecordBag(bag)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// ParseRecordBag reads a record from its legacy wire form.
func ParseRecordBag(bag map[string]interface{}) (Record, error) {
	rec := NewRecord()
	for k, v := range bag {
		switch k {
		case KeyScoringLocked:
			rec.Locked = toBool(v)
		case KeySubmittedBy:
			rec.SubmittedBy = toString(v)
		case KeySubmittedAt:
			t, err := toTime(v)
			if err != nil {
				return Record{}, errors.Wrap(err, "parsing "+KeySubmittedAt)
			}
			rec.SubmittedAt = t
		case KeyAbsentMembers:
			absent, err := toBoolMap(v)
			if err != nil {
				return Record{}, errors.Wrap(err, "parsing "+KeyAbsentMembers)
			}
			if absent != nil {
				rec.Absent = absent
			}
		default:
			score, err := scoreFromBag(v)
			if err != nil {
				return Record{}, errors.Wrapf(err, "parsing %q", k)
			}
			rec.Scores[k] = score
		}
	}
	return rec, nil
}

// Payload is a score submission: new cell values plus an optional replacement absence map.
type Payload struct {
	Scores map[string]Score
	Absent map[string]bool // nil when the submission does not carry absences
}

// ParsePayload reads a submission bag. Reserved keys other than the absence map are ignored.
func ParsePayload(bag map[string]interface{}) (Payload, error) {
	p := Payload{Scores: make(map[string]Score, len(bag))}
	for k, v := range bag {
		switch k {
		case KeyAbsentMembers:
			absent, err := toBoolMap(v)
			if err != nil {
				return Payload{}, core.NewValidationError(nil, core.FieldError{Field: k, Error: "must map members to true or false"})
			}
			p.Absent = absent
		case KeyScoringLocked, KeySubmittedBy, KeySubmittedAt:
		default:
			score, err := scoreFromBag(v)
			if err != nil {
				return Payload{}, core.NewValidationError(nil, core.FieldError{Field: k, Error: err.Error()})
			}
			p.Scores[k] = score
		}
	}
	return p, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var bag map[string]interface{}
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	parsed, err := ParsePayload(bag)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func scoreFromBag(v interface{}) (Score, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		members := make(map[string]string, len(val))
		for m, mv := range val {
			if _, nested := mv.(map[string]interface{}); nested {
				return Score{}, errors.New("values cannot be nested deeper than members")
			}
			members[m] = toString(mv)
		}
		return Composite(members), nil
	case map[string]string:
		members := make(map[string]string, len(val))
		for m, mv := range val {
			members[m] = mv
		}
		return Composite(members), nil
	case []interface{}:
		return Score{}, errors.New("lists are not valid values")
	default:
		return Scalar(toString(val)), nil
	}
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return core.FormatNumber(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	case float64:
		return val != 0
	default:
		return false
	}
}

// toBoolMap returns nil for a null value.
func toBoolMap(v interface{}) (map[string]bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]bool:
		out := make(map[string]bool, len(val))
		for k, b := range val {
			out[k] = b
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]bool, len(val))
		for k, b := range val {
			out[k] = toBool(b)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unexpected %T", v)
	}
}

func toTime(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return val.UTC(), nil
	case string:
		if val == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	case float64: // unix millis
		return time.UnixMilli(int64(val)).UTC(), nil
	default:
		return time.Time{}, errors.Errorf("unexpected %T", v)
	}
}

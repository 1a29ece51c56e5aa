package team

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reviewdesk/core"
)

var rollNoRegex = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)\s*$`)

// Member is one entry of a team roster. Key is the trimmed "Name (RollNo)" token, used as the scoring key.
type Member struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	RollNo string `json:"roll_no"`
}

// ParseMember splits a roster token into its name and trailing "(RollNo)".
func ParseMember(token string) Member {
	key := strings.TrimSpace(token)
	m := Member{Key: key, Name: key}
	if match := rollNoRegex.FindStringSubmatch(key); match != nil {
		m.Name = strings.TrimSpace(match[1])
		m.RollNo = strings.TrimSpace(match[2])
	}
	return m
}

// FormatMember builds a roster token: "Ann (21A1)", or "Ann" without a roll number.
func FormatMember(name, rollNo string) string {
	name = strings.TrimSpace(name)
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" {
		return name
	}
	return name + " (" + rollNo + ")"
}

// ParseMembers splits a comma-joined roster, dropping empty tokens.
func ParseMembers(raw string) []Member {
	tokens := strings.Split(raw, ",")
	members := make([]Member, 0, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		members = append(members, ParseMember(tok))
	}
	return members
}

// JoinMembers renders roster tokens back to their comma-joined form.
func JoinMembers(keys []string) string {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return strings.Join(cleaned, ", ")
}

// Team is a project batch with its roster and the review records of every cycle.
type Team struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	MembersRaw   string            `json:"members"`
	ProjectTitle string            `json:"project_title"`
	Guide        string            `json:"guide"`
	ReviewData   map[string]Record `json:"review_data"` // {cycleID: Record}
}

func (t Team) Members() []Member { return ParseMembers(t.MembersRaw) }

func (t Team) MemberKeys() []string {
	members := t.Members()
	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, m.Key)
	}
	return keys
}

func (t Team) HasMember(key string) bool {
	for _, m := range t.Members() {
		if m.Key == key {
			return true
		}
	}
	return false
}

func (t Team) Section() string { return core.Section(t.Name) }

// Record returns the team's record for the cycle, and whether one exists.
func (t Team) Record(cycleID string) (Record, bool) {
	rec, ok := t.ReviewData[cycleID]
	if !ok {
		return NewRecord(), false
	}
	return rec, true
}

func (t Team) MarshalJSON() ([]byte, error) {
	type alias Team
	data := t.ReviewData
	if data == nil {
		data = map[string]Record{}
	}
	a := alias(t)
	a.ReviewData = data
	return json.Marshal(struct {
		alias
		Section    string   `json:"section"`
		MemberList []Member `json:"member_list"`
	}{
		alias:      a,
		Section:    t.Section(),
		MemberList: t.Members(),
	})
}

// NewTeam contains information needed to create a new Team.
type NewTeam struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Members      string `json:"members" validate:"max=2000"`
	ProjectTitle string `json:"project_title" validate:"max=300"`
	Guide        string `json:"guide" validate:"max=120"`
}

func (nt *NewTeam) clean() {
	nt.Name = core.CleanString(nt.Name)
	nt.Members = JoinMembers(strings.Split(nt.Members, ","))
	nt.ProjectTitle = core.CleanString(nt.ProjectTitle)
	nt.Guide = core.CleanString(nt.Guide)
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.clean()
	return validate.Struct(nt)
}

// UpdateTeam defines what information may be provided to modify an existing Team.
type UpdateTeam struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=100"`
	Members      *string `json:"members" validate:"omitempty,max=2000"`
	ProjectTitle *string `json:"project_title" validate:"omitempty,max=300"`
	Guide        *string `json:"guide" validate:"omitempty,max=120"`
}

func (ut *UpdateTeam) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	if ut.Members != nil {
		members := JoinMembers(strings.Split(*ut.Members, ","))
		ut.Members = &members
	}
	if ut.ProjectTitle != nil {
		title := core.CleanString(*ut.ProjectTitle)
		ut.ProjectTitle = &title
	}
	if ut.Guide != nil {
		guide := core.CleanString(*ut.Guide)
		ut.Guide = &guide
	}
	return validate.Struct(ut)
}

// RenameMember moves a member's key to a new roster token.
type RenameMember struct {
	From string `json:"from" validate:"required,notblank"`
	To   string `json:"to" validate:"required,notblank,excludes=0x2C"`
}

func (rm *RenameMember) Validate(validate *validator.Validate) error {
	rm.From = core.CleanString(rm.From)
	rm.To = core.CleanString(rm.To)
	return validate.Struct(rm)
}

type QueryFilter struct {
	Name    string `query:"team"`    // exact match
	Section string `query:"section"` // leading letter
	Search  string `query:"search"`  // case-insensitive, on name, project title, guide or members
}

func (qf *QueryFilter) Clean() {
	qf.Name = core.CleanString(qf.Name)
	qf.Section = strings.ToUpper(core.CleanString(qf.Section))
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) IsEmpty() bool {
	return qf.Name == "" && qf.Section == "" && qf.Search == ""
}

// Match reports whether the team passes every set filter.
func (qf QueryFilter) Match(t Team) bool {
	if qf.Name != "" && t.Name != qf.Name {
		return false
	}
	if qf.Section != "" && t.Section() != qf.Section {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(t.Name), s) ||
			strings.Contains(strings.ToLower(t.ProjectTitle), s) ||
			strings.Contains(strings.ToLower(t.Guide), s) ||
			strings.Contains(strings.ToLower(t.MembersRaw), s)) {
			return false
		}
	}
	return true
}

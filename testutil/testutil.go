package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
)

// NopLogger discards everything but records the messages logged at warn level and above.
type NopLogger struct {
	mu       sync.Mutex
	warnings []string
}

var _ core.Logger = (*NopLogger)(nil)

func (l *NopLogger) Debug(string, ...interface{}) {}
func (l *NopLogger) Info(string, ...interface{}) {}
func (l *NopLogger) Warn(msg string, _ ...interface{}) { l.record(msg) }
func (l *NopLogger) Error(msg string, _ ...interface{}) { l.record(msg) }
func (l *NopLogger) Fatal(msg string, _ ...interface{}) { l.record(msg) }

func (l *NopLogger) record(msg string) {
	l.mu.Lock()
	l.warnings = append(l.warnings, msg)
	l.mu.Unlock()
}

// Warnings returns the messages logged at warn level and above.
func (l *NopLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateActiveCycle inserts a cycle and makes it the active one.
func CreateActiveCycle(t *testing.T, repo cycle.Repository, name string) cycle.Cycle {
	t.Helper()
	ctx := context.Background()
	c, err := repo.CreateCycle(ctx, cycle.Cycle{Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("createCycle() failed: %v", err)
	}
	c, err = repo.ActivateCycle(ctx, c.ID)
	if err != nil {
		t.Fatalf("activateCycle() failed: %v", err)
	}
	return c
}

// CreateColumn inserts a column into the cycle's rubric. maxScore < 0 means no maximum.
func CreateColumn(
	t *testing.T,
	repo rubric.Repository,
	cycleID, name, scope, kind string,
	maxScore float64,
	options ...string,
) rubric.Column {
	t.Helper()
	col := rubric.Column{
		CycleID:   cycleID,
		Name:      name,
		Scope:     scope,
		InputKind: kind,
		Options:   options,
	}
	if maxScore >= 0 {
		col.MaxScore = &maxScore
	}
	cols, err := repo.QueryColumns(context.Background(), cycleID)
	if err != nil {
		t.Fatalf("queryColumns() failed: %v", err)
	}
	col.Order = len(cols)
	col, err = repo.CreateColumn(context.Background(), col)
	if err != nil {
		t.Fatalf("createColumn() failed: %v", err)
	}
	return col
}

// CreateTeam inserts a team with the given roster tokens.
func CreateTeam(t *testing.T, repo team.Repository, name string, members ...string) team.Team {
	t.Helper()
	teams, err := repo.CreateTeams(context.Background(), team.Team{
		Name:         name,
		MembersRaw:   team.JoinMembers(members),
		ProjectTitle: name + " project",
		Guide:        "Dr. Guide",
		ReviewData:   map[string]team.Record{},
	})
	if err != nil {
		t.Fatalf("createTeam() failed: %v", err)
	}
	return teams[0]
}

// NewValidator returns a validator with every custom tag and english translations registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	rubric.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// FieldErrors lists the json names of the fields failing validation.
func FieldErrors(err error) []string {
	var fields []string
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range verr {
			fields = append(fields, fe.Field())
		}
	case *core.ValidationError:
		for _, fe := range verr.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

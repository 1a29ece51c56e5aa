package report

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type (
	ActiveCycleFinder interface {
		GetActiveCycle(ctx context.Context) (cycle.Cycle, error)
	}

	ColumnLister interface {
		QueryColumns(ctx context.Context, cycleID string) ([]rubric.Column, error)
	}

	TeamLister interface {
		QueryTeams(ctx context.Context, filter team.QueryFilter) ([]team.Team, error)
	}

	SubmissionLister interface {
		QueryRequirements(ctx context.Context) ([]submission.Requirement, error)
		QuerySubmissions(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error)
	}

	// Encoder renders a sheet to a downloadable document.
	Encoder interface {
		Encode(s Sheet) ([]byte, error)
		Extension() string
		ContentType() string
	}

	Service struct {
		cycles      ActiveCycleFinder
		columns     ColumnLister
		teams       TeamLister
		submissions SubmissionLister
		encoder     Encoder
	}

	// File is an exported report.
	File struct {
		Name        string
		Label       string // cycle name, or "all"
		ContentType string
		Data        []byte
	}
)

func NewService(cycles ActiveCycleFinder, columns ColumnLister, teams TeamLister, submissions SubmissionLister, encoder Encoder) *Service {
	return &Service{
		cycles:      cycles,
		columns:     columns,
		teams:       teams,
		submissions: submissions,
		encoder:     encoder,
	}
}

// Preview flattens the report for display.
func (svc *Service) Preview(ctx context.Context, kind string, f Filter) (Sheet, error) {
	s, _, err := svc.build(ctx, kind, f)
	return s, err
}

// Export flattens the report exactly as Preview does and encodes it.
func (svc *Service) Export(ctx context.Context, kind string, f Filter) (File, error) {
	s, label, err := svc.build(ctx, kind, f)
	if err != nil {
		return File{}, err
	}
	data, err := svc.encoder.Encode(s)
	if err != nil {
		return File{}, errors.Wrap(err, "encoding report")
	}
	if kind == "" {
		kind = KindScore
	}
	return File{
		Name:        fmt.Sprintf("%s-report-%s.%s", kind, unsafeFileChars.ReplaceAllString(label, "_"), svc.encoder.Extension()),
		Label:       label,
		ContentType: svc.encoder.ContentType(),
		Data:        data,
	}, nil
}

// build returns the sheet and a label for its file name: the active cycle's name, or "all" for submissions.
func (svc *Service) build(ctx context.Context, kind string, f Filter) (Sheet, string, error) {
	f.Clean()
	var in Input
	label := "all"

	switch kind {
	case KindSubmissions:
		reqs, err := svc.submissions.QueryRequirements(ctx)
		if err != nil {
			return Sheet{}, "", errors.Wrap(err, "querying requirements")
		}
		subs, err := svc.submissions.QuerySubmissions(ctx, submission.QueryFilter{})
		if err != nil {
			return Sheet{}, "", errors.Wrap(err, "querying submissions")
		}
		in.Requirements = reqs
		in.Submissions = subs
	case "", KindScore, KindAttendance:
		c, err := svc.cycles.GetActiveCycle(ctx)
		if err != nil {
			return Sheet{}, "", err
		}
		cols, err := svc.columns.QueryColumns(ctx, c.ID)
		if err != nil {
			return Sheet{}, "", errors.Wrap(err, "querying columns")
		}
		teams, err := svc.teams.QueryTeams(ctx, team.QueryFilter{Name: f.Team, Section: f.Section})
		if err != nil {
			return Sheet{}, "", errors.Wrap(err, "querying teams")
		}
		in.CycleID = c.ID
		in.Columns = cols
		in.Teams = teams
		label = c.Name
	}

	s, err := Build(kind, in, f)
	if err != nil {
		return Sheet{}, "", err
	}
	return s, label, nil
}

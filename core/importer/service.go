package importer

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

type (
	// RowReader reads the first sheet of a spreadsheet as raw rows.
	RowReader interface {
		ReadRows(r io.Reader) ([][]string, error)
	}

	TeamStore interface {
		GetByName(ctx context.Context, name string) (team.Team, error)
		CreateMany(ctx context.Context, nts ...team.NewTeam) ([]team.Team, error)
	}

	Service struct {
		reader RowReader
		teams  TeamStore
		logger core.Logger
	}

	// Result describes an import. On a dry run, Teams are parsed but not saved.
	Result struct {
		HeaderRow int            `json:"header_row"` // 0-based
		DryRun    bool           `json:"dry_run"`
		Teams     []team.NewTeam `json:"teams"`
		Created   []team.Team    `json:"created"`
		Skipped   []string       `json:"skipped"` // names already in use
	}
)

func NewService(reader RowReader, teams TeamStore, logger core.Logger) *Service {
	return &Service{reader: reader, teams: teams, logger: logger}
}

// Import reads a roster spreadsheet and creates its teams. Teams whose name is taken are skipped.
func (svc *Service) Import(ctx context.Context, r io.Reader, dryRun bool) (Result, error) {
	rows, err := svc.reader.ReadRows(r)
	if err != nil {
		return Result{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: "could not read spreadsheet"})
	}
	headerIdx, nts, err := Parse(rows)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		HeaderRow: headerIdx,
		DryRun:    dryRun,
		Teams:     nts,
		Created:   []team.Team{},
		Skipped:   []string{},
	}
	fresh := make([]team.NewTeam, 0, len(nts))
	for _, nt := range nts {
		_, err := svc.teams.GetByName(ctx, nt.Name)
		switch {
		case err == nil:
			res.Skipped = append(res.Skipped, nt.Name)
		case core.IsNotFound(err):
			fresh = append(fresh, nt)
		default:
			return Result{}, errors.Wrap(err, "checking team name")
		}
	}
	if dryRun || len(fresh) == 0 {
		return res, nil
	}

	created, err := svc.teams.CreateMany(ctx, fresh...)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating teams")
	}
	res.Created = created
	svc.logger.Info("imported teams", len(created), "skipped", len(res.Skipped))
	return res, nil
}

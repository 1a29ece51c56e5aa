package memorydb

import (
	"sync"

	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
)

type (
	// DB keeps every table in process memory. Rows are stored by value and copied on the way in and out.
	DB struct {
		user       *userTable
		cycle      *cycleTable
		column     *columnTable
		team       *teamTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	cycleTable struct {
		sync.RWMutex
		table map[string]cycle.Cycle
	}

	columnTable struct {
		sync.RWMutex
		table map[string]rubric.Column
	}

	teamTable struct {
		sync.RWMutex
		table map[string]team.Team
	}

	submissionTable struct {
		sync.RWMutex
		requirements map[string]submission.Requirement
		submissions  map[string]submission.Submission
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]user.User)},
		cycle:  &cycleTable{table: make(map[string]cycle.Cycle)},
		column: &columnTable{table: make(map[string]rubric.Column)},
		team:   &teamTable{table: make(map[string]team.Team)},
		submission: &submissionTable{
			requirements: make(map[string]submission.Requirement),
			submissions:  make(map[string]submission.Submission),
		},
	}
}

func (db *DB) Close() error { return nil }

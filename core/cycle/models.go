package cycle

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reviewdesk/core"
)

// Cycle is a named review round. At most one Cycle is active at a time.
type Cycle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewCycle contains information needed to create a new Cycle.
type NewCycle struct {
	Name        string `json:"name" validate:"required,notblank,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

func (nc *NewCycle) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

package rubric

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reviewdesk/core"
)

// Column is a single rubric field of a review cycle.
type Column struct {
	ID        string   `json:"id"`
	CycleID   string   `json:"cycle_id"`
	Name      string   `json:"name"`
	Scope     string   `json:"scope"`
	InputKind string   `json:"input_kind"`
	Options   []string `json:"options,omitempty"`
	MaxScore  *float64 `json:"max_score,omitempty"`
	Order     int      `json:"order"`
}

func (c Column) IsIndividual() bool { return c.Scope == core.ScopeIndividual }
func (c Column) IsNumber() bool     { return c.InputKind == core.InputNumber }
func (c Column) HasOptions() bool   { return c.InputKind == core.InputOptions }

// Counted reports whether the column contributes to member totals.
func (c Column) Counted() bool { return c.IsIndividual() && c.IsNumber() }

// Default is the implicit value of an empty cell: the first option of an Options column.
func (c Column) Default() string {
	if c.HasOptions() && len(c.Options) > 0 {
		return c.Options[0]
	}
	return ""
}

// DisplayValue returns the value shown for a cell, falling back to the column default.
func (c Column) DisplayValue(raw string) string {
	if raw == "" {
		return c.Default()
	}
	return raw
}

// NewColumn contains information needed to create a new Column.
type NewColumn struct {
	Name      string   `json:"name" validate:"required,notblank,max=100"`
	Scope     string   `json:"scope" validate:"required,scope"`
	InputKind string   `json:"input_kind" validate:"required,inputkind"`
	Options   []string `json:"options" validate:"omitempty,dive,notblank"`
	MaxScore  *float64 `json:"max_score" validate:"omitempty,gte=0"`
	Order     *int     `json:"order" validate:"omitempty,gte=0"`
}

func (nc *NewColumn) clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Scope = core.CleanString(nc.Scope, true /* lower */)
	nc.InputKind = core.CleanString(nc.InputKind, true /* lower */)
	for i, opt := range nc.Options {
		nc.Options[i] = core.CleanString(opt)
	}
	if nc.InputKind == "" {
		nc.InputKind = core.InputText
	}
}

func (nc *NewColumn) Validate(validate *validator.Validate) error {
	nc.clean()
	return validate.Struct(nc)
}

// UpdateColumn defines what information may be provided to modify an existing Column.
type UpdateColumn struct {
	Name          *string  `json:"name"`
	Scope         *string  `json:"scope"`
	InputKind     *string  `json:"input_kind"`
	Options       []string `json:"options"`
	MaxScore      *float64 `json:"max_score"`
	ClearMaxScore bool     `json:"clear_max_score"`
	Order         *int     `json:"order"`
}

// Merge applies the set fields of uc over col.
func (uc UpdateColumn) Merge(col Column) NewColumn {
	order := col.Order
	nc := NewColumn{
		Name:      col.Name,
		Scope:     col.Scope,
		InputKind: col.InputKind,
		Options:   append([]string(nil), col.Options...),
		MaxScore:  col.MaxScore,
		Order:     &order,
	}
	if uc.Name != nil {
		nc.Name = *uc.Name
	}
	if uc.Scope != nil {
		nc.Scope = *uc.Scope
	}
	if uc.InputKind != nil {
		nc.InputKind = *uc.InputKind
	}
	if uc.Options != nil {
		nc.Options = uc.Options
	}
	if uc.MaxScore != nil {
		nc.MaxScore = uc.MaxScore
	}
	if uc.ClearMaxScore {
		nc.MaxScore = nil
	}
	if uc.Order != nil {
		nc.Order = uc.Order
	}
	return nc
}

// ReorderColumns lists column names in their new display order.
type ReorderColumns struct {
	Names []string `json:"names" validate:"required,min=1,dive,notblank"`
}

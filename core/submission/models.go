package submission

import (
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reviewdesk/core"
)

// Requirement is a document teams must hand in.
type Requirement struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	AllowedFormats []string   `json:"allowed_formats"` // lower case extensions without dot; empty allows any
	Deadline       *time.Time `json:"deadline"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Allows reports whether the file name's extension is allowed.
func (r Requirement) Allows(fileName string) bool {
	if len(r.AllowedFormats) == 0 {
		return true
	}
	return core.StringInSlice(Ext(fileName), r.AllowedFormats)
}

// IsPastDeadline reports whether the deadline has passed at t.
func (r Requirement) IsPastDeadline(t time.Time) bool {
	return r.Deadline != nil && t.After(*r.Deadline)
}

// Submission is the file a team handed in for a requirement. One per (requirement, team).
type Submission struct {
	ID            string    `json:"id"`
	RequirementID string    `json:"requirement_id"`
	BatchName     string    `json:"batch_name"`
	FileName      string    `json:"file_name"`
	StorageURL    string    `json:"storage_url"`
	StorageRef    string    `json:"-"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"` // UTC
	IsLocked      bool      `json:"is_locked"`
}

// Ext returns the lower case extension of a file name, without the dot.
func Ext(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
}

func cleanFormats(formats []string) []string {
	cleaned := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.TrimPrefix(core.CleanString(f, true /* lower */), ".")
		if f != "" && !core.StringInSlice(f, cleaned) {
			cleaned = append(cleaned, f)
		}
	}
	return cleaned
}

// NewRequirement contains information needed to create or replace a Requirement.
type NewRequirement struct {
	Title          string     `json:"title" validate:"required,notblank,max=200"`
	Description    string     `json:"description" validate:"max=4000"`
	AllowedFormats []string   `json:"allowed_formats" validate:"omitempty,dive,notblank,max=10"`
	Deadline       *time.Time `json:"deadline"`
}

func (nr *NewRequirement) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.AllowedFormats = cleanFormats(nr.AllowedFormats)
	return validate.Struct(nr)
}

type QueryFilter struct {
	RequirementID string `query:"requirement"`
	BatchName     string `query:"team"`
}

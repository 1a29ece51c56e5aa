package rubric

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reviewdesk/core"
)

var (
	optionsRequiredTag  = "optionsrequired"
	optionsRequiredText = "options are required for an options column"

	maxScoreNumberTag  = "maxscorenumber"
	maxScoreNumberText = "max score is only allowed on number columns"

	optionsOnlyTag  = "optionsonly"
	optionsOnlyText = "options are only allowed on options columns"
)

// InitValidators registers the column validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(columnStructValidation, NewColumn{})
	core.RegisterCustomTranslation(validate, translator, optionsRequiredTag, optionsRequiredText)
	core.RegisterCustomTranslation(validate, translator, maxScoreNumberTag, maxScoreNumberText)
	core.RegisterCustomTranslation(validate, translator, optionsOnlyTag, optionsOnlyText)
}

// columnStructValidation checks the options and max score against the input kind.
func columnStructValidation(sl validator.StructLevel) {
	nc, ok := sl.Current().Interface().(NewColumn)
	if !ok {
		return
	}
	switch nc.InputKind {
	case core.InputOptions:
		if len(nc.Options) == 0 {
			sl.ReportError(nc.Options, "options", "Options", optionsRequiredTag, "")
		}
	default:
		if len(nc.Options) > 0 {
			sl.ReportError(nc.Options, "options", "Options", optionsOnlyTag, "")
		}
	}
	if nc.MaxScore != nil && nc.InputKind != core.InputNumber {
		sl.ReportError(nc.MaxScore, "max_score", "MaxScore", maxScoreNumberTag, "")
	}
}

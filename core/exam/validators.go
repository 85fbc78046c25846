package exam

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	termTag  = "term"
	termText = "term must be 1, 2 or 3"

	examSlotTag  = "exam_slot"
	examSlotText = "must be one of test1, mid_term, end_of_term or other"
)

// RegisterValidators registers the exam validators & their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(termTag, termValidation)
	core.RegisterCustomTranslation(validate, translator, termTag, termText)

	values := make([]string, 0, len(Slots))
	for _, s := range Slots {
		values = append(values, string(s))
	}
	core.RegisterEnumValidation(validate, translator, examSlotTag, examSlotText, values...)
}

// termValidation only allows the three terms of an academic year.
func termValidation(fl validator.FieldLevel) bool {
	term := fl.Field().Int()
	return term >= 1 && term <= 3
}

package enrolment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	// only explicit sources may be requested, Inherited is set by the curriculum
	sourceTypeTag  = "source_type"
	sourceTypeText = "must be one of manual or custom"
)

// RegisterValidators registers the enrolment validators & their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, sourceTypeTag, sourceTypeText, string(Manual), string(Custom))
}

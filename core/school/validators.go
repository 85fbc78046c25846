package school

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	sectionTag  = "section"
	sectionText = "must be one of primary_lower, primary_upper, secondary_lower or secondary_upper"
)

// RegisterValidators registers the school validators & their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	values := make([]string, 0, len(Sections))
	for _, s := range Sections {
		values = append(values, string(s))
	}
	core.RegisterEnumValidation(validate, translator, sectionTag, sectionText, values...)
}

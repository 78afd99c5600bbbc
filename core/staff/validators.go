package staff

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/lojf/nextgen/core"
)

var (
	accessLevelTag  = "accesslevel"
	accessLevelText = "invalid access level"
)

// InitValidators registers staff-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(accessLevelTag, accessLevelValidation)
	core.RegisterCustomTranslation(validate, translator, accessLevelTag, accessLevelText)
}

// accessLevelValidation checks that the provided level is one of the defined Levels.
func accessLevelValidation(fl validator.FieldLevel) bool {
	return IsValidLevel(int(fl.Field().Int()))
}

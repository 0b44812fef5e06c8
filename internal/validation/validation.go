// Package validation validates input structs and reports failures as
// apperr.ValidationError with per-field messages keyed by JSON name.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/pavelanni/quizdeck/internal/apperr"
)

var (
	requiredTag  = "required"
	requiredText = "this field is required"

	initOnce   sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func setup() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterTranslation(
		requiredTag, translator,
		func(t ut.Translator) error { return t.Add(requiredTag, requiredText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(requiredTag, fe.Field())
			return s
		},
	)
}

// Struct validates s using its `validate` tags.
func Struct(s any) error {
	initOnce.Do(setup)
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.NewValidationError(err.Error())
	}
	flds := make([]apperr.FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, apperr.FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
		names = append(names, fe.Field())
	}
	return apperr.NewValidationError("invalid fields: "+strings.Join(names, ", "), flds...)
}

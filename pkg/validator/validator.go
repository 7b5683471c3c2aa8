// Package validator wraps go-playground/validator with JSON field naming,
// translated messages and the request-level enum rules shared by the
// service handlers.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator validates structs and translates failures into field errors.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var (
	global *Validator
	once   sync.Once
)

// Global returns the shared validator, building it on first use.
func Global() *Validator {
	once.Do(func() {
		global = New()
	})
	return global
}

// New creates a validator that reports field names from JSON tags.
func New() *Validator {
	v := &Validator{validate: validator.New()}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	v.trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.trans)

	return v
}

// Validate validates a struct against its binding tags.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return v.Translate(err)
}

// Translate converts a validator error into field-level messages. Other
// errors pass through unchanged.
func (v *Validator) Translate(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	result := &ValidationErrors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(v.trans),
		})
	}
	return result
}

// Translate converts a validator error using the shared validator.
func Translate(err error) error {
	return Global().Translate(err)
}

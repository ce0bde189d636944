// Package validation checks configuration structs and pipeline input files
// before any numerical work starts.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "maizemap/internal/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared struct validator. Field names in messages
// use the yaml tag so they match the configuration file.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates v against its `validate` tags. Failures come back as one
// Validation error listing every offending field.
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("invalid value: %v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
		fields = append(fields, fe.Namespace())
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; ")).With("fields", fields)
}

func formatFieldError(err validator.FieldError) string {
	field := err.Namespace()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "len":
		return fmt.Sprintf("%s must have length %s", field, param)
	case "dive":
		return fmt.Sprintf("%s has an invalid element", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

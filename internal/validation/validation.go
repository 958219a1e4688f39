// Package validation turns go-playground/validator results into
// common.ErrorInvalidInput errors whose message names the offending field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the process-wide validator. Field names in errors come
// from json tags so messages match what the caller sent.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	return translate(Validator().Struct(v), "")
}

// Var validates a single value against tag, reporting failures under field.
func Var(field string, v any, tag string) error {
	return translate(Validator().Var(v, tag), field)
}

func translate(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.WrapError(common.ErrorInvalidInput, "invalid input", err)
	}

	fe := verrs[0]
	name := field
	if name == "" {
		name = fe.Field()
	}
	return common.NewError(common.ErrorInvalidInput, describe(name, fe))
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing required field: %s", field)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must not be empty", field)
		}
		return fmt.Sprintf("%s is out of range (%s %s)", field, fe.Tag(), fe.Param())
	case "eq":
		return fmt.Sprintf("%s must be %s", field, fe.Param())
	default:
		return fmt.Sprintf("invalid field: %s", field)
	}
}

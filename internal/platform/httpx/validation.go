package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate runs v against input and converts failures into a ValidationError
// with one human readable message per failed rule.
func Validate(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		field := fieldKey(fe.Field())
		out.Add(field, ruleMessage(field, fe))
	}
	return out
}

// fieldKey turns roles[0] into roles.0.
func fieldKey(name string) string {
	name = strings.ReplaceAll(name, "[", ".")
	return strings.ReplaceAll(name, "]", "")
}

func ruleMessage(field string, fe validator.FieldError) string {
	attr := strings.ReplaceAll(field, "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", attr)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", attr)
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("The %s field must be at least %s characters.", attr, fe.Param())
		case reflect.Slice, reflect.Array:
			if fe.Param() == "1" {
				return fmt.Sprintf("The %s field is required.", attr)
			}
			return fmt.Sprintf("The %s field must have at least %s items.", attr, fe.Param())
		default:
			return fmt.Sprintf("The %s field must be at least %s.", attr, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", attr, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", attr, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", attr, fe.Param())
	case "isdefault":
		return fmt.Sprintf("The %s field is prohibited.", attr)
	default:
		return fmt.Sprintf("The %s field is invalid.", attr)
	}
}

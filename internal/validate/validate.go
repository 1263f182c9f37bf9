// Package validate wraps go-playground/validator with the field naming and
// custom rules shared by the registries and the identity store.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/gatekeeper/store"
)

// ErrInvalid is matched by every *Error via errors.Is.
var ErrInvalid = errors.New("invalid input")

// Validator validates input structs. It is safe for concurrent use.
type Validator struct {
	validator *validator.Validate
}

// New creates a validator that reports fields by their json names and knows
// the "action" rule for permission verbs.
func New() *Validator {
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
	_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		return store.Action(fl.Field().String()).Valid()
	})

	return &Validator{validator: v}
}

// Struct validates s and returns an *Error describing every failing field.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return newError(verrs)
}

// Error maps field names to human readable problems.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

func newError(errs validator.ValidationErrors) *Error {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		case "action":
			fields[field] = fmt.Sprintf("%s must be one of create, read, update, delete, manage", field)
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return &Error{Fields: fields}
}

// Package validation checks operation inputs before they reach the store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"typed-todo/internal/models"
)

// Error lists every rule an input broke.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the todo input rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterStructValidation(updateRules, models.UpdateTodoInput{})
	return &Validator{v: v}
}

// Create validates a create input.
func (val *Validator) Create(in models.CreateTodoInput) error {
	return val.check(in)
}

// Update validates a partial update. Title and completed may be omitted but
// not nulled; description may be either.
func (val *Validator) Update(in models.UpdateTodoInput) error {
	return val.check(in)
}

func (val *Validator) check(in any) error {
	err := val.v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Problems: []string{err.Error()}}
	}
	out := &Error{Problems: make([]string, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Problems = append(out.Problems, describe(fe))
	}
	return out
}

func updateRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(models.UpdateTodoInput)
	if in.Title.IsNull() {
		sl.ReportError(in.Title, "title", "Title", "notnull", "")
	} else if title, ok := in.Title.Get(); ok && title == "" {
		sl.ReportError(in.Title, "title", "Title", "required", "")
	}
	if in.Completed.IsNull() {
		sl.ReportError(in.Completed, "completed", "Completed", "notnull", "")
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be a non-empty string", fe.Field())
	case "notnull":
		return fmt.Sprintf("%s must not be null", fe.Field())
	default:
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

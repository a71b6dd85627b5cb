package relay

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks structs against one struct-tag rule set and reports the
// first violation as a categorized error.
type Validator struct {
	validate *validator.Validate
	category Category
}

// NewValidator builds a validator reading rules from tagName. Violations are
// reported under category; field names follow json tags.
func NewValidator(tagName string, category Category) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(tagName)
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("notblank", notBlank)

	return &Validator{validate: v, category: category}
}

// Struct validates s.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Wrap(v.category, err, "")
	}

	first := fieldErrs[0]
	if v.category == CategoryMissingParameter {
		return MissingParameter(fieldPath(first))
	}

	return &Error{Category: v.category, Detail: describe(first), Err: err}
}

func jsonFieldName(field reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name := strings.SplitN(field.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}

	return field.Name
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}

	return strings.TrimSpace(field.String()) != ""
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	namespace := fe.Namespace()
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return fe.Field()
}

func describe(fe validator.FieldError) string {
	path := fieldPath(fe)

	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s must not be empty", path)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", path, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", path, fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", path)
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}

package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/microwire-quality/internal/model"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors are the json names.
type Validator struct {
	v *validator.Validate
}

func NewValidator() (*Validator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", phoneValidation); err != nil {
		return nil, fmt.Errorf("failed to register phone validator: %w", err)
	}
	if err := v.RegisterValidation("dimension", dimensionValidation); err != nil {
		return nil, fmt.Errorf("failed to register dimension validator: %w", err)
	}
	return &Validator{v: v}, nil
}

func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = describe(fe)
			}
			return &ValidationError{Fields: fields}
		}
		return err
	}
	return nil
}

// ValidationError lists the failing fields and a short reason for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "phone":
		return "must be a valid phone number"
	case "dimension":
		return "must be one of MANUFACTURER, RESPONSIBLE_PERSON, PROCESS_TYPE, PRODUCTION_MACHINE"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min", "gte", "gt":
		return "must be at least " + fe.Param()
	case "max", "lte", "lt":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func dimensionValidation(fl validator.FieldLevel) bool {
	_, ok := model.ParseDimension(fl.Field().String())
	return ok
}

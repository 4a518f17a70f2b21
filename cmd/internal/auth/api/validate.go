package authapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks a decoded DTO and returns a client-safe message for
// the first failing field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid request: %w", err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("field '%s' is required", fe.Field())
	case "min":
		return fmt.Errorf("field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("field '%s' must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("field '%s' failed '%s' validation", fe.Field(), fe.Tag())
	}
}

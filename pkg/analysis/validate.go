package analysis

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/go-playground/validator/v10"
)

// requestValidator is shared; validator.Validate caches struct metadata and
// is safe for concurrent use.
var requestValidator = func() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		return market.KnownRegion(fl.Field().String())
	})

	return v
}()

// Validate checks the request and returns an *Error with per-field messages.
func (r Request) Validate() error {
	err := requestValidator.Struct(r)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &Error{Reason: ReasonInvalidRequest, Message: "validation failed", Err: err}
	}

	fields := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fields[fieldPath(e)] = friendlyMessage(e)
	}
	return &Error{Reason: ReasonInvalidRequest, Message: "validation failed", Fields: fields}
}

// fieldPath drops the struct name from the namespace: "criteria.region".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "region":
		return "must be one of: " + strings.Join(market.Regions(), ", ")
	default:
		return "is invalid"
	}
}

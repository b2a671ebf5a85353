package apperror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	errRequired       = errors.New("is required")
	errMustBePositive = errors.New("must be a positive whole number")
	errOutOfRange     = errors.New("is outside the accepted range")
	errUnknownOption  = errors.New("is not one of the accepted values")
	errTooLong        = errors.New("is too long")
	errTooShort       = errors.New("is too short")
	errBadEmail       = errors.New("must be a valid email address")
)

// tagErrors maps a validator tag to the message shown for it.
// Keys are tag names; the field name is prefixed when building the message.
var tagErrors = map[string]error{
	"required": errRequired,
	"gte":      errMustBePositive,
	"gt":       errMustBePositive,
	"lte":      errOutOfRange,
	"oneof":    errUnknownOption,
	"max":      errTooLong,
	"min":      errTooShort,
	"email":    errBadEmail,
}

// FromValidation converts the first validator failure in err into a
// ValidationFailed error naming the offending field. The field name is the
// struct field's JSON name when the validator was configured with a tag name
// function (see model.NewValidator), otherwise the Go field name.
//
// Errors that are not validator.ValidationErrors are returned unchanged.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	e := verrs[0]
	field := e.Field()
	msg := fmt.Sprintf("%s is invalid", field)
	if v, ok := tagErrors[e.Tag()]; ok {
		msg = fmt.Sprintf("%s %s", field, v.Error())
	}
	if e.Tag() == "oneof" {
		msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	}

	return ValidationFailed(field, msg)
}

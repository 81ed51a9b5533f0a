package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// requestError is a rejected request body; customErrorHandler renders it
// as a 400 with details.
type requestError struct {
	msg     string
	details string
}

func (e *requestError) Error() string { return e.msg + ": " + e.details }

// bindAndValidate parses the JSON body into dst and runs struct validation.
func bindAndValidate(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return &requestError{msg: "invalid request body", details: err.Error()}
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &requestError{msg: "validation failed", details: err.Error()}
		}
		return &requestError{msg: "validation failed", details: describe(verrs)}
	}
	return nil
}

func describe(errs validator.ValidationErrors) string {
	var details strings.Builder
	for _, err := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch err.Tag() {
		case "required":
			fmt.Fprintf(&details, "%s is required", err.Field())
		case "min":
			if err.Kind() == reflect.String {
				fmt.Fprintf(&details, "%s must be at least %s characters", err.Field(), err.Param())
			} else {
				fmt.Fprintf(&details, "%s must be at least %s", err.Field(), err.Param())
			}
		case "max":
			if err.Kind() == reflect.String {
				fmt.Fprintf(&details, "%s must be at most %s characters", err.Field(), err.Param())
			} else {
				fmt.Fprintf(&details, "%s must be at most %s", err.Field(), err.Param())
			}
		default:
			fmt.Fprintf(&details, "%s failed %s validation", err.Field(), err.Tag())
		}
	}
	return details.String()
}

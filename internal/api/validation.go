package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidation makes validation errors report JSON field names
// instead of Go struct field names.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// ValidationMessage turns a binding error into a message for the client.
// Only the first failing field is reported.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", field)
	case "email":
		return fmt.Sprintf("Field '%s' must be a valid email address", field)
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("Field '%s' must be exactly %s characters", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("Field '%s' must contain only digits", field)
	default:
		return fmt.Sprintf("Field '%s' is invalid", field)
	}
}

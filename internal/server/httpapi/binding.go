package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// validate is shared by all handlers; it reports fields by their json names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// bindJSON decodes the body into obj and validates it. An empty body
// decodes as an empty object.
func bindJSON(c *gin.Context, obj any) error {
	raw, err := c.GetRawData()
	if err != nil {
		return apierr.ParseError()
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := binding.JSON.BindBody(raw, obj); err != nil {
			return apierr.ParseError()
		}
	}

	if err := validate.Struct(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return err
	}
	return nil
}

func fieldErrors(verrs validator.ValidationErrors) *apierr.ValidationError {
	out := apierr.Validation()
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}

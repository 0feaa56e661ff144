package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Report binding failures under the JSON field names clients send.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
			}
			return name
		})
	}
}

// bindJSON decodes the body into req. On failure it writes 400 for a body that
// is not JSON, 422 with per-field messages for one that fails validation, and
// returns false.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMalformedJSON})
		return false
	}

	out := domain.ValidationErrors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": out})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "min":
		return "is too short (minimum is " + fe.Param() + " characters)"
	case "max":
		return "is too long (maximum is " + fe.Param() + " characters)"
	case "eqfield":
		return "doesn't match " + strings.ToLower(fe.Param())
	default:
		return "is invalid"
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeAndValidate decodes the request body into dst and runs struct-tag
// validation. On failure it writes the appropriate error response itself and
// returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, errCodeValidation, formatValidationError(err))
		return false
	}
	return true
}

// formatValidationError renders the first failing field as "field: reason",
// with the field name in snake_case and the reason chosen by the failing tag.
func formatValidationError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "validation failed"
	}
	e := verrs[0]
	return toSnakeCase(e.Field()) + ": " + validationMessage(e)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "min":
		return "value is too short"
	case "max":
		return "value is too long"
	case "uuid":
		return "invalid uuid format"
	case "oneof":
		return "value must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}

func toSnakeCase(s string) string {
	var out strings.Builder
	for i, r := range s {
		if i > 0 && 'A' <= r && r <= 'Z' {
			out.WriteByte('_')
		}
		out.WriteRune(r)
	}
	return strings.ToLower(out.String())
}

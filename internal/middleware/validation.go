package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "massupload/internal/errors"
)

var uploadTypeName = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// Validator validates request structs and query parameters and words the
// failures as API validation errors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a validator that reports fields by their json name.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterValidation("upload_type", func(fl validator.FieldLevel) bool {
		return uploadTypeName.MatchString(fl.Field().String())
	})
	v.RegisterValidation("filename", isValidFilename)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate: v,
		logger:   logger.With(slog.String("component", "validator")),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// QueryInt reads an integer query parameter within [min,max]. A missing
// parameter yields def.
func (v *Validator) QueryInt(r *http.Request, param string, min, max, def int) (int, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.NewValidationErrors([]apierrors.ValidationError{{Field: param, Message: param + " must be a valid integer"}})
	}
	if n < min || n > max {
		return 0, apierrors.NewValidationErrors([]apierrors.ValidationError{{Field: param, Message: fmt.Sprintf("%s must be between %d and %d", param, min, max)}})
	}
	return n, nil
}

// QueryBool reads a boolean query parameter. A missing parameter is false.
func (v *Validator) QueryBool(r *http.Request, param string) (bool, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierrors.NewValidationErrors([]apierrors.ValidationError{{Field: param, Message: param + " must be true or false"}})
	}
	return b, nil
}

func formatValidationError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "printascii", "excludesall":
		return fmt.Sprintf("%s contains characters that are not allowed", field)
	case "upload_type":
		return fmt.Sprintf("%s must be an upper case upload type name", field)
	case "filename":
		return fmt.Sprintf("%s must be a plain file name", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func isValidFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > 255 {
		return false
	}
	return !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

package moon

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/moonctl/internal/apierror"
)

// MaxNameLength is the longest collection or field name the server accepts.
const MaxNameLength = 64

var (
	snakeCasePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	camelBoundary  = regexp.MustCompile(`([a-z])([A-Z])`)
	separatorRun   = regexp.MustCompile(`[\s-]+`)
	invalidChars   = regexp.MustCompile(`(?i)[^a-z0-9_]`)
	underscoreRun  = regexp.MustCompile(`_+`)
	edgeUnderscore = regexp.MustCompile(`^_|_$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// inputValidator returns the shared validator with the moon_name tag registered.
func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("moon_name", func(fl validator.FieldLevel) bool {
			return IsValidName(fl.Field().String())
		})
	})
	return validate
}

// validateInput checks v against its struct tags and converts the first
// violation into an INVALID_REQUEST error.
func validateInput(v any) error {
	err := inputValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apierror.Invalid("%s failed %q validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return apierror.Invalid("%v", err)
}

// IsValidName reports whether name is lowercase snake_case and short enough.
func IsValidName(name string) bool {
	return len(name) <= MaxNameLength && snakeCasePattern.MatchString(name)
}

// ValidateName checks a collection or field name. kind is used in the
// message, e.g. "collection" or "field".
func ValidateName(name, kind string) error {
	label := capitalize(kind)

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return apierror.Invalid("%s name is required", label)
	}
	if !snakeCasePattern.MatchString(trimmed) {
		return apierror.Invalid("%s name must be lowercase snake_case (e.g., \"my_%s\")", label, kind)
	}
	if len(trimmed) > MaxNameLength {
		return apierror.Invalid("%s name must be %d characters or less", label, MaxNameLength)
	}
	return nil
}

// ToSnakeCase normalizes free-form text into a lowercase snake_case name.
// "Product Name" and "productName" both become "product_name".
func ToSnakeCase(s string) string {
	s = strings.TrimSpace(s)
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = separatorRun.ReplaceAllString(s, "_")
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = underscoreRun.ReplaceAllString(s, "_")
	return edgeUnderscore.ReplaceAllString(s, "")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

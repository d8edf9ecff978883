package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// Error reports a request field that failed validation. Field is the JSON name.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCreate checks a create request: required fields, ranges of the
// optional measurements, and date_to >= date_from.
func ValidateCreate(in *models.RecordCreate) error {
	if err := structErr(validate.Struct(in)); err != nil {
		return err
	}
	if in.DateTo.Before(in.DateFrom.Time) {
		return &Error{Field: "date_to", Message: "date_to must be greater than or equal to date_from"}
	}
	return nil
}

// ValidateUpdate checks only the fields present in a partial update.
// Date ordering is not re-checked here: when only one of date_from/date_to is
// supplied the stored counterpart is not consulted.
func ValidateUpdate(in *models.RecordUpdate) error {
	return structErr(validate.Struct(in))
}

// ValidateLocation trims the input and enforces non-empty and maxLen (in runes, 0 = unbounded).
func ValidateLocation(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	return s, nil
}

// structErr converts the first validator failure into an *Error.
func structErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Message: err.Error()}
	}
	fe := verrs[0]
	return &Error{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		return "must not be empty"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Pagination bounds for list requests.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// ValidatePage checks skip >= 0 and limit in [1, MaxPageLimit].
func ValidatePage(skip, limit int) error {
	if skip < 0 {
		return &Error{Field: "skip", Message: "must be greater than or equal to 0"}
	}
	if limit < 1 || limit > MaxPageLimit {
		return &Error{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxPageLimit)}
	}
	return nil
}

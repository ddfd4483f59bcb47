package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// FieldError is one field-scoped schema violation, rendered inline next to
// the offending form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the aggregate local validation failure for a stage.
// The stage does not advance while it is non-empty.
type ValidationErrors struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationErrors) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// ErrTermsNotAccepted is the dedicated order-review failure: a false value
// is well-typed but semantically invalid.
var ErrTermsNotAccepted = errors.New("you must accept the terms and conditions to place the order")

var (
	phonePattern  = regexp.MustCompile(`^[0-9+\-()\s]+$`)
	postalPattern = regexp.MustCompile(`^[A-Za-z0-9 \-]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v
}

// ValidateBilling checks the stage-one form against the billing schema.
// Struct tags cover presence and length bounds; the phone and postal code
// character classes are refined here because their messages must be
// field-scoped and human-readable.
func ValidateBilling(details domain.BillingDetails) error {
	var fields []FieldError

	if err := validate.Struct(details); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return err
		}
		for _, fe := range vErrs {
			fields = append(fields, FieldError{
				Field:   billingFieldName(fe.StructField()),
				Message: billingMessage(fe),
			})
		}
	}

	if details.Phone != "" && !phonePattern.MatchString(details.Phone) {
		fields = append(fields, FieldError{
			Field:   "phone",
			Message: "phone may only contain digits, spaces, and + - ( ) characters",
		})
	}
	if details.PostalCode != "" && !postalPattern.MatchString(details.PostalCode) {
		fields = append(fields, FieldError{
			Field:   "postal_code",
			Message: "postal code may only contain letters, digits, spaces and hyphens",
		})
	}

	if len(fields) > 0 {
		return &ValidationErrors{Fields: fields}
	}
	return nil
}

// ValidateReview checks the stage-two form. TermsAccepted must be true.
func ValidateReview(review domain.OrderReview) error {
	if !review.TermsAccepted {
		return &ValidationErrors{Fields: []FieldError{{
			Field:   "terms_accepted",
			Message: ErrTermsNotAccepted.Error(),
		}}}
	}
	return nil
}

// billingFieldName maps struct field names to their wire names for inline
// display.
func billingFieldName(structField string) string {
	switch structField {
	case "Name":
		return "name"
	case "Email":
		return "email"
	case "Phone":
		return "phone"
	case "Organization":
		return "organization"
	case "Country":
		return "country"
	case "Address":
		return "address"
	case "City":
		return "city"
	case "PostalCode":
		return "postal_code"
	case "Notes":
		return "notes"
	default:
		return strings.ToLower(structField)
	}
}

func billingMessage(fe validator.FieldError) string {
	field := billingFieldName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

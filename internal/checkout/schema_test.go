package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

func validBilling() domain.BillingDetails {
	return domain.BillingDetails{
		Name:    "Jane Editor",
		Email:   "jane@journal.example",
		Phone:   "+964 (770) 123-4567",
		Country: "IQ",
		Address: "12 University Street",
		City:    "Baghdad",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErrs *ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	out := make(map[string]string)
	for _, fe := range vErrs.Fields {
		out[fe.Field] = fe.Message
	}
	return out
}

func TestValidateBilling(t *testing.T) {
	t.Run("accepts valid record with optional fields omitted", func(t *testing.T) {
		assert.NoError(t, ValidateBilling(validBilling()))
	})

	t.Run("accepts valid record with all optional fields", func(t *testing.T) {
		details := validBilling()
		details.Organization = "Journal of Examples"
		details.PostalCode = "AB-10 001"
		details.Notes = "Invoice to the organization, please."
		assert.NoError(t, ValidateBilling(details))
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		details := validBilling()
		details.Email = "not-an-email"
		fields := fieldErrors(t, ValidateBilling(details))
		assert.Contains(t, fields, "email")
	})

	t.Run("rejects alphabetic phone", func(t *testing.T) {
		details := validBilling()
		details.Phone = "abc"
		fields := fieldErrors(t, ValidateBilling(details))
		assert.Contains(t, fields, "phone")
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		fields := fieldErrors(t, ValidateBilling(domain.BillingDetails{}))
		for _, required := range []string{"name", "email", "phone", "country", "address", "city"} {
			assert.Contains(t, fields, required)
		}
		assert.NotContains(t, fields, "organization")
		assert.NotContains(t, fields, "postal_code")
		assert.NotContains(t, fields, "notes")
	})

	t.Run("rejects over-length fields", func(t *testing.T) {
		long := make([]byte, 256)
		for i := range long {
			long[i] = 'x'
		}
		details := validBilling()
		details.Name = string(long)
		fields := fieldErrors(t, ValidateBilling(details))
		assert.Contains(t, fields, "name")
	})

	t.Run("rejects postal code with forbidden characters", func(t *testing.T) {
		details := validBilling()
		details.PostalCode = "10_001"
		fields := fieldErrors(t, ValidateBilling(details))
		assert.Contains(t, fields, "postal_code")
	})

	t.Run("rejects phone longer than 20 chars", func(t *testing.T) {
		details := validBilling()
		details.Phone = "+964 770 123 4567 890 123"
		fields := fieldErrors(t, ValidateBilling(details))
		assert.Contains(t, fields, "phone")
	})
}

func TestValidateReview(t *testing.T) {
	t.Run("accepts accepted terms", func(t *testing.T) {
		assert.NoError(t, ValidateReview(domain.OrderReview{TermsAccepted: true}))
	})

	t.Run("rejects unaccepted terms with dedicated message", func(t *testing.T) {
		fields := fieldErrors(t, ValidateReview(domain.OrderReview{TermsAccepted: false}))
		require.Contains(t, fields, "terms_accepted")
		assert.Equal(t, ErrTermsNotAccepted.Error(), fields["terms_accepted"])
	})
}

package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Run("implements error interface", func(t *testing.T) {
		err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
		assert.Equal(t, "bad input", err.Error())
	})

	t.Run("category is serialized when set", func(t *testing.T) {
		err := SyncError("add", errors.New("connection refused"))
		data, marshalErr := json.Marshal(err)
		require.NoError(t, marshalErr)
		assert.Contains(t, string(data), `"category":"sync"`)
	})

	t.Run("category omitted when empty", func(t *testing.T) {
		err := New(http.StatusNotFound, "NOT_FOUND", "missing")
		data, marshalErr := json.Marshal(err)
		require.NoError(t, marshalErr)
		assert.NotContains(t, string(data), "category")
	})
}

func TestTaxonomy(t *testing.T) {
	t.Run("validation errors are field scoped", func(t *testing.T) {
		err := ErrValidation("email", "must be a valid email address")
		assert.Equal(t, CategoryValidation, err.Category)
		detail, ok := err.Details.(ValidationError)
		require.True(t, ok)
		assert.Equal(t, "email", detail.Field)
	})

	t.Run("submission errors carry stage and server fields", func(t *testing.T) {
		fields := []ValidationError{{Field: "phone", Message: "too long"}}
		err := SubmissionError("billing", fields, errors.New("422"))
		assert.Equal(t, CategorySubmission, err.Category)
		details, ok := err.Details.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "billing", details["stage"])
		assert.Equal(t, fields, details["fields"])
	})

	t.Run("sync errors name the failed operation", func(t *testing.T) {
		err := SyncError("remove", errors.New("timeout"))
		assert.Equal(t, CategorySync, err.Category)
		assert.Contains(t, err.Message, "remove")
	})

	t.Run("capability errors are service unavailable", func(t *testing.T) {
		err := CapabilityError("Clipboard", errors.New("denied"))
		assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
		assert.Equal(t, CategoryCapability, err.Category)
	})

	t.Run("verification errors are distinct", func(t *testing.T) {
		assert.NotEqual(t, ErrVerifyNotInitialized.ErrorCode, ErrVerifyFailed.ErrorCode)
	})

	t.Run("scope mismatch fails loudly", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity, ErrScopeMismatch.StatusCode)
		assert.Equal(t, CategoryScopeMismatch, ErrScopeMismatch.Category)
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrSubmissionInFlight)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "SUBMISSION_IN_FLIGHT", resp.Error.ErrorCode)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "name", Message: "required"},
		{Field: "email", Message: "must be a valid email address"},
	})
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 2)
}

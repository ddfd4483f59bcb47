package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPricingTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewPricingHandler(logger)
	return httptest.NewServer(handler.Routes())
}

func TestPricingHandler_GetOptions(t *testing.T) {
	srv := newPricingTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/options")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body OptionsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Len(t, body.LicenseTypes, 5)
	assert.Len(t, body.Durations, 3)
}

func TestPricingHandler_Quote(t *testing.T) {
	tests := []struct {
		name           string
		payload        QuoteRequest
		expectedStatus int
		expectedBody   func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "two year license doubles the base price",
			payload: QuoteRequest{
				BasePrice:   100000,
				Scope:       "journal",
				LicenseType: "single-journal",
				Duration:    "2-years",
				Quantity:    3,
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(200000), body["price"])
				assert.Equal(t, float64(600000), body["total"])
			},
		},
		{
			name: "lifetime license multiplies base by three and a half",
			payload: QuoteRequest{
				BasePrice:   100000,
				Scope:       "installation",
				LicenseType: "single-site",
				Duration:    "lifetime",
				Quantity:    1,
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(350000), body["price"])
			},
		},
		{
			name: "scope mismatch fails loudly instead of pricing",
			payload: QuoteRequest{
				BasePrice:   100000,
				Scope:       "journal",
				LicenseType: "single-site",
				Duration:    "1-year",
				Quantity:    1,
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "LICENSE_SCOPE_MISMATCH", body["error_code"])
			},
		},
		{
			name: "unlimited license prices against either scope",
			payload: QuoteRequest{
				BasePrice:   100000,
				Scope:       "journal",
				LicenseType: "unlimited",
				Duration:    "1-year",
				Quantity:    1,
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(100000), body["price"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPricingTestServer(t)
			defer srv.Close()

			payload, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			res, err := http.Post(srv.URL+"/quote", "application/json", bytes.NewReader(payload))
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tt.expectedStatus, res.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			if tt.expectedBody != nil {
				tt.expectedBody(t, body)
			}
		})
	}
}

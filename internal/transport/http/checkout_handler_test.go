package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstore/commerce-client/internal/checkout"
	"github.com/okstore/commerce-client/internal/verify"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

type fakeSubmitter struct {
	billingErr error
	orderErr   error
	paymentURL string
}

func (f *fakeSubmitter) SubmitBilling(context.Context, domain.BillingDetails, string) error {
	return f.billingErr
}

func (f *fakeSubmitter) SubmitOrder(context.Context, domain.OrderReview, string) (string, error) {
	if f.orderErr != nil {
		return "", f.orderErr
	}
	return f.paymentURL, nil
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) Token(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok-123", nil
}

func newCheckoutTestServer(t *testing.T, submitter checkout.Submitter, tokens checkout.TokenProvider) (*httptest.Server, *checkout.Session) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := checkout.NewSession(submitter, tokens, logger)
	handler := NewCheckoutHandler(session, logger)
	return httptest.NewServer(handler.Routes()), session
}

func validBillingPayload() map[string]interface{} {
	return map[string]interface{}{
		"name":    "Dana Osei",
		"email":   "dana@example.org",
		"phone":   "+964 770 000 0000",
		"country": "IQ",
		"address": "12 Publisher Row",
		"city":    "Baghdad",
	}
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return res
}

func TestCheckoutHandler_GetState_StartsAtBilling(t *testing.T) {
	srv, _ := newCheckoutTestServer(t, &fakeSubmitter{}, &fakeTokens{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()

	var body SessionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, checkout.StageBilling, body.Stage)
	assert.Nil(t, body.Billing)
}

func TestCheckoutHandler_SubmitBilling(t *testing.T) {
	tests := []struct {
		name           string
		payload        map[string]interface{}
		submitter      *fakeSubmitter
		tokens         *fakeTokens
		expectedStatus int
		expectedStage  checkout.Stage
		expectedBody   func(t *testing.T, body map[string]interface{})
	}{
		{
			name:           "valid billing advances to order review",
			payload:        validBillingPayload(),
			submitter:      &fakeSubmitter{},
			tokens:         &fakeTokens{},
			expectedStatus: http.StatusOK,
			expectedStage:  checkout.StageOrderReview,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "order_review", body["stage"])
			},
		},
		{
			name: "schema violations are reported per field and block advance",
			payload: map[string]interface{}{
				"name":  "",
				"email": "not-an-email",
			},
			submitter:      &fakeSubmitter{},
			tokens:         &fakeTokens{},
			expectedStatus: http.StatusBadRequest,
			expectedStage:  checkout.StageBilling,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
				assert.Equal(t, "validation", body["category"])
			},
		},
		{
			name:           "uninitialized verification surfaces capability error",
			payload:        validBillingPayload(),
			submitter:      &fakeSubmitter{},
			tokens:         &fakeTokens{err: verify.ErrNotInitialized},
			expectedStatus: http.StatusServiceUnavailable,
			expectedStage:  checkout.StageBilling,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "VERIFICATION_NOT_INITIALIZED", body["error_code"])
				assert.Equal(t, "capability", body["category"])
			},
		},
		{
			name:           "server rejection keeps the billing stage",
			payload:        validBillingPayload(),
			submitter:      &fakeSubmitter{billingErr: errors.New("address rejected")},
			tokens:         &fakeTokens{},
			expectedStatus: http.StatusBadGateway,
			expectedStage:  checkout.StageBilling,
			expectedBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "SUBMISSION_FAILED", body["error_code"])
				assert.Equal(t, "submission", body["category"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, session := newCheckoutTestServer(t, tt.submitter, tt.tokens)
			defer srv.Close()

			res := postJSON(t, srv.URL+"/billing", tt.payload)
			defer res.Body.Close()

			assert.Equal(t, tt.expectedStatus, res.StatusCode)
			assert.Equal(t, tt.expectedStage, session.Stage())

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			if tt.expectedBody != nil {
				tt.expectedBody(t, body)
			}
		})
	}
}

func TestCheckoutHandler_SubmitReview_OutOfOrder(t *testing.T) {
	srv, _ := newCheckoutTestServer(t, &fakeSubmitter{}, &fakeTokens{})
	defer srv.Close()

	res := postJSON(t, srv.URL+"/review", map[string]interface{}{"terms_accepted": true})
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "STAGE_ORDER", body["error_code"])
}

func TestCheckoutHandler_FullFlow(t *testing.T) {
	submitter := &fakeSubmitter{paymentURL: "https://pay.example.org/session/42"}
	srv, session := newCheckoutTestServer(t, submitter, &fakeTokens{})
	defer srv.Close()

	res := postJSON(t, srv.URL+"/billing", validBillingPayload())
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Declining the terms blocks the order.
	res = postJSON(t, srv.URL+"/review", map[string]interface{}{"terms_accepted": false})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
	require.Equal(t, checkout.StageOrderReview, session.Stage())

	res = postJSON(t, srv.URL+"/review", map[string]interface{}{"terms_accepted": true})
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body SessionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, checkout.StagePayment, body.Stage)
	assert.Equal(t, "https://pay.example.org/session/42", body.PaymentURL)
	assert.True(t, body.TermsAccepted)

	res = postJSON(t, srv.URL+"/complete", nil)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, checkout.StageCompleted, session.Stage())
}

func TestCheckoutHandler_Abandon_ResetsToBilling(t *testing.T) {
	submitter := &fakeSubmitter{paymentURL: "https://pay.example.org/session/7"}
	srv, session := newCheckoutTestServer(t, submitter, &fakeTokens{})
	defer srv.Close()

	res := postJSON(t, srv.URL+"/billing", validBillingPayload())
	res.Body.Close()
	require.Equal(t, checkout.StageOrderReview, session.Stage())

	res = postJSON(t, srv.URL+"/review", map[string]interface{}{"terms_accepted": true})
	res.Body.Close()
	require.True(t, session.TermsAccepted())

	res = postJSON(t, srv.URL+"/abandon", nil)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, checkout.StageBilling, session.Stage())
	assert.Nil(t, session.Billing())

	var body SessionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.False(t, body.TermsAccepted)
}

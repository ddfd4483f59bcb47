package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okstore/commerce-client/internal/checkout"
	apierrors "github.com/okstore/commerce-client/internal/errors"
	"github.com/okstore/commerce-client/internal/verify"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// CheckoutHandler drives the checkout pipeline from the UI.
type CheckoutHandler struct {
	session *checkout.Session
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(session *checkout.Session, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		session: session,
		logger:  logger.With(slog.String("handler", "checkout")),
	}
}

// BillingRequest wraps the stage-one form payload.
type BillingRequest struct {
	domain.BillingDetails
}

// Bind implements the render.Binder interface. Schema validation happens in
// the session; this only rejects structurally empty payloads.
func (b *BillingRequest) Bind(r *http.Request) error {
	return nil
}

// ReviewRequest wraps the stage-two form payload.
type ReviewRequest struct {
	domain.OrderReview
}

// Bind implements the render.Binder interface
func (rr *ReviewRequest) Bind(r *http.Request) error {
	return nil
}

// SessionResponse is the checkout pipeline state rendering.
type SessionResponse struct {
	Stage         checkout.Stage         `json:"stage"`
	Billing       *domain.BillingDetails `json:"billing,omitempty"`
	PaymentURL    string                 `json:"payment_url,omitempty"`
	TermsAccepted bool                   `json:"terms_accepted"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Routes returns a chi router for checkout endpoints
func (h *CheckoutHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", h.GetState)
	r.Post("/billing", h.SubmitBilling)
	r.Post("/review", h.SubmitReview)
	r.Post("/complete", h.Complete)
	r.Post("/abandon", h.Abandon)

	return r
}

// GetState handles GET /api/checkout
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.renderSession(w, r)
}

// SubmitBilling handles POST /api/checkout/billing
func (h *CheckoutHandler) SubmitBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("checkout-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "checkout_handler.submit_billing",
		trace.WithAttributes(
			attribute.String("http.route", "/api/checkout/billing"),
			attribute.String("request_id", reqID),
			attribute.String("checkout.stage", string(checkout.StageBilling)),
		),
	)
	defer span.End()

	var req BillingRequest
	if err := render.Bind(r, &req); err != nil {
		checkoutSubmissions.WithLabelValues("billing", "invalid").Inc()
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	err := h.session.SubmitBilling(ctx, req.BillingDetails)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		checkoutSubmissions.WithLabelValues("billing", "error").Inc()
		h.logger.WarnContext(ctx, "billing submission failed",
			slog.String("request_id", reqID),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		h.handleCheckoutError(w, r, err)
		return
	}

	checkoutSubmissions.WithLabelValues("billing", "success").Inc()
	h.logger.InfoContext(ctx, "billing submitted",
		slog.String("request_id", reqID),
		slog.Duration("latency", latency),
	)
	h.renderSession(w, r.WithContext(ctx))
}

// SubmitReview handles POST /api/checkout/review
func (h *CheckoutHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("checkout-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "checkout_handler.submit_review",
		trace.WithAttributes(
			attribute.String("http.route", "/api/checkout/review"),
			attribute.String("request_id", reqID),
			attribute.String("checkout.stage", string(checkout.StageOrderReview)),
		),
	)
	defer span.End()

	var req ReviewRequest
	if err := render.Bind(r, &req); err != nil {
		checkoutSubmissions.WithLabelValues("review", "invalid").Inc()
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	err := h.session.SubmitReview(ctx, req.OrderReview)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		checkoutSubmissions.WithLabelValues("review", "error").Inc()
		h.logger.WarnContext(ctx, "order review submission failed",
			slog.String("request_id", reqID),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		h.handleCheckoutError(w, r, err)
		return
	}

	checkoutSubmissions.WithLabelValues("review", "success").Inc()
	h.logger.InfoContext(ctx, "order placed, payment stage entered",
		slog.String("request_id", reqID),
		slog.Duration("latency", latency),
	)
	h.renderSession(w, r.WithContext(ctx))
}

// Complete handles POST /api/checkout/complete. The UI calls it after the
// payment provider redirects back.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("checkout-handler")

	ctx, span := tracer.Start(ctx, "checkout_handler.complete",
		trace.WithAttributes(
			attribute.String("http.route", "/api/checkout/complete"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	if err := h.session.Complete(ctx); err != nil {
		span.RecordError(err)
		h.handleCheckoutError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "checkout completed",
		slog.String("request_id", reqID),
	)
	h.renderSession(w, r.WithContext(ctx))
}

// Abandon handles POST /api/checkout/abandon
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.session.Abandon()
	h.logger.InfoContext(r.Context(), "checkout abandoned",
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	h.renderSession(w, r)
}

func (h *CheckoutHandler) renderSession(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, &SessionResponse{
		Stage:         h.session.Stage(),
		Billing:       h.session.Billing(),
		PaymentURL:    h.session.PaymentURL(),
		TermsAccepted: h.session.TermsAccepted(),
		Timestamp:     time.Now(),
	})
}

// handleCheckoutError maps session and verification errors onto the API
// error taxonomy.
func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErrs  *checkout.ValidationErrors
		rejected *checkout.SubmissionRejectedError
	)
	switch {
	case errors.As(err, &valErrs):
		render.Render(w, r, apierrors.NewValidationErrors(toAPIFields(valErrs.Fields)))
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		render.Render(w, r, apierrors.ErrSubmissionInFlight)
	case errors.Is(err, checkout.ErrWrongStage):
		render.Render(w, r, apierrors.ErrStageOrder)
	case errors.Is(err, verify.ErrNotInitialized):
		render.Render(w, r, apierrors.ErrVerifyNotInitialized)
	case errors.Is(err, verify.ErrVerificationFailed):
		render.Render(w, r, apierrors.ErrVerifyFailed)
	case errors.As(err, &rejected):
		render.Render(w, r, apierrors.SubmissionError(string(rejected.Stage), toAPIFields(rejected.Fields), rejected.Err))
	default:
		render.Render(w, r, apierrors.ErrBackendUnavailable)
	}
}

func toAPIFields(fields []checkout.FieldError) []apierrors.ValidationError {
	out := make([]apierrors.ValidationError, len(fields))
	for i, f := range fields {
		out[i] = apierrors.ValidationError{Field: f.Field, Message: f.Message}
	}
	return out
}

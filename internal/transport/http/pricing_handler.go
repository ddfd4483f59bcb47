package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/okstore/commerce-client/internal/errors"
	"github.com/okstore/commerce-client/internal/pricing"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// PricingHandler serves the compiled-in license catalog and price quotes so
// the UI can render license selectors without waiting on the backend.
type PricingHandler struct {
	logger *slog.Logger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(logger *slog.Logger) *PricingHandler {
	return &PricingHandler{logger: logger.With(slog.String("handler", "pricing"))}
}

// OptionsResponse lists the selectable license types and durations.
type OptionsResponse struct {
	LicenseTypes []pricing.LicenseType     `json:"license_types"`
	Durations    []pricing.LicenseDuration `json:"license_durations"`
}

// QuoteRequest asks for the display price of one prospective cart line.
type QuoteRequest struct {
	BasePrice   int64               `json:"base_price"`
	Scope       domain.LicenseScope `json:"license_scope"`
	LicenseType string              `json:"license_type"`
	Duration    string              `json:"license_duration"`
	Quantity    int                 `json:"quantity"`
}

// Bind implements the render.Binder interface for quote requests
func (q *QuoteRequest) Bind(r *http.Request) error {
	if q.LicenseType == "" {
		return errors.New("license_type is required")
	}
	if q.Duration == "" {
		return errors.New("license_duration is required")
	}
	if q.Quantity == 0 {
		q.Quantity = 1
	}
	return nil
}

// QuoteResponse carries the computed unit price and line total.
type QuoteResponse struct {
	Price    int64 `json:"price"`
	Quantity int   `json:"quantity"`
	Total    int64 `json:"total"`
}

// Routes returns a chi router for pricing endpoints
func (h *PricingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/options", h.GetOptions)
	r.Post("/quote", h.Quote)

	return r
}

// GetOptions handles GET /api/pricing/options
func (h *PricingHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, &OptionsResponse{
		LicenseTypes: pricing.LicenseTypes(),
		Durations:    pricing.Durations(),
	})
}

// Quote handles POST /api/pricing/quote
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	price, err := pricing.ComputeItemPrice(req.BasePrice, req.Scope, req.LicenseType, req.Duration)
	if err != nil {
		h.handlePricingError(w, r, err)
		return
	}
	total, err := pricing.ComputeItemTotal(price, req.Quantity)
	if err != nil {
		h.handlePricingError(w, r, err)
		return
	}

	render.JSON(w, r, &QuoteResponse{Price: price, Quantity: req.Quantity, Total: total})
}

func (h *PricingHandler) handlePricingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidLicenseScope):
		render.Render(w, r, apierrors.ErrScopeMismatch)
	case errors.Is(err, pricing.ErrInvalidQuantity):
		render.Render(w, r, apierrors.ErrValidation("quantity", "quantity must be at least 1"))
	case errors.Is(err, pricing.ErrUnknownLicenseType):
		render.Render(w, r, apierrors.ErrValidation("license_type", "unknown license type"))
	case errors.Is(err, pricing.ErrUnknownDuration):
		render.Render(w, r, apierrors.ErrValidation("license_duration", "unknown license duration"))
	default:
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
	}
}

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

	"github.com/okstore/commerce-client/internal/cart"
	apierrors "github.com/okstore/commerce-client/internal/errors"
	"github.com/okstore/commerce-client/internal/pricing"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// CartHandler exposes the in-process cart store to the UI.
type CartHandler struct {
	store  *cart.Store
	logger *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(store *cart.Store, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "cart")),
	}
}

// AddItemRequest is the payload for adding a product to the cart. The UI
// sends the full product rendering it already holds from the catalog page.
type AddItemRequest struct {
	Product     domain.Product `json:"product"`
	LicenseType string         `json:"license_type"`
	Duration    string         `json:"license_duration"`
	Quantity    int            `json:"quantity"`
}

// Bind implements the render.Binder interface for add-item requests
func (a *AddItemRequest) Bind(r *http.Request) error {
	if a.Product.ID == "" {
		return errors.New("product.id is required")
	}
	if a.LicenseType == "" {
		return errors.New("license_type is required")
	}
	if a.Duration == "" {
		return errors.New("license_duration is required")
	}
	if a.Quantity == 0 {
		a.Quantity = 1
	}
	return nil
}

// UpdateQuantityRequest is the payload for changing a cart line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// Bind implements the render.Binder interface for quantity updates
func (u *UpdateQuantityRequest) Bind(r *http.Request) error {
	return nil
}

// CartResponse is the cart state rendering returned by every cart endpoint.
type CartResponse struct {
	Cart      domain.Cart `json:"cart"`
	Subtotal  int64       `json:"subtotal"`
	ItemCount int         `json:"item_count"`
	Total     int64       `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

// Routes returns a chi router for cart endpoints
func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/", h.GetCart)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{itemID}", h.UpdateQuantity)
	r.Delete("/items/{itemID}", h.RemoveItem)
	r.Post("/refresh", h.Refresh)

	return r
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("cart-handler")
	ctx, span := tracer.Start(ctx, "cart_handler.get_cart",
		trace.WithAttributes(
			attribute.String("http.route", "/api/cart"),
			attribute.String("request_id", middleware.GetReqID(ctx)),
		),
	)
	defer span.End()

	h.renderCart(w, r.WithContext(ctx))
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("cart-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "cart_handler.add_item",
		trace.WithAttributes(
			attribute.String("http.route", "/api/cart/items"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req AddItemRequest
	if err := render.Bind(r, &req); err != nil {
		cartMutations.WithLabelValues("add", "invalid").Inc()
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	span.SetAttributes(
		attribute.String("product.id", req.Product.ID),
		attribute.String("license.type", req.LicenseType),
		attribute.String("license.duration", req.Duration),
		attribute.Int("quantity", req.Quantity),
	)

	err := h.store.AddItem(ctx, req.Product, req.LicenseType, req.Duration, req.Quantity)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		cartMutations.WithLabelValues("add", "error").Inc()
		h.logger.ErrorContext(ctx, "add item failed",
			slog.String("request_id", reqID),
			slog.String("product_id", req.Product.ID),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		h.handleCartError(w, r, err)
		return
	}

	cartMutations.WithLabelValues("add", "success").Inc()
	h.logger.InfoContext(ctx, "item added to cart",
		slog.String("request_id", reqID),
		slog.String("product_id", req.Product.ID),
		slog.Int("quantity", req.Quantity),
		slog.Duration("latency", latency),
	)

	render.Status(r, http.StatusCreated)
	h.renderCart(w, r.WithContext(ctx))
}

// UpdateQuantity handles PATCH /api/cart/items/{itemID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	itemID := chi.URLParam(r, "itemID")
	tracer := otel.Tracer("cart-handler")

	ctx, span := tracer.Start(ctx, "cart_handler.update_quantity",
		trace.WithAttributes(
			attribute.String("http.route", "/api/cart/items/{itemID}"),
			attribute.String("request_id", reqID),
			attribute.String("item_id", itemID),
		),
	)
	defer span.End()

	var req UpdateQuantityRequest
	if err := render.Bind(r, &req); err != nil {
		cartMutations.WithLabelValues("update", "invalid").Inc()
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	span.SetAttributes(attribute.Int("quantity", req.Quantity))

	if err := h.store.UpdateQuantity(ctx, itemID, req.Quantity); err != nil {
		span.RecordError(err)
		cartMutations.WithLabelValues("update", "error").Inc()
		h.logger.ErrorContext(ctx, "update quantity failed",
			slog.String("request_id", reqID),
			slog.String("item_id", itemID),
			slog.Int("quantity", req.Quantity),
			slog.String("error", err.Error()),
		)
		h.handleCartError(w, r, err)
		return
	}

	cartMutations.WithLabelValues("update", "success").Inc()
	h.renderCart(w, r.WithContext(ctx))
}

// RemoveItem handles DELETE /api/cart/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	itemID := chi.URLParam(r, "itemID")
	tracer := otel.Tracer("cart-handler")

	ctx, span := tracer.Start(ctx, "cart_handler.remove_item",
		trace.WithAttributes(
			attribute.String("http.route", "/api/cart/items/{itemID}"),
			attribute.String("request_id", reqID),
			attribute.String("item_id", itemID),
		),
	)
	defer span.End()

	if err := h.store.RemoveItem(ctx, itemID); err != nil {
		span.RecordError(err)
		cartMutations.WithLabelValues("remove", "error").Inc()
		h.logger.ErrorContext(ctx, "remove item failed",
			slog.String("request_id", reqID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		h.handleCartError(w, r, err)
		return
	}

	cartMutations.WithLabelValues("remove", "success").Inc()
	h.renderCart(w, r.WithContext(ctx))
}

// Refresh handles POST /api/cart/refresh by re-hydrating the store from the
// backend's authoritative cart.
func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("cart-handler")

	ctx, span := tracer.Start(ctx, "cart_handler.refresh",
		trace.WithAttributes(
			attribute.String("http.route", "/api/cart/refresh"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	if err := h.store.Refresh(ctx); err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "cart refresh failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		h.handleCartError(w, r, err)
		return
	}

	h.renderCart(w, r.WithContext(ctx))
}

func (h *CartHandler) renderCart(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()
	render.JSON(w, r, &CartResponse{
		Cart:      snapshot,
		Subtotal:  h.store.Subtotal(),
		ItemCount: h.store.ItemCount(),
		Total:     h.store.Total(),
		Timestamp: time.Now(),
	})
}

// handleCartError maps store and pricing errors onto the API error taxonomy.
func (h *CartHandler) handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	var syncErr *cart.SyncFailedError
	switch {
	case errors.Is(err, pricing.ErrInvalidLicenseScope):
		render.Render(w, r, apierrors.ErrScopeMismatch)
	case errors.Is(err, pricing.ErrInvalidQuantity):
		render.Render(w, r, apierrors.ErrValidation("quantity", "quantity must be at least 1"))
	case errors.Is(err, pricing.ErrUnknownLicenseType):
		render.Render(w, r, apierrors.ErrValidation("license_type", "unknown license type"))
	case errors.Is(err, pricing.ErrUnknownDuration):
		render.Render(w, r, apierrors.ErrValidation("license_duration", "unknown license duration"))
	case errors.Is(err, cart.ErrItemNotFound):
		render.Render(w, r, apierrors.ErrCartItemNotFound)
	case errors.As(err, &syncErr):
		render.Render(w, r, apierrors.SyncError(syncErr.Operation, syncErr.Err))
	default:
		render.Render(w, r, apierrors.ErrBackendUnavailable)
	}
}

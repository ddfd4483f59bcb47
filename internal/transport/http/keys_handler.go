package http

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okstore/commerce-client/internal/backend"
	apierrors "github.com/okstore/commerce-client/internal/errors"
	"github.com/okstore/commerce-client/internal/reveal"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// KeysHandler serves the purchased license keys and their reveal widgets.
// One widget exists per order item; widgets persist across list refreshes so
// an open reveal window survives a page re-render.
type KeysHandler struct {
	client    *backend.Client
	clipboard reveal.Clipboard
	logger    *slog.Logger

	mu         sync.Mutex
	widgets    map[string]*reveal.Widget
	widgetOpts []reveal.Option
	keys       map[string]domain.LicenseKey
}

// NewKeysHandler creates a new license keys handler. Widget options apply to
// every widget the handler creates.
func NewKeysHandler(client *backend.Client, clipboard reveal.Clipboard, logger *slog.Logger, opts ...reveal.Option) *KeysHandler {
	return &KeysHandler{
		client:     client,
		clipboard:  clipboard,
		logger:     logger.With(slog.String("handler", "keys")),
		widgets:    make(map[string]*reveal.Widget),
		widgetOpts: opts,
		keys:       make(map[string]domain.LicenseKey),
	}
}

// KeyResponse is one purchased key as rendered toward the UI. The raw key
// never appears; Display carries the masked or revealed rendering.
type KeyResponse struct {
	OrderItemID    string          `json:"order_item_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ProductVersion string          `json:"product_version"`
	LicenseType    string          `json:"license_type"`
	Duration       string          `json:"license_duration"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	IssuedAt       time.Time       `json:"issued_at"`
	Widget         reveal.Snapshot `json:"widget"`
}

// KeysListResponse is the full purchased-keys listing.
type KeysListResponse struct {
	Keys      []KeyResponse `json:"keys"`
	Timestamp time.Time     `json:"timestamp"`
}

// Routes returns a chi router for license key endpoints
func (h *KeysHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/", h.ListKeys)
	r.Post("/{itemID}/reveal", h.Reveal)
	r.Post("/{itemID}/mask", h.Mask)
	r.Post("/{itemID}/copy", h.Copy)
	r.Get("/{itemID}/download", h.Download)

	return r
}

// ListKeys handles GET /api/keys. Fetching from the backend refreshes the
// local key set; widgets for known items keep their current state.
func (h *KeysHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("keys-handler")

	ctx, span := tracer.Start(ctx, "keys_handler.list",
		trace.WithAttributes(
			attribute.String("http.route", "/api/keys"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	keys, err := h.client.FetchLicenseKeys(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "license keys fetch failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, apierrors.ErrBackendUnavailable)
		return
	}
	span.SetAttributes(attribute.Int("keys.count", len(keys)))

	h.mu.Lock()
	fresh := make(map[string]struct{}, len(keys))
	responses := make([]KeyResponse, 0, len(keys))
	for _, k := range keys {
		fresh[k.OrderItemID] = struct{}{}
		h.keys[k.OrderItemID] = k
		widget, ok := h.widgets[k.OrderItemID]
		if !ok {
			widget = reveal.NewWidget(k.Key, h.clipboard, h.logger, h.widgetOpts...)
			h.widgets[k.OrderItemID] = widget
		}
		responses = append(responses, keyResponse(k, widget))
	}
	// Drop entries the backend no longer lists. Mask cancels any pending
	// auto-mask timer before the widget goes away.
	for id, widget := range h.widgets {
		if _, ok := fresh[id]; ok {
			continue
		}
		widget.Mask()
		delete(h.widgets, id)
		delete(h.keys, id)
	}
	h.mu.Unlock()

	render.JSON(w, r, &KeysListResponse{Keys: responses, Timestamp: time.Now()})
}

// Reveal handles POST /api/keys/{itemID}/reveal
func (h *KeysHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	key, widget, ok := h.lookup(itemID)
	if !ok {
		render.Render(w, r, apierrors.NotFoundError("license key"))
		return
	}

	widget.Reveal()
	keyReveals.Inc()
	h.logger.InfoContext(r.Context(), "license key revealed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("order_item_id", itemID),
	)
	render.JSON(w, r, keyResponse(key, widget))
}

// Mask handles POST /api/keys/{itemID}/mask
func (h *KeysHandler) Mask(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	key, widget, ok := h.lookup(itemID)
	if !ok {
		render.Render(w, r, apierrors.NotFoundError("license key"))
		return
	}

	widget.Mask()
	render.JSON(w, r, keyResponse(key, widget))
}

// Copy handles POST /api/keys/{itemID}/copy. Copying works from either
// widget state and does not change key visibility.
func (h *KeysHandler) Copy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := chi.URLParam(r, "itemID")
	key, widget, ok := h.lookup(itemID)
	if !ok {
		render.Render(w, r, apierrors.NotFoundError("license key"))
		return
	}

	if err := widget.Copy(ctx); err != nil {
		var clipErr *reveal.ClipboardError
		if errors.As(err, &clipErr) {
			h.logger.WarnContext(ctx, "clipboard write failed",
				slog.String("request_id", middleware.GetReqID(ctx)),
				slog.String("order_item_id", itemID),
				slog.String("error", err.Error()),
			)
			render.Render(w, r, apierrors.ErrClipboardUnavailable)
			return
		}
		render.Render(w, r, apierrors.CapabilityError("clipboard", err))
		return
	}

	render.JSON(w, r, keyResponse(key, widget))
}

// Download handles GET /api/keys/{itemID}/download by resolving the product
// build location and redirecting the UI to it.
func (h *KeysHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	itemID := chi.URLParam(r, "itemID")
	tracer := otel.Tracer("keys-handler")

	ctx, span := tracer.Start(ctx, "keys_handler.download",
		trace.WithAttributes(
			attribute.String("http.route", "/api/keys/{itemID}/download"),
			attribute.String("request_id", reqID),
			attribute.String("order_item_id", itemID),
		),
	)
	defer span.End()

	key, _, ok := h.lookup(itemID)
	if !ok {
		render.Render(w, r, apierrors.NotFoundError("license key"))
		return
	}

	location, err := h.client.ResolveDownload(ctx, key.ProductID, key.ProductVersion)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "download resolution failed",
			slog.String("request_id", reqID),
			slog.String("product_id", key.ProductID),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, apierrors.ErrBackendUnavailable)
		return
	}

	http.Redirect(w, r.WithContext(ctx), location, http.StatusFound)
}

func (h *KeysHandler) lookup(itemID string) (domain.LicenseKey, *reveal.Widget, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key, ok := h.keys[itemID]
	if !ok {
		return domain.LicenseKey{}, nil, false
	}
	return key, h.widgets[itemID], true
}

func keyResponse(k domain.LicenseKey, w *reveal.Widget) KeyResponse {
	return KeyResponse{
		OrderItemID:    k.OrderItemID,
		ProductID:      k.ProductID,
		ProductName:    k.ProductName,
		ProductVersion: k.ProductVersion,
		LicenseType:    k.LicenseType,
		Duration:       k.Duration,
		ExpiresAt:      k.ExpiresAt,
		IssuedAt:       k.IssuedAt,
		Widget:         w.Snapshot(),
	}
}

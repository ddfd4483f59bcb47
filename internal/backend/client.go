// Package backend is the HTTP client for the storefront backend, the
// authoritative owner of cart persistence, checkout validation and order
// records. The backend processes cart mutations per session in request order;
// the client relies on that contract and serializes its own mutations so the
// order it sends matches user-visible intent.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// ErrUnavailable indicates the backend could not be reached at all, as
// opposed to a request it received and rejected.
var ErrUnavailable = errors.New("storefront backend unavailable")

// StatusError is a non-2xx backend response that carried no structured
// validation payload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// ValidationFailedError is a 422 response with field-scoped messages, the
// backend's standard shape for rejected form submissions.
type ValidationFailedError struct {
	Message string              `json:"message"`
	Fields  map[string][]string `json:"errors"`
}

func (e *ValidationFailedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "backend validation failed"
}

// AddItemRequest is the payload for creating a cart line.
type AddItemRequest struct {
	ProductID   string `json:"product_id"`
	LicenseType string `json:"license_type"`
	Duration    string `json:"license_duration"`
	Quantity    int    `json:"quantity"`
}

// cartEnvelope wraps every cart endpoint response; the backend always
// returns the full authoritative cart after a mutation.
type cartEnvelope struct {
	Success bool        `json:"success"`
	Cart    domain.Cart `json:"cart"`
}

type orderEnvelope struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url"`
}

type licenseKeysEnvelope struct {
	Success bool                `json:"success"`
	Keys    []domain.LicenseKey `json:"keys"`
}

// Config controls client behavior.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Client-side politeness limit toward the backend.
	RateLimit float64
	RateBurst int
}

// Client talks to the storefront backend. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	snapshots  singleflight.Group
	logger     *slog.Logger
}

// NewClient creates a backend client from config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 10
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// Download resolution reads the redirect Location instead of
			// following it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.With(slog.String("component", "backend_client")),
	}
}

// FetchCart retrieves the authoritative cart snapshot. Concurrent calls are
// collapsed into a single round-trip.
func (c *Client) FetchCart(ctx context.Context) (*domain.Cart, error) {
	v, err, shared := c.snapshots.Do("cart", func() (interface{}, error) {
		var env cartEnvelope
		if err := c.do(ctx, http.MethodGet, "/api/cart", nil, "", &env); err != nil {
			return nil, err
		}
		return &env.Cart, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "cart snapshot fetch deduplicated")
	}
	cart := *v.(*domain.Cart)
	return &cart, nil
}

// AddItem creates a cart line and returns the updated authoritative cart.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/cart/items", req, "", &env); err != nil {
		return nil, err
	}
	return &env.Cart, nil
}

// UpdateQuantity changes the quantity of a cart line.
func (c *Client) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error) {
	body := map[string]int{"quantity": quantity}
	var env cartEnvelope
	if err := c.do(ctx, http.MethodPatch, "/api/cart/items/"+itemID, body, "", &env); err != nil {
		return nil, err
	}
	return &env.Cart, nil
}

// RemoveItem deletes a cart line.
func (c *Client) RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, http.MethodDelete, "/api/cart/items/"+itemID, nil, "", &env); err != nil {
		return nil, err
	}
	return &env.Cart, nil
}

// SubmitBilling posts the stage-one checkout payload. A 422 returns a
// *ValidationFailedError with the backend's field messages.
func (c *Client) SubmitBilling(ctx context.Context, details domain.BillingDetails, verifyToken string) error {
	return c.do(ctx, http.MethodPost, "/api/checkout/billing", details, verifyToken, nil)
}

// SubmitOrder posts the stage-two checkout payload and returns the payment
// URL the UI must navigate to.
func (c *Client) SubmitOrder(ctx context.Context, review domain.OrderReview, verifyToken string) (string, error) {
	var env orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/checkout/order", review, verifyToken, &env); err != nil {
		return "", err
	}
	return env.PaymentURL, nil
}

// FetchLicenseKeys lists the keys issued for the session's completed orders.
func (c *Client) FetchLicenseKeys(ctx context.Context) ([]domain.LicenseKey, error) {
	var env licenseKeysEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/license-keys", nil, "", &env); err != nil {
		return nil, err
	}
	return env.Keys, nil
}

// ResolveDownload resolves a product and version to a download location.
// Triggering the download is a navigation side effect owned by the UI.
func (c *Client) ResolveDownload(ctx context.Context, productID, version string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/downloads/"+productID+"/"+version, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: "redirect without location"}
	}
	return location, nil
}

// do performs one JSON round-trip. Non-2xx responses become
// *ValidationFailedError (422 with field payload) or *StatusError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, verifyToken string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if verifyToken != "" {
		req.Header.Set("X-Verification-Token", verifyToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "backend request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var vErr ValidationFailedError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&vErr); decodeErr == nil && len(vErr.Fields) > 0 {
			return &vErr
		}
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

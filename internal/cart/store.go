// Package cart holds the client's authoritative in-process view of the
// server-held cart. Mutations are optimistic: the local collection is changed
// first, the backend round-trip follows, and a failed round-trip rolls the
// store back to its pre-mutation snapshot so client and server never diverge.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okstore/commerce-client/internal/backend"
	"github.com/okstore/commerce-client/internal/pricing"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// ErrItemNotFound indicates a mutation against an unknown cart line.
var ErrItemNotFound = errors.New("cart item not found")

// SyncFailedError wraps a backend rejection of a cart mutation. When it
// surfaces the store has already rolled back.
type SyncFailedError struct {
	Operation string
	Err       error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("cart %s failed to sync: %v", e.Operation, e.Err)
}

func (e *SyncFailedError) Unwrap() error { return e.Err }

// Backend is the subset of the storefront backend the store depends on.
// Every mutation returns the updated authoritative cart.
type Backend interface {
	FetchCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, req backend.AddItemRequest) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error)
}

// Subscriber is notified with a cart snapshot after every committed change.
type Subscriber func(domain.Cart)

// Store is the process-wide cart state container. The mutex is held across
// the backend round-trip, so overlapping mutations from the UI are applied in
// the order they were issued.
type Store struct {
	mu          sync.RWMutex
	cart        domain.Cart
	backend     Backend
	subscribers []Subscriber
	logger      *slog.Logger
}

// NewStore creates an empty store bound to a backend.
func NewStore(b Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: b,
		logger:  logger.With(slog.String("component", "cart_store")),
	}
}

// Hydrate replaces the entire collection with a server snapshot. Last write
// wins; there is no merge, because the server owns item existence.
func (s *Store) Hydrate(cart domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cloneCart(cart)
	s.notifyLocked(cloneCart(s.cart))
}

// Refresh fetches a fresh snapshot from the backend and hydrates from it.
func (s *Store) Refresh(ctx context.Context) error {
	cart, err := s.backend.FetchCart(ctx)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	s.Hydrate(*cart)
	return nil
}

// AddItem prices the product for the selected license terms, applies the
// line locally and syncs it to the backend. The unit price is captured here
// and only recomputed on an explicit license-term change, never silently in
// display logic.
func (s *Store) AddItem(ctx context.Context, product domain.Product, licenseType, duration string, quantity int) error {
	price, err := pricing.ComputeItemPrice(product.EffectivePrice(), product.LicenseScope, licenseType, duration)
	if err != nil {
		return err
	}
	total, err := pricing.ComputeItemTotal(price, quantity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := cloneCart(s.cart)

	now := time.Now()
	s.cart.Items = append(s.cart.Items, domain.CartItem{
		ID:          uuid.NewString(), // provisional until the server re-renders the line
		ProductID:   product.ID,
		Product:     product,
		LicenseType: licenseType,
		Duration:    duration,
		Price:       price,
		Quantity:    quantity,
		Total:       total,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	s.recompute()

	updated, err := s.backend.AddItem(ctx, backend.AddItemRequest{
		ProductID:   product.ID,
		LicenseType: licenseType,
		Duration:    duration,
		Quantity:    quantity,
	})
	if err != nil {
		s.cart = snapshot
		s.logger.WarnContext(ctx, "add item rolled back",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
		return &SyncFailedError{Operation: "add", Err: err}
	}

	s.commitLocked(ctx, *updated)
	return nil
}

// UpdateQuantity changes a line's quantity locally and syncs it.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", pricing.ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	snapshot := cloneCart(s.cart)

	item := &s.cart.Items[idx]
	item.Quantity = quantity
	item.Total = item.Price * int64(quantity)
	item.UpdatedAt = time.Now()
	s.recompute()

	updated, err := s.backend.UpdateQuantity(ctx, itemID, quantity)
	if err != nil {
		s.cart = snapshot
		s.logger.WarnContext(ctx, "quantity update rolled back",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return &SyncFailedError{Operation: "update", Err: err}
	}

	s.commitLocked(ctx, *updated)
	return nil
}

// RemoveItem deletes a line locally and syncs the removal.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	snapshot := cloneCart(s.cart)

	s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
	s.recompute()

	updated, err := s.backend.RemoveItem(ctx, itemID)
	if err != nil {
		s.cart = snapshot
		s.logger.WarnContext(ctx, "item removal rolled back",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return &SyncFailedError{Operation: "remove", Err: err}
	}

	s.commitLocked(ctx, *updated)
	return nil
}

// Clear drops all local state, used after a successful order placement when
// the server has already cleared the session cart.
func (s *Store) Clear() {
	s.Hydrate(domain.Cart{})
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCart(s.cart)
}

// Subtotal recomputes the subtotal from current contents. Never cached.
func (s *Store) Subtotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subtotal, err := pricing.ComputeCartSubtotal(s.cart.Items)
	if err != nil {
		// A non-positive quantity in the store is an invariant violation;
		// the exposed subtotal degrades to the server value.
		return s.cart.Subtotal
	}
	return subtotal
}

// ItemCount recomputes the total quantity from current contents.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pricing.ItemCount(s.cart.Items)
}

// Total returns the server-computed cart total (post-tax/fees). Ground
// truth; never derived client-side from the subtotal.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total
}

// Subscribe registers a callback notified after every committed change.
// Callbacks run outside the store lock.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// commitLocked overwrites local state with the authoritative server reply
// and notifies subscribers. Caller holds the write lock.
func (s *Store) commitLocked(ctx context.Context, cart domain.Cart) {
	s.cart = cloneCart(cart)
	snapshot := cloneCart(s.cart)
	s.logger.DebugContext(ctx, "cart committed",
		slog.Int("item_count", snapshot.ItemCount),
		slog.Int64("total", snapshot.Total),
	)
	s.notifyLocked(snapshot)
}

// notifyLocked delivers the snapshot to subscribers. Delivery happens under
// the write lock so subscribers observe commits in commit order; subscribers
// must be quick and must not call back into the store.
func (s *Store) notifyLocked(snapshot domain.Cart) {
	for _, fn := range s.subscribers {
		fn(snapshot)
	}
}

// recompute refreshes the derived fields after a local optimistic mutation,
// pending the authoritative reply. Caller holds the write lock.
func (s *Store) recompute() {
	subtotal, err := pricing.ComputeCartSubtotal(s.cart.Items)
	if err == nil {
		s.cart.Subtotal = subtotal
	}
	s.cart.ItemCount = pricing.ItemCount(s.cart.Items)
}

func (s *Store) indexOfLocked(itemID string) int {
	for i, item := range s.cart.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	out.Items = make([]domain.CartItem, len(cart.Items))
	copy(out.Items, cart.Items)
	return out
}

package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstore/commerce-client/internal/backend"
	"github.com/okstore/commerce-client/internal/pricing"
	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

// mockBackend echoes mutations back as authoritative state, or fails when
// failWith is set.
type mockBackend struct {
	mu       sync.Mutex
	failWith error
	reply    *domain.Cart
	calls    []string
}

func (m *mockBackend) record(call string) { m.mu.Lock(); m.calls = append(m.calls, call); m.mu.Unlock() }

func (m *mockBackend) FetchCart(ctx context.Context) (*domain.Cart, error) {
	m.record("fetch")
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.reply, nil
}

func (m *mockBackend) AddItem(ctx context.Context, req backend.AddItemRequest) (*domain.Cart, error) {
	m.record("add")
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.reply, nil
}

func (m *mockBackend) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error) {
	m.record("update")
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.reply, nil
}

func (m *mockBackend) RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error) {
	m.record("remove")
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.reply, nil
}

func pluginProduct() domain.Product {
	return domain.Product{
		ID:           "prod-1",
		Name:         "Citation Manager",
		ProductType:  domain.ProductTypePlugin,
		LicenseScope: domain.LicenseScopeInstallation,
		BasePrice:    100000,
		Version:      "2.1.0",
		IsActive:     true,
	}
}

func serverCart(items ...domain.CartItem) *domain.Cart {
	subtotal, _ := pricing.ComputeCartSubtotal(items)
	return &domain.Cart{
		Items:     items,
		Subtotal:  subtotal,
		Total:     subtotal + 11000, // server-side tax, opaque to the client
		ItemCount: pricing.ItemCount(items),
	}
}

func TestHydrate(t *testing.T) {
	store := NewStore(&mockBackend{}, slog.Default())

	first := serverCart(domain.CartItem{ID: "a", Price: 100000, Quantity: 1})
	store.Hydrate(*first)
	assert.Equal(t, 1, store.ItemCount())

	// Full overwrite, no merge: the second snapshot wins entirely.
	second := serverCart(domain.CartItem{ID: "b", Price: 50000, Quantity: 2})
	store.Hydrate(*second)

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, "b", snapshot.Items[0].ID)
	assert.Equal(t, 2, store.ItemCount())
}

func TestAddItem(t *testing.T) {
	t.Run("captures price at add time and commits server reply", func(t *testing.T) {
		reply := serverCart(domain.CartItem{ID: "srv-1", ProductID: "prod-1", Price: 200000, Quantity: 1})
		mock := &mockBackend{reply: reply}
		store := NewStore(mock, slog.Default())

		err := store.AddItem(context.Background(), pluginProduct(), "single-site", "2-years", 1)
		require.NoError(t, err)

		snapshot := store.Snapshot()
		require.Len(t, snapshot.Items, 1)
		assert.Equal(t, "srv-1", snapshot.Items[0].ID, "server line replaces the provisional one")
		assert.Equal(t, int64(200000), snapshot.Items[0].Price)
		assert.Equal(t, reply.Total, store.Total())
	})

	t.Run("scope mismatch fails before any round-trip", func(t *testing.T) {
		mock := &mockBackend{}
		store := NewStore(mock, slog.Default())

		err := store.AddItem(context.Background(), pluginProduct(), "single-journal", "1-year", 1)
		assert.ErrorIs(t, err, pricing.ErrInvalidLicenseScope)
		assert.Empty(t, mock.calls)
	})

	t.Run("backend failure rolls back to pre-add snapshot", func(t *testing.T) {
		mock := &mockBackend{failWith: errors.New("503")}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(domain.CartItem{ID: "a", Price: 100000, Quantity: 1}))
		before := store.ItemCount()

		err := store.AddItem(context.Background(), pluginProduct(), "single-site", "1-year", 2)
		var syncErr *SyncFailedError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, "add", syncErr.Operation)
		assert.Equal(t, before, store.ItemCount(), "itemCount unchanged from before the call")
	})
}

func TestUpdateQuantity(t *testing.T) {
	existing := domain.CartItem{ID: "a", ProductID: "prod-1", Price: 200000, Quantity: 1}

	t.Run("commits authoritative totals", func(t *testing.T) {
		updated := existing
		updated.Quantity = 3
		updated.Total = 600000
		mock := &mockBackend{reply: serverCart(updated)}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(existing))

		require.NoError(t, store.UpdateQuantity(context.Background(), "a", 3))
		assert.Equal(t, 3, store.ItemCount())
		assert.Equal(t, int64(600000), store.Subtotal())
	})

	t.Run("rejects non-positive quantity locally", func(t *testing.T) {
		mock := &mockBackend{}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(existing))

		err := store.UpdateQuantity(context.Background(), "a", 0)
		assert.ErrorIs(t, err, pricing.ErrInvalidQuantity)
		assert.Empty(t, mock.calls)
	})

	t.Run("unknown item", func(t *testing.T) {
		store := NewStore(&mockBackend{}, slog.Default())
		err := store.UpdateQuantity(context.Background(), "ghost", 2)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("rollback on backend failure", func(t *testing.T) {
		mock := &mockBackend{failWith: errors.New("timeout")}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(existing))

		err := store.UpdateQuantity(context.Background(), "a", 5)
		require.Error(t, err)
		assert.Equal(t, 1, store.ItemCount())
	})
}

func TestRemoveItem(t *testing.T) {
	existing := domain.CartItem{ID: "a", ProductID: "prod-1", Price: 200000, Quantity: 2}

	t.Run("removes and commits", func(t *testing.T) {
		mock := &mockBackend{reply: serverCart()}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(existing))

		require.NoError(t, store.RemoveItem(context.Background(), "a"))
		assert.Equal(t, 0, store.ItemCount())
		assert.Equal(t, int64(0), store.Subtotal())
	})

	t.Run("rollback restores the removed line", func(t *testing.T) {
		mock := &mockBackend{failWith: errors.New("409")}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(existing))

		err := store.RemoveItem(context.Background(), "a")
		require.Error(t, err)
		snapshot := store.Snapshot()
		require.Len(t, snapshot.Items, 1)
		assert.Equal(t, "a", snapshot.Items[0].ID)
	})
}

func TestDerivedTotals(t *testing.T) {
	store := NewStore(&mockBackend{}, slog.Default())
	store.Hydrate(*serverCart(
		domain.CartItem{ID: "a", Price: 200000, Quantity: 3},
		domain.CartItem{ID: "b", Price: 50000, Quantity: 1},
	))

	assert.Equal(t, int64(650000), store.Subtotal())
	assert.Equal(t, 4, store.ItemCount())
	assert.Equal(t, int64(661000), store.Total(), "server total is ground truth, not subtotal")
}

func TestSubscribe(t *testing.T) {
	reply := serverCart(domain.CartItem{ID: "srv-1", Price: 100000, Quantity: 1})
	mock := &mockBackend{reply: reply}
	store := NewStore(mock, slog.Default())

	updates := make(chan domain.Cart, 4)
	store.Subscribe(func(cart domain.Cart) { updates <- cart })

	require.NoError(t, store.AddItem(context.Background(), pluginProduct(), "single-site", "1-year", 1))

	select {
	case cart := <-updates:
		assert.Equal(t, 1, cart.ItemCount)
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestSubscribeCommitOrder(t *testing.T) {
	mock := &mockBackend{reply: serverCart(domain.CartItem{ID: "srv-1", Price: 100000, Quantity: 1})}
	store := NewStore(mock, slog.Default())

	var counts []int
	store.Subscribe(func(cart domain.Cart) { counts = append(counts, cart.ItemCount) })

	require.NoError(t, store.AddItem(context.Background(), pluginProduct(), "single-site", "1-year", 1))

	mock.reply = serverCart(domain.CartItem{ID: "srv-1", Price: 100000, Quantity: 3})
	require.NoError(t, store.UpdateQuantity(context.Background(), "srv-1", 3))

	store.Hydrate(domain.Cart{})

	// Delivery is synchronous with the commit, so subscribers see every
	// committed state exactly once and in commit order; a later hydrate can
	// never be overridden by an earlier mutation's late notification.
	assert.Equal(t, []int{1, 3, 0}, counts)
}

func TestRefresh(t *testing.T) {
	t.Run("hydrates from fetched snapshot", func(t *testing.T) {
		mock := &mockBackend{reply: serverCart(domain.CartItem{ID: "a", Price: 100000, Quantity: 2})}
		store := NewStore(mock, slog.Default())

		require.NoError(t, store.Refresh(context.Background()))
		assert.Equal(t, 2, store.ItemCount())
	})

	t.Run("propagates fetch failure without touching state", func(t *testing.T) {
		mock := &mockBackend{failWith: errors.New("network")}
		store := NewStore(mock, slog.Default())
		store.Hydrate(*serverCart(domain.CartItem{ID: "a", Price: 100000, Quantity: 2}))

		require.Error(t, store.Refresh(context.Background()))
		assert.Equal(t, 2, store.ItemCount())
	})
}

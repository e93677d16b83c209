package records

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProductStores(t *testing.T, fn func(t *testing.T, store ProductStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		store := NewMemoryProductStore()
		defer store.Close()
		fn(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteProductStore(":memory:")
		require.NoError(t, err)
		defer store.Close()
		fn(t, store)
	})
}

func runOrderStores(t *testing.T, fn func(t *testing.T, store OrderStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		store := NewMemoryOrderStore()
		defer store.Close()
		fn(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteOrderStore(":memory:")
		require.NoError(t, err)
		defer store.Close()
		fn(t, store)
	})
}

func TestProductCRUD(t *testing.T) {
	runProductStores(t, func(t *testing.T, store ProductStore) {
		ctx := context.Background()

		created, err := store.Create(ctx, Product{
			Name:  "Widget",
			Code:  "WID-1",
			Price: 9.99,
			Model: "A1",
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		created.Price = 12.50
		updated, err := store.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, 12.50, updated.Price)

		got, err = store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 12.50, got.Price)

		deleted, err := store.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, deleted)

		_, err = store.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProductNotFound(t *testing.T) {
	runProductStores(t, func(t *testing.T, store ProductStore) {
		ctx := context.Background()

		_, err := store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Update(ctx, Product{ID: "missing", Name: "X"})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Delete(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProductGetByIDs(t *testing.T) {
	runProductStores(t, func(t *testing.T, store ProductStore) {
		ctx := context.Background()

		a, err := store.Create(ctx, Product{Name: "A", Code: "A-1", Price: 1, Model: "M"})
		require.NoError(t, err)
		b, err := store.Create(ctx, Product{Name: "B", Code: "B-1", Price: 2, Model: "M"})
		require.NoError(t, err)

		got, err := store.GetByIDs(ctx, []string{a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a, got[0])
		assert.Equal(t, b, got[1])

		// One missing ID fails the whole resolution.
		_, err = store.GetByIDs(ctx, []string{a.ID, "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProductList(t *testing.T) {
	runProductStores(t, func(t *testing.T, store ProductStore) {
		ctx := context.Background()

		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		for _, name := range []string{"A", "B", "C"} {
			_, err := store.Create(ctx, Product{Name: name, Code: name + "-1", Price: 1, Model: "M"})
			require.NoError(t, err)
		}

		all, err = store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestOrderLifecycle(t *testing.T) {
	runOrderStores(t, func(t *testing.T, store OrderStore) {
		ctx := context.Background()

		created, err := store.Create(ctx, Order{
			Email:    "a@b.com",
			Billing:  Billing{Payment: PaymentCreditCard, TotalPrice: 42.50},
			Shipping: Shipping{Type: ShippingUrgent, Carrier: CarrierUPS},
			Products: []OrderProduct{
				{ID: "p1", Name: "Widget", Code: "WID-1", Price: 30, Model: "A1"},
				{ID: "p2", Name: "Gadget", Code: "GAD-1", Price: 12.50, Model: "B2"},
			},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(created.ID, "ORDER#"))
		assert.NotZero(t, created.CreatedAt)
		assert.Equal(t, []string{"WID-1", "GAD-1"}, created.ProductCodes())

		got, err := store.Get(ctx, "a@b.com", created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		// Orders are scoped to their email.
		_, err = store.Get(ctx, "c@d.com", created.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		deleted, err := store.Delete(ctx, "a@b.com", created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, deleted)

		_, err = store.Get(ctx, "a@b.com", created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOrderListByEmail(t *testing.T) {
	runOrderStores(t, func(t *testing.T, store OrderStore) {
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := store.Create(ctx, Order{Email: "a@b.com", Products: []OrderProduct{}})
			require.NoError(t, err)
		}
		_, err := store.Create(ctx, Order{Email: "c@d.com", Products: []OrderProduct{}})
		require.NoError(t, err)

		mine, err := store.ListByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := store.ListByEmail(ctx, "nobody@b.com")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestOrderDeleteMissing(t *testing.T) {
	runOrderStores(t, func(t *testing.T, store OrderStore) {
		_, err := store.Delete(context.Background(), "a@b.com", "ORDER#missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClosedStores(t *testing.T) {
	ctx := context.Background()

	products := NewMemoryProductStore()
	require.NoError(t, products.Close())
	_, err := products.Create(ctx, Product{Name: "X"})
	assert.ErrorIs(t, err, ErrStoreClosed)

	orders := NewMemoryOrderStore()
	require.NoError(t, orders.Close())
	_, err = orders.Create(ctx, Order{Email: "a@b.com"})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

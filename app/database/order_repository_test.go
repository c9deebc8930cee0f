package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/grocery-feed/app/cart"
	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *OrderStore {
	t.Helper()

	// Each test gets its own named in-memory database.
	db, err := NewConnection(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	return NewOrderStore(db)
}

func TestOrderStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	apples := catalog.Product{ID: "p1", Name: "Apples", Category: "fruits", Price: 1.5, Image: "apples.png", IsFeatured: true}
	milk := catalog.Product{ID: "p2", Name: "Milk", Category: "dairy", Price: 2.25, Image: "milk.png"}

	order := &cart.Order{
		ID:        uuid.NewString(),
		Items:     []catalog.Product{apples, milk, apples},
		ItemCount: 3,
		Total:     5.25,
		PlacedAt:  time.Date(2025, 3, 14, 9, 30, 15, 500, time.UTC),
	}
	require.NoError(t, store.SaveOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Items, got.Items)
	assert.Equal(t, 3, got.ItemCount)
	assert.Equal(t, 5.25, got.Total)
	assert.True(t, order.PlacedAt.Equal(got.PlacedAt), "expected %s, got %s", order.PlacedAt, got.PlacedAt)

	count, err := store.GetOrderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrderStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetOrder(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrderStore_DuplicateIDRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := &cart.Order{
		ID:        uuid.NewString(),
		Items:     []catalog.Product{{ID: "p1", Name: "Apples", Price: 1}},
		ItemCount: 1,
		Total:     1,
		PlacedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveOrder(ctx, order))
	assert.Error(t, store.SaveOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := NewConnection(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	defer db.Close()

	_, _, err = RunMigrations(db)
	require.NoError(t, err)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

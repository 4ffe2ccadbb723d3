package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

func newCartFixture() (*CartService, *memDB, *memCarts) {
	db := newMemDB()
	db.addProduct("prd_1", "Lamp", "20", 5)
	db.addProduct("prd_2", "Desk", "150", 1)
	carts := newMemCarts()
	return NewCartService(carts, db.Products(), clock.Fixed{At: testNow}), db, carts
}

func TestCartService_AddItemMergesQuantity(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "usr_1", "prd_1", 2)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, "usr_1", "prd_1", 1)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.True(t, d("60").Equal(view.Subtotal))
	assert.True(t, d("66").Equal(view.Total))
}

func TestCartService_AddItemRejectsOverStock(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "usr_1", "prd_1", 4)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "usr_1", "prd_1", 2)
	assert.True(t, errors.Is(err, apperr.ErrOutOfStock), "got %v", err)

	view, err := svc.Get(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, 4, view.Lines[0].Quantity)
}

func TestCartService_AddItemValidation(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "usr_1", "prd_1", 0)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.AddItem(ctx, "usr_1", "missing", 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCartService_UpdateQuantity(t *testing.T) {
	svc, _, carts := newCartFixture()
	ctx := context.Background()
	carts.put("usr_1", models.CartLine{ProductID: "prd_1", Quantity: 1}, models.CartLine{ProductID: "prd_2", Quantity: 1})

	view, err := svc.UpdateQuantity(ctx, "usr_1", "prd_1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Lines[0].Quantity)

	_, err = svc.UpdateQuantity(ctx, "usr_1", "prd_1", 6)
	assert.True(t, errors.Is(err, apperr.ErrOutOfStock))

	_, err = svc.UpdateQuantity(ctx, "usr_2", "prd_1", 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	view, err = svc.UpdateQuantity(ctx, "usr_1", "prd_1", 0)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "prd_2", view.Lines[0].ProductID)
}

func TestCartService_RemoveItemIsIdempotent(t *testing.T) {
	svc, _, carts := newCartFixture()
	ctx := context.Background()
	carts.put("usr_1", models.CartLine{ProductID: "prd_1", Quantity: 2}, models.CartLine{ProductID: "prd_2", Quantity: 1})

	first, err := svc.RemoveItem(ctx, "usr_1", "prd_1")
	require.NoError(t, err)
	second, err := svc.RemoveItem(ctx, "usr_1", "prd_1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, second.Lines, 1)
	assert.Equal(t, "prd_2", second.Lines[0].ProductID)

	_, err = svc.RemoveItem(ctx, "usr_9", "prd_1")
	assert.NoError(t, err)
}

func TestCartService_ClearAndGetEmpty(t *testing.T) {
	svc, _, carts := newCartFixture()
	ctx := context.Background()
	carts.put("usr_1", models.CartLine{ProductID: "prd_1", Quantity: 2})

	require.NoError(t, svc.Clear(ctx, "usr_1"))
	require.NoError(t, svc.Clear(ctx, "usr_1"))

	view, err := svc.Get(ctx, "usr_1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, d("5").Equal(view.Total))
}

func TestCartService_GetSkipsDeletedProducts(t *testing.T) {
	svc, db, carts := newCartFixture()
	carts.put("usr_1", models.CartLine{ProductID: "prd_1", Quantity: 1}, models.CartLine{ProductID: "gone", Quantity: 3})

	view, err := svc.Get(context.Background(), "usr_1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, db.products["prd_1"].Price.Equal(view.Lines[0].Price))
}

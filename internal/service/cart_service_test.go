package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

func TestCartGetOrCreate(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewCartService(store)
	principal := entity.Principal{SessionKey: "sess-1"}

	cart, err := svc.GetCart(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	again, err := svc.GetCart(context.Background(), principal)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID, "same principal gets the same cart")
}

func TestCartAddLineSumsQuantities(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", "", 50, true)
	svc := NewCartService(store)
	principal := entity.Principal{UserID: "u1"}

	cart, err := svc.AddLine(context.Background(), principal, "p1", 2)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	cart, err = svc.AddLine(context.Background(), principal, "p1", 3)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.Equal(t, "Green Tea", cart.Lines[0].ProductName)
	assert.True(t, cart.TotalPrice().Equal(dec("50.00")))
}

func TestCartAddLineRejectsBadQuantity(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", "", 50, true)
	svc := NewCartService(store)
	principal := entity.Principal{UserID: "u1"}

	_, err := svc.AddLine(context.Background(), principal, "p1", 0)
	assert.Error(t, err)
	_, err = svc.AddLine(context.Background(), principal, "p1", 1000)
	assert.Error(t, err)

	// Summed quantity may not cross the cap either.
	_, err = svc.AddLine(context.Background(), principal, "p1", 600)
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), principal, "p1", 600)
	assert.Error(t, err)
}

func TestCartAddLineRejectsUnavailableProduct(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Retired", "10.00", "", 50, false)
	svc := NewCartService(store)
	principal := entity.Principal{UserID: "u1"}

	_, err := svc.AddLine(context.Background(), principal, "p1", 1)
	assert.ErrorIs(t, err, ErrProductNotSellable)

	_, err = svc.AddLine(context.Background(), principal, "ghost", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCartSetAndRemoveLine(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", "", 50, true)
	seedProduct(store, "p2", "Honey", "25.00", "", 50, true)
	svc := NewCartService(store)
	principal := entity.Principal{UserID: "u1"}

	_, err := svc.AddLine(context.Background(), principal, "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), principal, "p2", 1)
	require.NoError(t, err)

	cart, err := svc.SetLine(context.Background(), principal, "p1", 7)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	for _, l := range cart.Lines {
		if l.ProductID == "p1" {
			assert.Equal(t, 7, l.Quantity)
		}
	}

	// Setting quantity zero removes the line.
	cart, err = svc.SetLine(context.Background(), principal, "p1", 0)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)

	cart, err = svc.RemoveLine(context.Background(), principal, "p2")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartClear(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", "", 50, true)
	svc := NewCartService(store)
	principal := entity.Principal{UserID: "u1"}

	_, err := svc.AddLine(context.Background(), principal, "p1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(context.Background(), principal))

	cart, err := svc.GetCart(context.Background(), principal)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// Clearing a principal with no cart is a no-op.
	assert.NoError(t, svc.Clear(context.Background(), entity.Principal{UserID: "nobody"}))
}

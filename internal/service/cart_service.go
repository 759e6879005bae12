package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

// ErrProductNotSellable rejects cart additions of inactive or deleted
// products. Stock is not checked here; that happens under lock at checkout.
var ErrProductNotSellable = errors.New("product is not available")

type CartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store}
}

// GetCart returns the principal's cart, creating an empty one on first use.
func (s *CartService) GetCart(ctx context.Context, principal entity.Principal) (*entity.Cart, error) {
	cart, err := s.store.GetCart(ctx, principal)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	cart = &entity.Cart{
		ID:         uuid.NewString(),
		UserID:     principal.UserID,
		SessionKey: principal.SessionKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddLine adds quantity of a product to the cart, summing with any existing
// line for the same product.
func (s *CartService) AddLine(ctx context.Context, principal entity.Principal, productID string, quantity int) (*entity.Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Sellable() {
		return nil, ErrProductNotSellable
	}

	cart, err := s.GetCart(ctx, principal)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	for _, line := range cart.Lines {
		if line.ProductID == productID {
			newQuantity += line.Quantity
			break
		}
	}
	if err := checkQuantity(newQuantity); err != nil {
		return nil, err
	}

	line := &entity.CartLine{
		ID:        uuid.NewString(),
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  newQuantity,
		AddedAt:   time.Now(),
	}
	if err := s.store.UpsertCartLine(ctx, line); err != nil {
		return nil, err
	}
	return s.store.GetCart(ctx, principal)
}

// SetLine replaces the quantity of a product line; zero removes it.
func (s *CartService) SetLine(ctx context.Context, principal entity.Principal, productID string, quantity int) (*entity.Cart, error) {
	cart, err := s.GetCart(ctx, principal)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.store.RemoveCartLine(ctx, cart.ID, productID); err != nil {
			return nil, err
		}
		return s.store.GetCart(ctx, principal)
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	line := &entity.CartLine{
		ID:        uuid.NewString(),
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now(),
	}
	if err := s.store.UpsertCartLine(ctx, line); err != nil {
		return nil, err
	}
	return s.store.GetCart(ctx, principal)
}

func (s *CartService) RemoveLine(ctx context.Context, principal entity.Principal, productID string) (*entity.Cart, error) {
	cart, err := s.GetCart(ctx, principal)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveCartLine(ctx, cart.ID, productID); err != nil {
		return nil, err
	}
	return s.store.GetCart(ctx, principal)
}

func (s *CartService) Clear(ctx context.Context, principal entity.Principal) error {
	cart, err := s.store.GetCart(ctx, principal)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.ClearCart(ctx, cart.ID)
}

func checkQuantity(q int) error {
	if q < entity.MinLineQuantity || q > entity.MaxLineQuantity {
		return RequestError(fmt.Sprintf("quantity must be between %d and %d", entity.MinLineQuantity, entity.MaxLineQuantity))
	}
	return nil
}

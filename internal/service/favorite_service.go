package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

// FavoriteService owns the principal's wishlist. Favoriting is idempotent;
// adding a product twice keeps the single existing entry.
type FavoriteService struct {
	store repository.Store
}

func NewFavoriteService(store repository.Store) *FavoriteService {
	return &FavoriteService{store: store}
}

func (s *FavoriteService) List(ctx context.Context, principal entity.Principal) ([]entity.Favorite, error) {
	return s.store.ListFavorites(ctx, principal)
}

// Add puts a product on the wishlist and returns the updated list.
func (s *FavoriteService) Add(ctx context.Context, principal entity.Principal, productID string) ([]entity.Favorite, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Sellable() {
		return nil, ErrProductNotSellable
	}

	fav := &entity.Favorite{
		ID:         uuid.NewString(),
		UserID:     principal.UserID,
		SessionKey: principal.SessionKey,
		ProductID:  productID,
		CreatedAt:  time.Now(),
	}
	if err := s.store.AddFavorite(ctx, fav); err != nil {
		return nil, err
	}
	return s.store.ListFavorites(ctx, principal)
}

// Remove takes a product off the wishlist and returns the updated list.
// Removing a product that is not on it reports ErrNotFound.
func (s *FavoriteService) Remove(ctx context.Context, principal entity.Principal, productID string) ([]entity.Favorite, error) {
	if err := s.store.RemoveFavorite(ctx, principal, productID); err != nil {
		return nil, err
	}
	return s.store.ListFavorites(ctx, principal)
}

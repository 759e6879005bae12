package service

import (
	"context"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

type ProductService struct {
	store repository.Store
}

func NewProductService(store repository.Store) *ProductService {
	return &ProductService{store: store}
}

func (s *ProductService) List(ctx context.Context) ([]entity.Product, error) {
	return s.store.ListActiveProducts(ctx)
}

func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *ProductService) GetBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	return s.store.GetProductBySlug(ctx, slug)
}

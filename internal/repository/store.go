package repository

import (
	"context"
	"errors"
	"time"

	"shop-service/internal/entity"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the shop's persistent state. Plain reads and cart edits go
// through the Store directly; order assembly runs inside a Tx.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*entity.Product, error)
	ListActiveProducts(ctx context.Context) ([]entity.Product, error)

	GetCart(ctx context.Context, p entity.Principal) (*entity.Cart, error)
	CreateCart(ctx context.Context, cart *entity.Cart) error
	UpsertCartLine(ctx context.Context, line *entity.CartLine) error
	RemoveCartLine(ctx context.Context, cartID, productID string) error
	ClearCart(ctx context.Context, cartID string) error

	ListFavorites(ctx context.Context, p entity.Principal) ([]entity.Favorite, error)
	// AddFavorite inserts a wishlist entry; a duplicate (principal, product)
	// pair keeps the existing row and is not an error.
	AddFavorite(ctx context.Context, fav *entity.Favorite) error
	RemoveFavorite(ctx context.Context, p entity.Principal, productID string) error

	GetOrder(ctx context.Context, id string) (*entity.Order, error)
	ListOrders(ctx context.Context, p entity.Principal) ([]entity.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status entity.OrderStatus) error

	// CreateApplication assigns the application number (KURS prefix) and
	// persists the application atomically.
	CreateApplication(ctx context.Context, app *entity.Application) error
}

// Tx is one atomic order-assembly transaction: either every mutation made
// through it becomes visible on Commit, or none do.
//
// LockProducts takes exclusive row locks in the order the ids are given and
// holds them until Commit or Rollback. Callers must pass ids in ascending
// order; that canonical order is what keeps two overlapping assemblies from
// deadlocking each other.
type Tx interface {
	LockProducts(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	CartLines(ctx context.Context, cartID string) ([]entity.CartLine, error)

	// NextNumber allocates the next daily sequence number for a prefix and
	// returns it formatted as PREFIX-YYYYMMDD-NNNNN. The sequence restarts
	// at 1 each day and never repeats within a day.
	NextNumber(ctx context.Context, prefix string, day time.Time) (string, error)

	InsertOrder(ctx context.Context, order *entity.Order) error
	DecrementStock(ctx context.Context, productID string, qty int) error
	ClearCart(ctx context.Context, cartID string) error

	Commit() error
	Rollback() error
}

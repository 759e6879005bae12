package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-service/internal/entity"
)

// MemStore is an in-memory Store with the same observable semantics as
// SQLStore: exclusive per-product row locks taken in the order requested,
// and assembly mutations that only become visible on Commit. Used by tests
// and local development without MySQL.
type MemStore struct {
	mu sync.Mutex

	products  map[string]*memProduct
	carts     map[string]*entity.Cart
	orders    map[string]*entity.Order
	apps      map[string]*entity.Application
	favorites map[string]*entity.Favorite

	// counterMu serializes number allocation the way the MySQL counter row
	// lock does: held from NextNumber until the transaction ends.
	counterMu sync.Mutex
	counters  map[string]int64
}

type memProduct struct {
	mu sync.Mutex
	p  entity.Product
}

func NewMemStore() *MemStore {
	return &MemStore{
		products:  make(map[string]*memProduct),
		carts:     make(map[string]*entity.Cart),
		orders:    make(map[string]*entity.Order),
		apps:      make(map[string]*entity.Application),
		favorites: make(map[string]*entity.Favorite),
		counters:  make(map[string]int64),
	}
}

// SeedProduct inserts or replaces a product row.
func (s *MemStore) SeedProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &memProduct{p: p}
}

func (s *MemStore) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := row.p
	return &p, nil
}

func (s *MemStore) GetProductBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.products {
		if row.p.Slug == slug {
			p := row.p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListActiveProducts(ctx context.Context) ([]entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var products []entity.Product
	for _, row := range s.products {
		if row.p.IsActive && row.p.DeletedAt == nil {
			products = append(products, row.p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemStore) findCart(principal entity.Principal) *entity.Cart {
	for _, c := range s.carts {
		if !principal.Anonymous() && c.UserID == principal.UserID {
			return c
		}
		if principal.Anonymous() && c.SessionKey != "" && c.SessionKey == principal.SessionKey {
			return c
		}
	}
	return nil
}

func (s *MemStore) GetCart(ctx context.Context, principal entity.Principal) (*entity.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.findCart(principal)
	if cart == nil {
		return nil, ErrNotFound
	}
	return s.cartView(cart), nil
}

// cartView copies the cart and fills in current product name/price per line.
func (s *MemStore) cartView(cart *entity.Cart) *entity.Cart {
	out := *cart
	out.Lines = make([]entity.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if row, ok := s.products[line.ProductID]; ok {
			line.ProductName = row.p.Name
			line.UnitPrice = row.p.UnitPrice()
		}
		out.Lines = append(out.Lines, line)
	}
	sort.Slice(out.Lines, func(i, j int) bool { return out.Lines[i].ProductID < out.Lines[j].ProductID })
	return &out
}

func (s *MemStore) CreateCart(ctx context.Context, cart *entity.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cart
	c.Lines = append([]entity.CartLine(nil), cart.Lines...)
	s.carts[c.ID] = &c
	return nil
}

func (s *MemStore) UpsertCartLine(ctx context.Context, line *entity.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[line.CartID]
	if !ok {
		return ErrNotFound
	}
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == line.ProductID {
			cart.Lines[i].Quantity = line.Quantity
			cart.UpdatedAt = time.Now()
			return nil
		}
	}
	cart.Lines = append(cart.Lines, *line)
	cart.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) RemoveCartLine(ctx context.Context, cartID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			cart.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) ClearCart(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[cartID]; ok {
		cart.Lines = nil
		cart.UpdatedAt = time.Now()
	}
	return nil
}

func ownedBy(principal entity.Principal, userID, sessionKey string) bool {
	if !principal.Anonymous() {
		return userID == principal.UserID
	}
	return sessionKey != "" && sessionKey == principal.SessionKey
}

func (s *MemStore) ListFavorites(ctx context.Context, principal entity.Principal) ([]entity.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var favorites []entity.Favorite
	for _, f := range s.favorites {
		if !ownedBy(principal, f.UserID, f.SessionKey) {
			continue
		}
		out := *f
		if row, ok := s.products[f.ProductID]; ok {
			out.ProductName = row.p.Name
			out.UnitPrice = row.p.UnitPrice()
		}
		favorites = append(favorites, out)
	}
	sort.Slice(favorites, func(i, j int) bool {
		if favorites[i].CreatedAt.Equal(favorites[j].CreatedAt) {
			return favorites[i].ProductID < favorites[j].ProductID
		}
		return favorites[i].CreatedAt.After(favorites[j].CreatedAt)
	})
	return favorites, nil
}

func (s *MemStore) AddFavorite(ctx context.Context, fav *entity.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal := entity.Principal{UserID: fav.UserID, SessionKey: fav.SessionKey}
	for _, f := range s.favorites {
		if f.ProductID == fav.ProductID && ownedBy(principal, f.UserID, f.SessionKey) {
			return nil
		}
	}
	f := *fav
	s.favorites[f.ID] = &f
	return nil
}

func (s *MemStore) RemoveFavorite(ctx context.Context, principal entity.Principal, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.favorites {
		if f.ProductID == productID && ownedBy(principal, f.UserID, f.SessionKey) {
			delete(s.favorites, id)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *o
	out.Lines = append([]entity.OrderLine(nil), o.Lines...)
	return &out, nil
}

func (s *MemStore) ListOrders(ctx context.Context, principal entity.Principal) ([]entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []entity.Order
	for _, o := range s.orders {
		match := (!principal.Anonymous() && o.UserID == principal.UserID) ||
			(principal.Anonymous() && o.SessionKey != "" && o.SessionKey == principal.SessionKey)
		if match {
			out := *o
			out.Lines = append([]entity.OrderLine(nil), o.Lines...)
			orders = append(orders, out)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *MemStore) UpdateOrderStatus(ctx context.Context, id string, status entity.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) CreateApplication(ctx context.Context, app *entity.Application) error {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	datePart := app.CreatedAt.Format("20060102")
	key := "KURS:" + datePart
	s.counters[key]++
	app.Number = fmt.Sprintf("KURS-%s-%05d", datePart, s.counters[key])

	a := *app
	s.apps[a.ID] = &a
	return nil
}

// OrderCount reports the number of committed orders; test helper.
func (s *MemStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *MemStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: s}, nil
}

// memTx buffers every mutation locally and applies the lot on Commit, so a
// rollback leaves no trace. Product row mutexes are taken in LockProducts in
// exactly the order the ids arrive, which is what lets the tests prove the
// caller sorts them.
type memTx struct {
	store *MemStore

	locked []*memProduct

	stockDeltas   map[string]int
	insertedOrder *entity.Order
	clearedCarts  []string

	counterHeld bool
	counterKey  string
	number      string

	done bool
}

func (t *memTx) LockProducts(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		t.store.mu.Lock()
		row, ok := t.store.products[id]
		t.store.mu.Unlock()
		if !ok {
			continue
		}
		row.mu.Lock()
		t.locked = append(t.locked, row)
		p := row.p
		out[id] = &p
	}
	return out, nil
}

func (t *memTx) CartLines(ctx context.Context, cartID string) ([]entity.CartLine, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	cart, ok := t.store.carts[cartID]
	if !ok {
		return nil, nil
	}
	return append([]entity.CartLine(nil), cart.Lines...), nil
}

func (t *memTx) NextNumber(ctx context.Context, prefix string, day time.Time) (string, error) {
	if t.counterHeld {
		return "", fmt.Errorf("number already allocated in this transaction")
	}
	t.store.counterMu.Lock()
	t.counterHeld = true

	datePart := day.Format("20060102")
	t.counterKey = prefix + ":" + datePart

	t.store.mu.Lock()
	next := t.store.counters[t.counterKey] + 1
	t.store.mu.Unlock()

	t.number = fmt.Sprintf("%s-%s-%05d", prefix, datePart, next)
	return t.number, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	o := *order
	o.Lines = append([]entity.OrderLine(nil), order.Lines...)
	t.insertedOrder = &o
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	if t.stockDeltas == nil {
		t.stockDeltas = make(map[string]int)
	}
	t.stockDeltas[productID] += qty
	return nil
}

func (t *memTx) ClearCart(ctx context.Context, cartID string) error {
	t.clearedCarts = append(t.clearedCarts, cartID)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	t.store.mu.Lock()
	// Check every delta before touching any row, so a failed commit applies
	// none of them.
	for id, qty := range t.stockDeltas {
		row, ok := t.store.products[id]
		if !ok || row.p.Stock < qty {
			t.store.mu.Unlock()
			t.release()
			return fmt.Errorf("stock underflow on product %s", id)
		}
	}
	for id, qty := range t.stockDeltas {
		row := t.store.products[id]
		row.p.Stock -= qty
		row.p.UpdatedAt = time.Now()
	}
	if t.insertedOrder != nil {
		t.store.orders[t.insertedOrder.ID] = t.insertedOrder
	}
	for _, cartID := range t.clearedCarts {
		if cart, ok := t.store.carts[cartID]; ok {
			cart.Lines = nil
			cart.UpdatedAt = time.Now()
		}
	}
	if t.counterHeld {
		t.store.counters[t.counterKey]++
	}
	t.store.mu.Unlock()

	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

func (t *memTx) release() {
	for _, row := range t.locked {
		row.mu.Unlock()
	}
	t.locked = nil
	if t.counterHeld {
		t.store.counterMu.Unlock()
		t.counterHeld = false
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/entity"
)

// SQLStore is the MySQL-backed Store. Row locking relies on InnoDB
// SELECT ... FOR UPDATE; the IN list is always ordered ascending so every
// assembly requests locks in the same relative order.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const productColumns = `id, name, slug, price, sale_price, stock, is_active, created_at, updated_at, deleted_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*entity.Product, error) {
	p := &entity.Product{}
	var deletedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.SalePrice, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) GetProductBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = ?`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) ListActiveProducts(ctx context.Context) ([]entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE AND deleted_at IS NULL ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *SQLStore) GetCart(ctx context.Context, principal entity.Principal) (*entity.Cart, error) {
	cartQuery := `SELECT id, COALESCE(user_id, ''), COALESCE(session_key, ''), created_at, updated_at FROM carts WHERE `
	var arg string
	if principal.Anonymous() {
		cartQuery += `session_key = ?`
		arg = principal.SessionKey
	} else {
		cartQuery += `user_id = ?`
		arg = principal.UserID
	}

	cart := &entity.Cart{}
	err := s.db.QueryRowContext(ctx, cartQuery, arg).Scan(&cart.ID, &cart.UserID, &cart.SessionKey, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Lines carry the current product name and price for display; frozen
	// prices only exist on order lines.
	lineQuery := `
		SELECT ci.id, ci.product_id, ci.quantity, ci.added_at, p.name,
		       CASE WHEN p.sale_price IS NOT NULL AND p.sale_price < p.price THEN p.sale_price ELSE p.price END
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY ci.product_id`
	rows, err := s.db.QueryContext(ctx, lineQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		line := entity.CartLine{CartID: cart.ID}
		err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.AddedAt, &line.ProductName, &line.UnitPrice)
		if err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, rows.Err()
}

func (s *SQLStore) CreateCart(ctx context.Context, cart *entity.Cart) error {
	query := `INSERT INTO carts (id, user_id, session_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, cart.ID, nullable(cart.UserID), nullable(cart.SessionKey), cart.CreatedAt, cart.UpdatedAt)
	return err
}

func (s *SQLStore) UpsertCartLine(ctx context.Context, line *entity.CartLine) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = VALUES(updated_at)`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, line.ID, line.CartID, line.ProductID, line.Quantity, now, now)
	return err
}

func (s *SQLStore) RemoveCartLine(ctx context.Context, cartID, productID string) error {
	query := `DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`
	res, err := s.db.ExecContext(ctx, query, cartID, productID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ClearCart(ctx context.Context, cartID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}

func (s *SQLStore) ListFavorites(ctx context.Context, principal entity.Principal) ([]entity.Favorite, error) {
	query := `
		SELECT f.id, COALESCE(f.user_id, ''), COALESCE(f.session_key, ''), f.product_id, f.created_at, p.name,
		       CASE WHEN p.sale_price IS NOT NULL AND p.sale_price < p.price THEN p.sale_price ELSE p.price END
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE `
	var arg string
	if principal.Anonymous() {
		query += `f.session_key = ?`
		arg = principal.SessionKey
	} else {
		query += `f.user_id = ?`
		arg = principal.UserID
	}
	query += ` ORDER BY f.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []entity.Favorite
	for rows.Next() {
		var f entity.Favorite
		err := rows.Scan(&f.ID, &f.UserID, &f.SessionKey, &f.ProductID, &f.CreatedAt, &f.ProductName, &f.UnitPrice)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (s *SQLStore) AddFavorite(ctx context.Context, fav *entity.Favorite) error {
	// The unique (owner, product) keys make a repeated add keep the first row.
	query := `INSERT INTO favorites (id, user_id, session_key, product_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`
	_, err := s.db.ExecContext(ctx, query, fav.ID, nullable(fav.UserID), nullable(fav.SessionKey), fav.ProductID, fav.CreatedAt)
	return err
}

func (s *SQLStore) RemoveFavorite(ctx context.Context, principal entity.Principal, productID string) error {
	query := `DELETE FROM favorites WHERE product_id = ? AND `
	var arg string
	if principal.Anonymous() {
		query += `session_key = ?`
		arg = principal.SessionKey
	} else {
		query += `user_id = ?`
		arg = principal.UserID
	}
	res, err := s.db.ExecContext(ctx, query, productID, arg)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, order_number, COALESCE(user_id, ''), COALESCE(session_key, ''), status, payment_method,
	full_name, contact_phone, delivery_address, notes, subtotal, discount_total, total_price, total_items, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*entity.Order, error) {
	o := &entity.Order{}
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.SessionKey, &o.Status, &o.PaymentMethod,
		&o.FullName, &o.ContactPhone, &o.DeliveryAddress, &o.Notes,
		&o.Subtotal, &o.DiscountTotal, &o.TotalPrice, &o.TotalItems, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := s.orderLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

func (s *SQLStore) orderLines(ctx context.Context, orderID string) ([]entity.OrderLine, error) {
	query := `SELECT id, COALESCE(product_id, ''), product_name, quantity, unit_price, total_price, is_sale_price
		FROM order_items WHERE order_id = ?`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []entity.OrderLine
	for rows.Next() {
		line := entity.OrderLine{OrderID: orderID}
		err := rows.Scan(&line.ID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.TotalPrice, &line.IsSalePrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *SQLStore) ListOrders(ctx context.Context, principal entity.Principal) ([]entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE `
	var arg string
	if principal.Anonymous() {
		query += `session_key = ?`
		arg = principal.SessionKey
	} else {
		query += `user_id = ?`
		arg = principal.UserID
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := s.orderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (s *SQLStore) UpdateOrderStatus(ctx context.Context, id string, status entity.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateApplication(ctx context.Context, app *entity.Application) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	number, err := nextNumberTx(ctx, tx, "KURS", app.CreatedAt)
	if err != nil {
		tx.Rollback()
		return err
	}
	app.Number = number

	query := `INSERT INTO applications (id, application_number, full_name, phone, course_name, processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, app.ID, app.Number, app.FullName, app.Phone, app.CourseName, app.Processed, app.CreatedAt)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Begin starts an order-assembly transaction.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) LockProducts(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	if len(ids) == 0 {
		return map[string]*entity.Product{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	// ORDER BY id keeps InnoDB taking the row locks in ascending id order,
	// matching the order every other assembly uses.
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders + `) ORDER BY id FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]*entity.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (t *sqlTx) CartLines(ctx context.Context, cartID string) ([]entity.CartLine, error) {
	query := `SELECT id, product_id, quantity, added_at FROM cart_items WHERE cart_id = ? ORDER BY product_id`
	rows, err := t.tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []entity.CartLine
	for rows.Next() {
		line := entity.CartLine{CartID: cartID}
		err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.AddedAt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *sqlTx) NextNumber(ctx context.Context, prefix string, day time.Time) (string, error) {
	return nextNumberTx(ctx, t.tx, prefix, day)
}

// nextNumberTx bumps the per-(prefix, day) counter row and formats the
// number. LAST_INSERT_ID carries the bumped value back without a second
// race-prone read.
func nextNumberTx(ctx context.Context, tx *sql.Tx, prefix string, day time.Time) (string, error) {
	datePart := day.Format("20060102")

	upsert := `INSERT INTO order_counters (prefix, day, seq) VALUES (?, ?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE seq = LAST_INSERT_ID(seq + 1)`
	if _, err := tx.ExecContext(ctx, upsert, prefix, datePart); err != nil {
		return "", err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT LAST_INSERT_ID()`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, datePart, seq), nil
}

func (t *sqlTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	orderQuery := `INSERT INTO orders (id, order_number, user_id, session_key, status, payment_method,
		full_name, contact_phone, delivery_address, notes, subtotal, discount_total, total_price, total_items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, orderQuery, order.ID, order.Number, nullable(order.UserID), nullable(order.SessionKey),
		order.Status, order.PaymentMethod, order.FullName, order.ContactPhone, order.DeliveryAddress, order.Notes,
		order.Subtotal, order.DiscountTotal, order.TotalPrice, order.TotalItems, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	if len(order.Lines) == 0 {
		return nil
	}

	// Batch insert the snapshot lines.
	lineQuery := `INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, total_price, is_sale_price) VALUES `
	var values []interface{}
	for _, line := range order.Lines {
		lineQuery += "(?, ?, ?, ?, ?, ?, ?, ?),"
		values = append(values, line.ID, order.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.TotalPrice, line.IsSalePrice)
	}
	lineQuery = lineQuery[:len(lineQuery)-1]

	_, err = t.tx.ExecContext(ctx, lineQuery, values...)
	return err
}

func (t *sqlTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	// The row is already locked; the stock >= qty guard is a backstop, not
	// the primary check.
	res, err := t.tx.ExecContext(ctx, `UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
		qty, time.Now(), productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("stock underflow on product %s", productID)
	}
	return nil
}

func (t *sqlTx) ClearCart(ctx context.Context, cartID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

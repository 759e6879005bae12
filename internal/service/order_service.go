package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Prefixes for the daily numbered sequences.
const (
	OrderNumberPrefix       = "OG"
	ApplicationNumberPrefix = "KURS"
)

// OrderService owns checkout (cart to order assembly) and order reads.
type OrderService struct {
	store       repository.Store
	kafkaWriter *kafka.Writer
	idem        idempotencyKeys
	now         func() time.Time
}

// NewOrderService creates a new instance of OrderService. kafkaWriter and
// rdb may be nil; event publishing and idempotency checks are then skipped.
func NewOrderService(store repository.Store, kafkaWriter *kafka.Writer, rdb *redis.Client) *OrderService {
	s := &OrderService{
		store:       store,
		kafkaWriter: kafkaWriter,
		now:         time.Now,
	}
	if rdb != nil {
		s.idem = &redisIdempotency{rdb: rdb}
	}
	return s
}

// CheckoutRequest carries the contact snapshot and payment choice for a new
// order. The cart itself is looked up from the principal.
type CheckoutRequest struct {
	FullName        string               `json:"full_name"`
	ContactPhone    string               `json:"contact_phone"`
	DeliveryAddress string               `json:"delivery_address"`
	Notes           string               `json:"notes"`
	PaymentMethod   entity.PaymentMethod `json:"payment_method"`
	IdempotentKey   string               `json:"-"`
}

func (r *CheckoutRequest) validate() error {
	if r.FullName == "" {
		return RequestError("full_name is required")
	}
	if r.ContactPhone == "" {
		return RequestError("contact_phone is required")
	}
	if r.DeliveryAddress == "" {
		return RequestError("delivery_address is required")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = entity.PaymentCOD
	}
	if !r.PaymentMethod.Valid() {
		return RequestError(fmt.Sprintf("unknown payment method %q", r.PaymentMethod))
	}
	return nil
}

// Checkout turns the principal's cart into an order.
//
// All referenced products are locked in ascending id order, validated under
// lock, and the order insert, stock decrements and cart clear commit as one
// unit. Validation failures across lines are aggregated into a
// ValidationErrors and nothing is mutated.
func (s *OrderService) Checkout(ctx context.Context, principal entity.Principal, req *CheckoutRequest) (*entity.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// SETNX hands the key to exactly one of any concurrent checkouts; the
	// losers are replays. The reservation is released again on every failure
	// path below so the caller can retry with the same key.
	reserved := false
	if req.IdempotentKey != "" && s.idem != nil {
		ok, err := s.idem.Reserve(ctx, req.IdempotentKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrIdempotentReplay
		}
		reserved = true
	}
	committed := false
	defer func() {
		if reserved && !committed {
			if err := s.idem.Release(ctx, req.IdempotentKey); err != nil {
				logger.Warn().Err(err).Msg("failed to release idempotent key")
			}
		}
	}()

	cart, err := s.store.GetCart(ctx, principal)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	order, err := s.assemble(ctx, tx, principal, cart.ID, req)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Str("cart_id", cart.ID).Msg("checkout commit failed")
		return nil, err
	}
	committed = true

	// Post-commit effects: the order exists regardless of how these go.
	if reserved {
		if err := s.idem.Confirm(ctx, req.IdempotentKey); err != nil {
			logger.Warn().Err(err).Msg("failed to record idempotent key")
		}
	}
	if err := s.publishOrderEvent(ctx, order, "created"); err != nil {
		logger.Warn().Err(err).Str("order_number", order.Number).Msg("failed to publish order event")
	}

	logger.Info().Str("order_number", order.Number).Str("subtotal", order.Subtotal.String()).Msg("order created")
	return order, nil
}

// assemble runs inside the transaction: lock, validate, price, write.
func (s *OrderService) assemble(ctx context.Context, tx repository.Tx, principal entity.Principal, cartID string, req *CheckoutRequest) (*entity.Order, error) {
	// Re-read the cart under the transaction; the pre-check outside was
	// only to fail fast on an obviously empty cart.
	rawLines, err := tx.CartLines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	lines := mergeLines(rawLines)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var verrs ValidationErrors
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok || !p.Sellable() {
			le := LineError{ProductID: line.ProductID, Reason: ReasonUnavailable}
			if ok {
				le.ProductName = p.Name
			}
			verrs = append(verrs, le)
			continue
		}
		if p.Stock < line.Quantity {
			verrs = append(verrs, LineError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Reason:      ReasonInsufficientStock,
				Requested:   line.Quantity,
				Available:   p.Stock,
			})
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	now := s.now()
	order := &entity.Order{
		ID:              uuid.NewString(),
		UserID:          principal.UserID,
		SessionKey:      principal.SessionKey,
		Status:          entity.StatusPending,
		PaymentMethod:   req.PaymentMethod,
		FullName:        req.FullName,
		ContactPhone:    req.ContactPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		DiscountTotal:   decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		p := products[line.ProductID]
		unitPrice := p.UnitPrice()
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

		order.Lines = append(order.Lines, entity.OrderLine{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  lineTotal,
			IsSalePrice: p.OnSale(),
		})
		subtotal = subtotal.Add(lineTotal)
		order.TotalItems += line.Quantity
	}
	order.Subtotal = subtotal
	order.TotalPrice = subtotal.Sub(order.DiscountTotal)

	number, err := tx.NextNumber(ctx, OrderNumberPrefix, now)
	if err != nil {
		return nil, err
	}
	order.Number = number

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}
	// Same ascending order as the locks were taken in.
	for _, line := range lines {
		if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}
	if err := tx.ClearCart(ctx, cartID); err != nil {
		return nil, err
	}

	return order, nil
}

// mergeLines collapses duplicate product lines (summed quantities) and
// returns the result sorted ascending by product id, the canonical lock
// order.
func mergeLines(lines []entity.CartLine) []entity.CartLine {
	byProduct := make(map[string]entity.CartLine, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if existing, ok := byProduct[line.ProductID]; ok {
			existing.Quantity += line.Quantity
			byProduct[line.ProductID] = existing
			continue
		}
		byProduct[line.ProductID] = line
	}

	merged := make([]entity.CartLine, 0, len(byProduct))
	for _, line := range byProduct {
		merged = append(merged, line)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}

// GetOrder returns an order if it belongs to the principal.
func (s *OrderService) GetOrder(ctx context.Context, principal entity.Principal, id string) (*entity.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsOrder(principal, order) {
		return nil, repository.ErrNotFound
	}
	return order, nil
}

// ListOrders returns the principal's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, principal entity.Principal) ([]entity.Order, error) {
	if principal.Zero() {
		return nil, nil
	}
	return s.store.ListOrders(ctx, principal)
}

// Cancel cancels a pending or processing order.
func (s *OrderService) Cancel(ctx context.Context, principal entity.Principal, id string) (*entity.Order, error) {
	order, err := s.GetOrder(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !order.Cancellable() {
		return nil, ErrNotCancellable
	}

	if err := s.store.UpdateOrderStatus(ctx, id, entity.StatusCancelled); err != nil {
		logger.Error().Err(err).Str("order_id", id).Msg("failed to cancel order")
		return nil, err
	}
	order.Status = entity.StatusCancelled

	if err := s.publishOrderEvent(ctx, order, "cancelled"); err != nil {
		logger.Warn().Err(err).Str("order_number", order.Number).Msg("failed to publish order event")
	}
	return order, nil
}

func ownsOrder(p entity.Principal, o *entity.Order) bool {
	if !p.Anonymous() {
		return o.UserID == p.UserID
	}
	return p.SessionKey != "" && o.SessionKey == p.SessionKey
}

func (s *OrderService) publishOrderEvent(ctx context.Context, order *entity.Order, key string) error {
	if s.kafkaWriter == nil {
		return nil
	}

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%s-%s", key, order.Number)),
		Value: orderJSON,
	}
	return s.kafkaWriter.WriteMessages(ctx, msg)
}

package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCart rejects checkout before any lock is taken.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrIdempotentReplay means this Idempotent-Key already produced an order.
	ErrIdempotentReplay = errors.New("idempotent key already used")

	// ErrNotCancellable means the order status no longer allows cancelling.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

const (
	ReasonUnavailable       = "product_unavailable"
	ReasonInsufficientStock = "insufficient_stock"
)

// RequestError marks a malformed or incomplete request. The API maps it to
// a 400; everything else unclassified stays a server error.
type RequestError string

func (e RequestError) Error() string { return string(e) }

// LineError is one validation failure for one cart line.
type LineError struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Reason      string `json:"reason"`
	Requested   int    `json:"requested,omitempty"`
	Available   int    `json:"available,omitempty"`
}

func (e LineError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.Reason == ReasonInsufficientStock {
		return fmt.Sprintf("%s: requested %d, available %d", name, e.Requested, e.Available)
	}
	return fmt.Sprintf("%s: product unavailable", name)
}

// ValidationErrors aggregates every line failure found during checkout, so
// the caller can show the full correction list at once.
type ValidationErrors []LineError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, le := range e {
		msgs[i] = le.Error()
	}
	return "checkout validation failed: " + strings.Join(msgs, "; ")
}

// ByProduct groups the messages per product id for API responses.
func (e ValidationErrors) ByProduct() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, le := range e {
		out[le.ProductID] = append(out[le.ProductID], le.Error())
	}
	return out
}

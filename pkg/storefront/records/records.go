// Package records persists the catalog and order state the pipeline
// mutates. Stores return ErrNotFound as a typed result for missing
// records; callers branch on it rather than on driver errors.
package records

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStoreClosed indicates an operation on a closed store.
var ErrStoreClosed = errors.New("record store closed")

// Product is one catalog item.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Code  string  `json:"code"`
	Price float64 `json:"price"`
	Model string  `json:"model"`
}

// Payment methods accepted on an order.
const (
	PaymentCash       = "CASH"
	PaymentCreditCard = "CREDIT_CARD"
	PaymentPaypal     = "PAYPAL"
)

// Shipping speeds.
const (
	ShippingUrgent   = "URGENT"
	ShippingEconomic = "ECONOMIC"
)

// Shipping carriers.
const (
	CarrierUPS   = "UPS"
	CarrierFedex = "FEDEX"
)

// Billing holds how an order is paid.
type Billing struct {
	Payment    string  `json:"payment"`
	TotalPrice float64 `json:"totalPrice"`
}

// Shipping holds how an order is delivered.
type Shipping struct {
	Type    string `json:"type"`
	Carrier string `json:"carrier"`
}

// OrderProduct is one line item, the product as it was at order time.
type OrderProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Code  string  `json:"code"`
	Price float64 `json:"price"`
	Model string  `json:"model"`
}

// Order is one placed order, keyed by (Email, ID).
type Order struct {
	Email     string         `json:"email"`
	ID        string         `json:"id"`
	CreatedAt int64          `json:"createdAt"`
	Billing   Billing        `json:"billing"`
	Shipping  Shipping       `json:"shipping"`
	Products  []OrderProduct `json:"products"`
}

// ProductCodes returns the codes of the order's line items in order.
func (o Order) ProductCodes() []string {
	codes := make([]string, len(o.Products))
	for i, p := range o.Products {
		codes[i] = p.Code
	}
	return codes
}

// ProductStore persists catalog items.
type ProductStore interface {
	// Create persists a new product, assigning its ID, and returns it.
	Create(ctx context.Context, p Product) (Product, error)

	// GetByID returns one product or ErrNotFound.
	GetByID(ctx context.Context, id string) (Product, error)

	// GetByIDs resolves a set of IDs. Any missing ID fails the whole
	// lookup with ErrNotFound.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)

	// List returns all products.
	List(ctx context.Context) ([]Product, error)

	// Update replaces the product with the given ID or returns
	// ErrNotFound.
	Update(ctx context.Context, p Product) (Product, error)

	// Delete removes the product and returns it, or ErrNotFound.
	Delete(ctx context.Context, id string) (Product, error)

	// Close releases store resources.
	Close() error
}

// OrderStore persists orders.
type OrderStore interface {
	// Create persists a new order, assigning its ID and creation time,
	// and returns it.
	Create(ctx context.Context, o Order) (Order, error)

	// Get returns one order by (email, id) or ErrNotFound.
	Get(ctx context.Context, email, id string) (Order, error)

	// ListByEmail returns all orders for an email.
	ListByEmail(ctx context.Context, email string) ([]Order, error)

	// List returns all orders.
	List(ctx context.Context) ([]Order, error)

	// Delete removes the order and returns it, or ErrNotFound.
	Delete(ctx context.Context, email, id string) (Order, error)

	// Close releases store resources.
	Close() error
}

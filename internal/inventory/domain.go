package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Status is the lifecycle state of a product.
type Status string

const (
	// StatusActive products can be sold and edited.
	StatusActive Status = "active"
	// StatusInactive products were logically deleted.
	StatusInactive Status = "inactive"
)

// DefaultDeletionReason is stored when the operator gives no reason.
const DefaultDeletionReason = "Sin especificar"

// maxPrice is the largest value a NUMERIC(10,2) price column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// Product is a sellable item.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
	CurrentStock int             `json:"current_stock"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Active reports whether the product can be sold.
func (p Product) Active() bool {
	return p.Status == StatusActive
}

// ProductInput carries editable product fields.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// Normalize trims text and rounds the price to cents.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Price = in.Price.Round(2)
	return in
}

// Validate checks the input after normalisation.
func (in ProductInput) Validate() error {
	if in.Name == "" {
		return shared.Errorf(shared.ErrValidation, "Product name is required.")
	}
	if len(in.Name) > 100 {
		return shared.Errorf(shared.ErrValidation, "Product name must be at most 100 characters.")
	}
	if in.Price.IsNegative() {
		return shared.Errorf(shared.ErrValidation, "Price must be zero or greater.")
	}
	if in.Price.GreaterThan(maxPrice) {
		return shared.Errorf(shared.ErrValidation, "Price must be at most 99,999,999.99.")
	}
	if in.Stock < 0 {
		return shared.Errorf(shared.ErrValidation, "Stock must be zero or greater.")
	}
	return nil
}

// DeletionLogEntry snapshots a product at the time it was deleted.
type DeletionLogEntry struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	CurrentStock  int             `json:"current_stock"`
	DeletedBy     int64           `json:"deleted_by"`
	DeletedByName string          `json:"deleted_by_name"`
	DeletedAt     time.Time       `json:"deleted_at"`
	Reason        string          `json:"reason"`
}

var (
	// ErrNotFound indicates a missing or already deleted product.
	ErrNotFound = shared.Errorf(shared.ErrNotFound, "Product not found.")
	// ErrInactive indicates an edit on a logically deleted product.
	ErrInactive = shared.Errorf(shared.ErrConflict, "Inactive products cannot be edited.")
	// ErrInsufficientStock is returned by DecrementStock when the guarded
	// update matched no row.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

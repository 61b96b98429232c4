package sales

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

var (
	// ErrOperatorNotFound means the authenticated operator has no active
	// account. It is an authorization failure, never a client error.
	ErrOperatorNotFound = shared.Errorf(shared.ErrForbidden, "The operator is not registered or is inactive.")
	// ErrStockConflict classifies every stock related rejection.
	ErrStockConflict = fmt.Errorf("sales: stock conflict: %w", shared.ErrConflict)
	// ErrProductNotFound is a stock conflict on a product id that does not
	// exist.
	ErrProductNotFound = errors.New("sales: product not found")
	// ErrPriceConflict classifies price and total disagreements.
	ErrPriceConflict = fmt.Errorf("sales: price conflict: %w", shared.ErrConflict)
	// ErrTotalMismatch means the claimed total is not the sum of subtotals.
	ErrTotalMismatch = errors.New("sales: total mismatch")
)

// StockReason says why a line could not be fulfilled.
type StockReason string

const (
	StockMissing      StockReason = "not_found"
	StockInactive     StockReason = "inactive"
	StockInsufficient StockReason = "insufficient"
)

// StockConflictError reports the line that could not be fulfilled.
type StockConflictError struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"product_name,omitempty"`
	Requested int         `json:"requested"`
	Available int         `json:"available"`
	Reason    StockReason `json:"reason"`
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("sales: product %d %s (requested %d, available %d)", e.ProductID, e.Reason, e.Requested, e.Available)
}

// UserMessage implements shared.UserMessager.
func (e *StockConflictError) UserMessage() string {
	switch e.Reason {
	case StockMissing:
		return fmt.Sprintf("Product %d does not exist.", e.ProductID)
	case StockInactive:
		return fmt.Sprintf("Product %q is no longer available.", e.Name)
	default:
		return fmt.Sprintf("Insufficient stock for %q: requested %d, available %d.", e.Name, e.Requested, e.Available)
	}
}

// Details exposes the structured conflict to API callers.
func (e *StockConflictError) Details() any { return e }

// Unwrap exposes the stock conflict class and, for unknown products,
// ErrProductNotFound.
func (e *StockConflictError) Unwrap() []error {
	if e.Reason == StockMissing {
		return []error{ErrStockConflict, ErrProductNotFound}
	}
	return []error{ErrStockConflict}
}

// Fields a PriceConflictError can refer to.
const (
	FieldUnitPrice = "unit_price"
	FieldSubtotal  = "subtotal"
)

// PriceConflictError reports a stale client side unit price or a line
// subtotal that is not quantity times the live price.
type PriceConflictError struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Field     string          `json:"field"`
	Submitted decimal.Decimal `json:"submitted"`
	Current   decimal.Decimal `json:"current"`
}

func (e *PriceConflictError) Error() string {
	if e.Field == FieldSubtotal {
		return fmt.Sprintf("sales: product %d subtotal %s differs from %s", e.ProductID, e.Submitted.StringFixed(2), e.Current.StringFixed(2))
	}
	return fmt.Sprintf("sales: product %d price changed from %s to %s", e.ProductID, e.Submitted.StringFixed(2), e.Current.StringFixed(2))
}

// UserMessage implements shared.UserMessager.
func (e *PriceConflictError) UserMessage() string {
	if e.Field == FieldSubtotal {
		return fmt.Sprintf("The subtotal of %q should be %s. Please review the cart.", e.Name, e.Current.StringFixed(2))
	}
	return fmt.Sprintf("The price of %q changed to %s. Please review the cart.", e.Name, e.Current.StringFixed(2))
}

// Details exposes the structured conflict to API callers.
func (e *PriceConflictError) Details() any { return e }

// Unwrap exposes the price conflict class.
func (e *PriceConflictError) Unwrap() error { return ErrPriceConflict }

// TotalMismatchError reports a claimed total that differs from the sum of
// the server computed subtotals.
type TotalMismatchError struct {
	Claimed  decimal.Decimal `json:"claimed_total"`
	Computed decimal.Decimal `json:"computed_total"`
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("sales: claimed total %s, computed %s", e.Claimed.StringFixed(2), e.Computed.StringFixed(2))
}

// UserMessage implements shared.UserMessager.
func (e *TotalMismatchError) UserMessage() string {
	return fmt.Sprintf("The sale total %s does not match the items total %s.", e.Claimed.StringFixed(2), e.Computed.StringFixed(2))
}

// Details exposes the structured conflict to API callers.
func (e *TotalMismatchError) Details() any { return e }

// Unwrap exposes both the price conflict class and ErrTotalMismatch.
func (e *TotalMismatchError) Unwrap() []error { return []error{ErrPriceConflict, ErrTotalMismatch} }

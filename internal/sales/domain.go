// Package sales records sales atomically: client resolution, sale header,
// line items and stock decrements commit together or not at all.
package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/clients"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// maxLines bounds the size of a single cart.
const maxLines = 200

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentYape PaymentMethod = "yape"
	PaymentPlin PaymentMethod = "plin"
)

// PaymentMethods lists every accepted tender in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCash, PaymentCard, PaymentYape, PaymentPlin}
}

// ParsePaymentMethod accepts the canonical names and the Spanish spellings
// used by older front ends.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash", "efectivo":
		return PaymentCash, nil
	case "card", "tarjeta":
		return PaymentCard, nil
	case "yape":
		return PaymentYape, nil
	case "plin":
		return PaymentPlin, nil
	}
	return "", shared.Errorf(shared.ErrValidation, "Unknown payment method %q.", raw)
}

// LineRequest is one cart line as submitted. UnitPrice and Subtotal are the
// values the client displayed; the server price is authoritative.
type LineRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice *decimal.Decimal
	Subtotal  *decimal.Decimal
}

// SaleRequest is a validated cart ready for processing.
type SaleRequest struct {
	ClientNationalID string
	ClientName       string
	PaymentMethod    PaymentMethod
	Total            decimal.Decimal
	// Date is the client's notion of the sale day. The stored timestamp is
	// always the server clock.
	Date  *time.Time
	Items []LineRequest
}

// Validate checks the request before any transaction opens.
func (r SaleRequest) Validate() error {
	if _, err := clients.NormalizeNationalID(r.ClientNationalID); err != nil {
		return err
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return clients.ErrNameRequired
	}
	if _, err := ParsePaymentMethod(string(r.PaymentMethod)); err != nil {
		return err
	}
	if r.Total.IsNegative() {
		return shared.Errorf(shared.ErrValidation, "The sale total must be zero or greater.")
	}
	if len(r.Items) == 0 {
		return shared.Errorf(shared.ErrValidation, "The sale must contain at least one item.")
	}
	if len(r.Items) > maxLines {
		return shared.Errorf(shared.ErrValidation, "The sale cannot contain more than %d items.", maxLines)
	}
	for i, line := range r.Items {
		if line.ProductID <= 0 {
			return shared.Errorf(shared.ErrValidation, "Item %d has an invalid product id.", i+1)
		}
		if line.Quantity <= 0 {
			return shared.Errorf(shared.ErrValidation, "Item %d must have a quantity greater than zero.", i+1)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return shared.Errorf(shared.ErrValidation, "Item %d has a negative unit price.", i+1)
		}
		if line.Subtotal != nil {
			if line.Subtotal.IsNegative() {
				return shared.Errorf(shared.ErrValidation, "Item %d has a negative subtotal.", i+1)
			}
			if line.UnitPrice != nil {
				want := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
				if !line.Subtotal.Round(2).Equal(want) {
					return shared.Errorf(shared.ErrValidation, "Item %d subtotal %s does not equal %d x %s.",
						i+1, line.Subtotal.StringFixed(2), line.Quantity, line.UnitPrice.StringFixed(2))
				}
			}
		}
	}
	return nil
}

func (r SaleRequest) productIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, line := range r.Items {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// SaleHeader is the row written to sales.
type SaleHeader struct {
	OperatorID    int64
	ClientID      int64
	SoldAt        time.Time
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
}

// LineItem is the row written to sale_items.
type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// ReceiptLine is a committed line as returned to the caller.
type ReceiptLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Receipt describes a committed sale.
type Receipt struct {
	SaleID        int64           `json:"sale_id"`
	ClientID      int64           `json:"client_id"`
	ClientName    string          `json:"client_name"`
	OperatorID    int64           `json:"operator_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	SoldAt        time.Time       `json:"sold_at"`
	Items         []ReceiptLine   `json:"items"`
}

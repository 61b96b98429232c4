// Package reports aggregates the sale ledger into totals and history.
package reports

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

const dateLayout = "2006-01-02"

// Filter narrows sales by inclusive calendar days and client national ID.
type Filter struct {
	From       *time.Time
	To         *time.Time
	NationalID string
}

// Range is a half-open time interval; zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// ParseFilter reads yyyy-mm-dd days in loc.
func ParseFilter(from, to, nationalID string, loc *time.Location) (Filter, error) {
	var f Filter
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			return Filter{}, shared.Errorf(shared.ErrValidation, "Invalid from date %q, expected YYYY-MM-DD.", from)
		}
		f.From = &t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return Filter{}, shared.Errorf(shared.ErrValidation, "Invalid to date %q, expected YYYY-MM-DD.", to)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return Filter{}, shared.Errorf(shared.ErrValidation, "The to date must not be before the from date.")
	}
	f.NationalID = strings.TrimSpace(nationalID)
	return f, nil
}

// Range converts the inclusive days into [from 00:00, day after to 00:00).
func (f Filter) Range() Range {
	var r Range
	if f.From != nil {
		y, m, d := f.From.Date()
		r.From = time.Date(y, m, d, 0, 0, 0, 0, f.From.Location())
	}
	if f.To != nil {
		y, m, d := f.To.Date()
		r.To = time.Date(y, m, d+1, 0, 0, 0, 0, f.To.Location())
	}
	return r
}

// CacheKey renders the filter for use in cache keys.
func (f Filter) CacheKey() string {
	from, to := "-", "-"
	if f.From != nil {
		from = f.From.Format(dateLayout)
	}
	if f.To != nil {
		to = f.To.Format(dateLayout)
	}
	nid := f.NationalID
	if nid == "" {
		nid = "-"
	}
	return strings.Join([]string{from, to, nid}, ":")
}

// Totals is the dashboard summary.
type Totals struct {
	TotalSales          decimal.Decimal            `json:"total_sales"`
	SalesCount          int                        `json:"sales_count"`
	ByPaymentMethod     map[string]decimal.Decimal `json:"by_payment_method"`
	AverageSale         decimal.Decimal            `json:"average_sale"`
	ActiveStock         int                        `json:"active_stock"`
	TodayIncome         decimal.Decimal            `json:"today_income"`
	WeekIncome          decimal.Decimal            `json:"week_income"`
	WeeklyAveragePerDay decimal.Decimal            `json:"weekly_average_per_day"`
	GeneratedAt         time.Time                  `json:"generated_at"`
}

// SaleItemRecord is a line of a historical sale.
type SaleItemRecord struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleRecord is a historical sale with client and operator.
type SaleRecord struct {
	ID               int64            `json:"id"`
	SoldAt           time.Time        `json:"sold_at"`
	Total            decimal.Decimal  `json:"total"`
	PaymentMethod    string           `json:"payment_method"`
	ClientID         int64            `json:"client_id"`
	ClientNationalID string           `json:"client_national_id"`
	ClientName       string           `json:"client_name"`
	OperatorID       int64            `json:"operator_id"`
	OperatorName     string           `json:"operator_name"`
	Items            []SaleItemRecord `json:"items"`
}

// HistoryPage is one page of sale history.
type HistoryPage struct {
	Items      []SaleRecord      `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// ErrSaleNotFound indicates no sale with the id.
var ErrSaleNotFound = shared.Errorf(shared.ErrNotFound, "Sale not found.")

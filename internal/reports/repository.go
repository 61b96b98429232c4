package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Repository runs the aggregate queries.
type Repository interface {
	SumSales(ctx context.Context, f Filter) (decimal.Decimal, int, error)
	SumByPaymentMethod(ctx context.Context, f Filter) (map[string]decimal.Decimal, error)
	ActiveStock(ctx context.Context) (int, error)
	Income(ctx context.Context, r Range) (decimal.Decimal, error)
	DaysWithSales(ctx context.Context, r Range) (int, error)
	ListSales(ctx context.Context, f Filter, page shared.Pagination) ([]SaleRecord, int, error)
	GetSale(ctx context.Context, id int64) (SaleRecord, error)
	SaleItems(ctx context.Context, saleID int64) ([]SaleItemRecord, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// filterClause renders the shared WHERE of sale aggregates. Arguments are
// $1 from, $2 to, $3 national id; NULL means unbounded.
const filterClause = `
WHERE ($1::timestamptz IS NULL OR s.sold_at >= $1)
  AND ($2::timestamptz IS NULL OR s.sold_at < $2)
  AND ($3 = '' OR c.national_id = $3)`

func filterArgs(f Filter) []any {
	r := f.Range()
	return []any{nullableTime(r.From), nullableTime(r.To), f.NationalID}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// SumSales returns the total and number of sales.
func (r *PGRepository) SumSales(ctx context.Context, f Filter) (decimal.Decimal, int, error) {
	var total decimal.Decimal
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(s.total), 0), COUNT(*)
FROM sales s JOIN clients c ON c.id = s.client_id`+filterClause, filterArgs(f)...).Scan(&total, &count)
	return total, count, err
}

// SumByPaymentMethod groups totals by tender.
func (r *PGRepository) SumByPaymentMethod(ctx context.Context, f Filter) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.payment_method, COALESCE(SUM(s.total), 0)
FROM sales s JOIN clients c ON c.id = s.client_id`+filterClause+`
GROUP BY s.payment_method`, filterArgs(f)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var method string
		var total decimal.Decimal
		if err := rows.Scan(&method, &total); err != nil {
			return nil, err
		}
		out[method] = total
	}
	return out, rows.Err()
}

// ActiveStock sums current stock of active products.
func (r *PGRepository) ActiveStock(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(current_stock), 0) FROM products WHERE status = 'active'`).Scan(&total)
	return total, err
}

// Income sums sale totals in the range.
func (r *PGRepository) Income(ctx context.Context, rg Range) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM sales WHERE sold_at >= $1 AND sold_at < $2`, rg.From, rg.To).Scan(&total)
	return total, err
}

// DaysWithSales counts distinct days in the range with at least one sale.
func (r *PGRepository) DaysWithSales(ctx context.Context, rg Range) (int, error) {
	var days int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT (sold_at AT TIME ZONE $3)::date) FROM sales WHERE sold_at >= $1 AND sold_at < $2`,
		rg.From, rg.To, rg.From.Location().String()).Scan(&days)
	return days, err
}

const saleSelect = `SELECT s.id, s.sold_at, s.total, s.payment_method, c.id, c.national_id, c.name,
       u.id, COALESCE(u.first_name || ' ' || u.last_name, '')
FROM sales s
JOIN clients c ON c.id = s.client_id
LEFT JOIN users u ON u.id = s.user_id`

// ListSales returns a page of sales newest first, without items.
func (r *PGRepository) ListSales(ctx context.Context, f Filter, page shared.Pagination) ([]SaleRecord, int, error) {
	args := filterArgs(f)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s JOIN clients c ON c.id = s.client_id`+filterClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, saleSelect+filterClause+`
ORDER BY s.sold_at DESC, s.id DESC LIMIT $4 OFFSET $5`, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []SaleRecord
	for rows.Next() {
		rec, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// GetSale returns one sale without items.
func (r *PGRepository) GetSale(ctx context.Context, id int64) (SaleRecord, error) {
	rec, err := scanSale(r.pool.QueryRow(ctx, saleSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleRecord{}, ErrSaleNotFound
	}
	return rec, err
}

// SaleItems returns the lines of a sale with product names.
func (r *PGRepository) SaleItems(ctx context.Context, saleID int64) ([]SaleItemRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, p.name, i.quantity, i.unit_price, i.subtotal
FROM sale_items i JOIN products p ON p.id = i.product_id
WHERE i.sale_id = $1 ORDER BY i.id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("sale %d items: %w", saleID, err)
	}
	defer rows.Close()
	var out []SaleItemRecord
	for rows.Next() {
		var it SaleItemRecord
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (SaleRecord, error) {
	var rec SaleRecord
	var operatorID *int64
	err := row.Scan(&rec.ID, &rec.SoldAt, &rec.Total, &rec.PaymentMethod, &rec.ClientID, &rec.ClientNationalID,
		&rec.ClientName, &operatorID, &rec.OperatorName)
	if operatorID != nil {
		rec.OperatorID = *operatorID
	}
	return rec, err
}

var _ Repository = (*PGRepository)(nil)

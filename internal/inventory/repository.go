package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlady-pos/vlady-pos/internal/platform/db"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by services.
type TxRepository interface {
	GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DecrementStock(ctx context.Context, id int64, qty int) error
	Deactivate(ctx context.Context, id int64) error
	InsertDeletionLog(ctx context.Context, entry DeletionLogEntry) (int64, error)
}

// PGTxRepository runs product statements on a caller-owned transaction.
type PGTxRepository struct {
	q db.Querier
}

// NewTxRepository wraps an open transaction. Other packages use it to take
// part in a wider unit of work.
func NewTxRepository(q db.Querier) *PGTxRepository {
	return &PGTxRepository{q: q}
}

// WithTx executes the callback inside a read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const productColumns = `id, name, description, price, initial_stock, current_stock, status, created_at, updated_at`

// ListActive returns active products ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE status = 'active' ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// ListLowStock returns active products whose stock is at or below threshold.
func (r *Repository) ListLowStock(ctx context.Context, threshold int) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE status = 'active' AND current_stock <= $1 ORDER BY current_stock, id`, threshold)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// Get returns a product regardless of status.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Create inserts an active product whose current stock equals its initial
// stock.
func (r *Repository) Create(ctx context.Context, in ProductInput) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (name, description, price, initial_stock, current_stock, status)
VALUES ($1, $2, $3, $4, $4, 'active') RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.Stock))
}

// ListDeletionLog returns deletion snapshots newest first.
func (r *Repository) ListDeletionLog(ctx context.Context) ([]DeletionLogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.product_id, l.name, l.description, l.price, l.current_stock,
       l.deleted_by, COALESCE(u.first_name || ' ' || u.last_name, ''), l.deleted_at, l.reason
FROM product_deletion_log l
LEFT JOIN users u ON u.id = l.deleted_by
ORDER BY l.deleted_at DESC, l.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeletionLogEntry
	for rows.Next() {
		var e DeletionLogEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Name, &e.Description, &e.Price, &e.CurrentStock,
			&e.DeletedBy, &e.DeletedByName, &e.DeletedAt, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetProductsForUpdate locks the rows in ascending id order so concurrent
// carts touching the same products cannot deadlock. Missing ids are absent
// from the result.
func (r *PGTxRepository) GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]Product, error) {
	ordered := uniqueSorted(ids)
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ordered)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// UpdateProduct writes editable fields.
func (r *PGTxRepository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET name = $2, description = $3, price = $4, current_stock = $5, updated_at = NOW()
WHERE id = $1`, p.ID, p.Name, p.Description, p.Price, p.CurrentStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty only when enough stock remains.
func (r *PGTxRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET current_stock = current_stock - $2, updated_at = NOW()
WHERE id = $1 AND status = 'active' AND current_stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Deactivate marks the product inactive and zeroes its stock.
func (r *PGTxRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET status = 'inactive', current_stock = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDeletionLog stores a deletion snapshot.
func (r *PGTxRepository) InsertDeletionLog(ctx context.Context, e DeletionLogEntry) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO product_deletion_log (product_id, name, description, price, current_stock, deleted_by, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		e.ProductID, e.Name, e.Description, e.Price, e.CurrentStock, e.DeletedBy, e.Reason).Scan(&id)
	return id, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.InitialStock, &p.CurrentStock, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ TxRepository = (*PGTxRepository)(nil)

package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlady-pos/vlady-pos/internal/auth"
	"github.com/vlady-pos/vlady-pos/internal/clients"
	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// TxRepository is the unit of work seen by the processor. Every call runs on
// the same transaction.
type TxRepository interface {
	// LockOperator verifies the operator is active and keeps the row
	// stable until commit.
	LockOperator(ctx context.Context, operatorID int64) error
	FindOrCreateClient(ctx context.Context, nationalID, name string) (clients.Client, error)
	InsertSaleHeader(ctx context.Context, h SaleHeader) (int64, error)
	GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]inventory.Product, error)
	InsertLineItem(ctx context.Context, saleID int64, item LineItem) error
	DecrementStock(ctx context.Context, productID int64, qty int) error
}

// RepositoryPort opens transactional scopes.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository is the PostgreSQL sale ledger. It composes the operator,
// client and product repositories over one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside a read committed transaction. Serialization
// failures and deadlocks replay fn.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepo(tx))
	})
}

type txRepo struct {
	q        db.Querier
	users    *auth.PGRepository
	clients  *clients.PGTxRepository
	products *inventory.PGTxRepository
}

func newTxRepo(q db.Querier) *txRepo {
	return &txRepo{
		q:        q,
		users:    auth.NewRepository(q),
		clients:  clients.NewTxRepository(q),
		products: inventory.NewTxRepository(q),
	}
}

func (t *txRepo) LockOperator(ctx context.Context, operatorID int64) error {
	if _, err := t.users.LockActive(ctx, operatorID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrOperatorNotFound
		}
		return fmt.Errorf("sales: lock operator: %w", err)
	}
	return nil
}

func (t *txRepo) FindOrCreateClient(ctx context.Context, nationalID, name string) (clients.Client, error) {
	return clients.FindOrCreate(ctx, t.clients, nationalID, name)
}

func (t *txRepo) InsertSaleHeader(ctx context.Context, h SaleHeader) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO sales (user_id, client_id, sold_at, total, payment_method)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		h.OperatorID, h.ClientID, h.SoldAt, h.Total, string(h.PaymentMethod)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert header: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]inventory.Product, error) {
	return t.products.GetProductsForUpdate(ctx, ids)
}

func (t *txRepo) InsertLineItem(ctx context.Context, saleID int64, item LineItem) error {
	_, err := t.q.Exec(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)`, saleID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal)
	if err != nil {
		return fmt.Errorf("sales: insert line item: %w", err)
	}
	return nil
}

func (t *txRepo) DecrementStock(ctx context.Context, productID int64, qty int) error {
	return t.products.DecrementStock(ctx, productID, qty)
}

var _ TxRepository = (*txRepo)(nil)

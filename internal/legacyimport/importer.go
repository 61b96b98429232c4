package legacyimport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlady-pos/vlady-pos/internal/platform/db"
)

// Result counts the rows written by Import. Rows already present are not
// counted, so a repeated run reports zeros.
type Result struct {
	Users     int64
	Clients   int64
	Products  int64
	Sales     int64
	SaleItems int64
	Deletions int64
	Skipped   []Skipped
}

// Importer writes converted legacy data into PostgreSQL.
type Importer struct {
	pool   *pgxpool.Pool
	source Source
	logger *slog.Logger
}

// NewImporter builds an Importer.
func NewImporter(pool *pgxpool.Pool, source Source, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{pool: pool, source: source, logger: logger}
}

// Run reads the legacy snapshot and imports it in a single transaction.
// Legacy ids are kept and the id sequences are moved past them.
func (i *Importer) Run(ctx context.Context) (Result, error) {
	snap, err := i.source.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("legacy snapshot: %w", err)
	}
	batch, skipped := Convert(snap)
	for _, s := range skipped {
		i.logger.Warn("legacy row skipped", slog.String("row", s.String()))
	}

	res := Result{Skipped: skipped}
	err = db.WithTx(ctx, i.pool, func(tx pgx.Tx) error {
		res = Result{Skipped: skipped}
		return writeBatch(ctx, tx, batch, &res)
	})
	if err != nil {
		return Result{}, err
	}
	i.logger.Info("legacy import finished",
		slog.Int64("users", res.Users),
		slog.Int64("clients", res.Clients),
		slog.Int64("products", res.Products),
		slog.Int64("sales", res.Sales),
		slog.Int64("sale_items", res.SaleItems),
		slog.Int64("deletions", res.Deletions),
		slog.Int("skipped", len(skipped)),
	)
	return res, nil
}

func writeBatch(ctx context.Context, tx pgx.Tx, b Batch, res *Result) error {
	pb := &pgx.Batch{}
	for _, u := range b.Users {
		pb.Queue(`INSERT INTO users (id, national_id, first_name, last_name, phone, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING`,
			u.ID, u.NationalID, u.FirstName, u.LastName, u.Phone, u.Email, u.PasswordHash, u.Role)
	}
	if err := sendCounting(ctx, tx, pb, &res.Users); err != nil {
		return fmt.Errorf("insert users: %w", err)
	}

	pb = &pgx.Batch{}
	for _, c := range b.Clients {
		pb.Queue(`INSERT INTO clients (id, national_id, name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, c.NationalID, c.Name)
	}
	if err := sendCounting(ctx, tx, pb, &res.Clients); err != nil {
		return fmt.Errorf("insert clients: %w", err)
	}

	pb = &pgx.Batch{}
	for _, p := range b.Products {
		pb.Queue(`INSERT INTO products (id, name, description, price, initial_stock, current_stock, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING`,
			p.ID, p.Name, p.Description, p.Price, p.InitialStock, p.CurrentStock, p.Status)
	}
	if err := sendCounting(ctx, tx, pb, &res.Products); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}

	for _, s := range b.Sales {
		tag, err := tx.Exec(ctx, `INSERT INTO sales (id, user_id, client_id, sold_at, total, payment_method)
VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			s.ID, s.UserID, s.ClientID, s.SoldAt, s.Total, s.PaymentMethod)
		if err != nil {
			return fmt.Errorf("insert sale %d: %w", s.ID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		res.Sales++
		pb = &pgx.Batch{}
		for _, it := range s.Items {
			pb.Queue(`INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)`, s.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal)
		}
		if err := sendCounting(ctx, tx, pb, &res.SaleItems); err != nil {
			return fmt.Errorf("insert items of sale %d: %w", s.ID, err)
		}
	}

	pb = &pgx.Batch{}
	for _, d := range b.Deletions {
		pb.Queue(`INSERT INTO product_deletion_log (product_id, name, description, price, current_stock, deleted_by, reason)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (SELECT 1 FROM product_deletion_log WHERE product_id = $1)`,
			d.ProductID, d.Name, d.Description, d.Price, d.CurrentStock, d.DeletedBy, d.Reason)
	}
	if err := sendCounting(ctx, tx, pb, &res.Deletions); err != nil {
		return fmt.Errorf("insert deletion log: %w", err)
	}

	for _, table := range []string{"users", "clients", "products", "sales"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST(COALESCE(MAX(id), 0), 1)) FROM %[1]s`, table)); err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

func sendCounting(ctx context.Context, tx pgx.Tx, pb *pgx.Batch, counter *int64) error {
	if pb.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, pb)
	for range pb.Len() {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		*counter += tag.RowsAffected()
	}
	return br.Close()
}

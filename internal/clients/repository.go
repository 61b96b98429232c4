package clients

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

const nationalIDConstraint = "clients_national_id_key"

// TxRepository is the transaction scoped part of the registry.
type TxRepository interface {
	FindByNationalID(ctx context.Context, nationalID string) (Client, error)
	// InsertIfAbsent inserts the client unless the national ID exists and
	// reports whether a row was written.
	InsertIfAbsent(ctx context.Context, nationalID, name string) (Client, bool, error)
}

// PGTxRepository runs registry statements on a pool or transaction.
type PGTxRepository struct {
	q db.Querier
}

// NewTxRepository wraps a querier.
func NewTxRepository(q db.Querier) *PGTxRepository {
	return &PGTxRepository{q: q}
}

// FindByNationalID looks a client up by national ID.
func (r *PGTxRepository) FindByNationalID(ctx context.Context, nationalID string) (Client, error) {
	var c Client
	err := r.q.QueryRow(ctx, `SELECT id, national_id, name, created_at FROM clients WHERE national_id = $1`, nationalID).
		Scan(&c.ID, &c.NationalID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

// InsertIfAbsent relies on ON CONFLICT so a concurrent insert of the same
// national ID never aborts the surrounding transaction.
func (r *PGTxRepository) InsertIfAbsent(ctx context.Context, nationalID, name string) (Client, bool, error) {
	c := Client{NationalID: nationalID, Name: name}
	err := r.q.QueryRow(ctx, `INSERT INTO clients (national_id, name) VALUES ($1, $2)
ON CONFLICT ON CONSTRAINT `+nationalIDConstraint+` DO NOTHING RETURNING id, created_at`, nationalID, name).
		Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, false, nil
	}
	if err != nil {
		return Client{}, false, err
	}
	return c, true, nil
}

// Create inserts a client and fails with ErrDuplicate when the national ID
// is taken.
func (r *PGTxRepository) Create(ctx context.Context, nationalID, name string) (Client, error) {
	c := Client{NationalID: nationalID, Name: name}
	err := r.q.QueryRow(ctx, `INSERT INTO clients (national_id, name) VALUES ($1, $2) RETURNING id, created_at`, nationalID, name).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, nationalIDConstraint) {
			return Client{}, ErrDuplicate
		}
		return Client{}, err
	}
	return c, nil
}

// Repository serves pool scoped reads.
type Repository struct {
	pool *pgxpool.Pool
	*PGTxRepository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, PGTxRepository: NewTxRepository(pool)}
}

// Get returns a client by id.
func (r *Repository) Get(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, national_id, name, created_at FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.NationalID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

// List searches by national ID prefix or name fragment.
func (r *Repository) List(ctx context.Context, search string, page shared.Pagination) ([]Client, int, error) {
	const where = `WHERE ($1 = '' OR national_id LIKE $1 || '%' OR name ILIKE '%' || $1 || '%')`
	search = escapeLike(search)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+where, search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, national_id, name, created_at FROM clients `+where+`
ORDER BY name, id LIMIT $2 OFFSET $3`, search, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.NationalID, &c.Name, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ TxRepository = (*PGTxRepository)(nil)

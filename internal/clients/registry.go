package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// FindOrCreate resolves the client for nationalID inside the caller's
// transaction, creating it when absent. When a concurrent transaction wins
// the insert, the lookup is repeated and returns the winner's row, so a
// national ID never yields two clients. The existing name is kept.
func FindOrCreate(ctx context.Context, tx TxRepository, nationalID, name string) (Client, error) {
	nationalID, err := NormalizeNationalID(nationalID)
	if err != nil {
		return Client{}, err
	}
	name = NormalizeName(name)
	if name == "" {
		return Client{}, ErrNameRequired
	}

	c, err := tx.FindByNationalID(ctx, nationalID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Client{}, fmt.Errorf("clients: lookup: %w", err)
	}

	c, inserted, err := tx.InsertIfAbsent(ctx, nationalID, name)
	if err != nil {
		return Client{}, fmt.Errorf("clients: insert: %w", err)
	}
	if inserted {
		return c, nil
	}

	c, err = tx.FindByNationalID(ctx, nationalID)
	if err != nil {
		return Client{}, fmt.Errorf("clients: lookup after conflict: %w", err)
	}
	return c, nil
}

// ReadRepository serves the registry listing endpoints.
type ReadRepository interface {
	Get(ctx context.Context, id int64) (Client, error)
	List(ctx context.Context, search string, page shared.Pagination) ([]Client, int, error)
}

// Service exposes registry lookups.
type Service struct {
	repo ReadRepository
}

// NewService constructs Service.
func NewService(repo ReadRepository) *Service {
	return &Service{repo: repo}
}

// Get returns a client by id.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	if id <= 0 {
		return Client{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List searches clients and returns pagination metadata.
func (s *Service) List(ctx context.Context, search string, page, perPage int) ([]Client, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.List(ctx, search, p)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListActive(ctx context.Context) ([]Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, in ProductInput) (Product, error)
	ListDeletionLog(ctx context.Context) ([]DeletionLogEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when stock or prices change outside a sale, so
// cached reports can be dropped.
type ChangeNotifier interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates product operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService builds Service. audit and notifier may be nil.
func NewService(repo RepositoryPort, audit AuditPort, notifier ChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// ListActive lists sellable products.
func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	return s.repo.ListActive(ctx)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// ListDeletionLog lists deletion snapshots newest first.
func (s *Service) ListDeletionLog(ctx context.Context) ([]DeletionLogEntry, error) {
	return s.repo.ListDeletionLog(ctx)
}

// LowStock lists active products at or below threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	return s.repo.ListLowStock(ctx, threshold)
}

// Create adds an active product with current stock equal to initial stock.
func (s *Service) Create(ctx context.Context, actorID int64, input ProductInput) (Product, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Create(ctx, input)
	if err != nil {
		return Product{}, fmt.Errorf("inventory: create product: %w", err)
	}
	s.afterChange(ctx, actorID, shared.AuditProductCreated, p.ID, map[string]any{
		"name":  p.Name,
		"price": p.Price.StringFixed(2),
		"stock": p.CurrentStock,
	})
	return p, nil
}

// Update edits name, description, price and current stock of an active
// product.
func (s *Service) Update(ctx context.Context, actorID, id int64, input ProductInput) (Product, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return Product{}, err
	}
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetProductsForUpdate(ctx, []int64{id})
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok {
			return ErrNotFound
		}
		if !p.Active() {
			return ErrInactive
		}
		p.Name = input.Name
		p.Description = input.Description
		p.Price = input.Price
		p.CurrentStock = input.Stock
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.afterChange(ctx, actorID, shared.AuditProductUpdated, id, map[string]any{
		"price": updated.Price.StringFixed(2),
		"stock": updated.CurrentStock,
	})
	return updated, nil
}

// Delete logically removes a product: the row is snapshotted into the
// deletion log, marked inactive and its stock zeroed, all in one
// transaction.
func (s *Service) Delete(ctx context.Context, actorID, id int64, reason string) (DeletionLogEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultDeletionReason
	}
	var entry DeletionLogEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetProductsForUpdate(ctx, []int64{id})
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok || !p.Active() {
			return ErrNotFound
		}
		entry = DeletionLogEntry{
			ProductID:    p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			CurrentStock: p.CurrentStock,
			DeletedBy:    actorID,
			Reason:       reason,
		}
		logID, err := tx.InsertDeletionLog(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = logID
		return tx.Deactivate(ctx, id)
	})
	if err != nil {
		return DeletionLogEntry{}, err
	}
	s.afterChange(ctx, actorID, shared.AuditProductDeleted, id, map[string]any{
		"reason":        reason,
		"stock_at_drop": entry.CurrentStock,
	})
	return entry, nil
}

func (s *Service) afterChange(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "product",
			EntityID: fmt.Sprint(productID),
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("inventory audit", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Invalidate(ctx); err != nil {
			s.logger.Warn("inventory invalidate reports", slog.Any("error", err))
		}
	}
}

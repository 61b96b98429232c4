package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Outcome labels reported to Observer.
const (
	OutcomeRecorded      = "recorded"
	OutcomeInvalid       = "invalid"
	OutcomeForbidden     = "forbidden"
	OutcomeStockConflict = "stock_conflict"
	OutcomePriceConflict = "price_conflict"
	OutcomeRetryable     = "retryable"
	OutcomeError         = "error"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached reports after a commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Observer receives one call per processed sale.
type Observer interface {
	ObserveSale(outcome string, method string, total float64, elapsed time.Duration)
}

// Service is the sale transaction processor.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	reports  Invalidator
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceDeps groups optional collaborators.
type ServiceDeps struct {
	Audit    AuditPort
	Reports  Invalidator
	Observer Observer
	Logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    deps.Audit,
		reports:  deps.Reports,
		observer: deps.Observer,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordSale processes a cart atomically on behalf of operatorID. Either
// the client, header, every line item and every stock decrement commit
// together, or nothing is written.
func (s *Service) RecordSale(ctx context.Context, operatorID int64, req SaleRequest) (Receipt, error) {
	start := s.now()
	receipt, err := s.recordSale(ctx, operatorID, req)
	outcome := classify(err)
	if s.observer != nil {
		total, _ := receipt.Total.Float64()
		s.observer.ObserveSale(outcome, string(req.PaymentMethod), total, s.now().Sub(start))
	}
	if err != nil {
		return Receipt{}, err
	}
	s.afterCommit(ctx, receipt)
	return receipt, nil
}

func (s *Service) recordSale(ctx context.Context, operatorID int64, req SaleRequest) (Receipt, error) {
	if err := req.Validate(); err != nil {
		return Receipt{}, err
	}
	method, _ := ParsePaymentMethod(string(req.PaymentMethod))
	req.PaymentMethod = method
	claimed := req.Total.Round(2)
	if operatorID <= 0 {
		return Receipt{}, ErrOperatorNotFound
	}

	var receipt Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockOperator(ctx, operatorID); err != nil {
			return err
		}
		client, err := tx.FindOrCreateClient(ctx, req.ClientNationalID, req.ClientName)
		if err != nil {
			return err
		}
		soldAt := s.now().UTC()
		saleID, err := tx.InsertSaleHeader(ctx, SaleHeader{
			OperatorID:    operatorID,
			ClientID:      client.ID,
			SoldAt:        soldAt,
			Total:         claimed,
			PaymentMethod: method,
		})
		if err != nil {
			return err
		}

		locked, err := tx.GetProductsForUpdate(ctx, req.productIDs())
		if err != nil {
			return err
		}
		lines, computed, err := processLines(ctx, tx, saleID, req.Items, locked)
		if err != nil {
			return err
		}
		if !computed.Equal(claimed) {
			return &TotalMismatchError{Claimed: claimed, Computed: computed}
		}

		receipt = Receipt{
			SaleID:        saleID,
			ClientID:      client.ID,
			ClientName:    client.Name,
			OperatorID:    operatorID,
			PaymentMethod: method,
			Total:         computed,
			SoldAt:        soldAt,
			Items:         lines,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// processLines validates every line against the locked product snapshot in
// input order, writes it and decrements stock. Repeated product ids are
// checked against their cumulative quantity.
func processLines(ctx context.Context, tx TxRepository, saleID int64, items []LineRequest, locked map[int64]inventory.Product) ([]ReceiptLine, decimal.Decimal, error) {
	taken := make(map[int64]int, len(items))
	lines := make([]ReceiptLine, 0, len(items))
	sum := decimal.Zero
	for _, line := range items {
		p, ok := locked[line.ProductID]
		if !ok {
			return nil, decimal.Zero, &StockConflictError{ProductID: line.ProductID, Requested: line.Quantity, Reason: StockMissing}
		}
		if !p.Active() {
			return nil, decimal.Zero, &StockConflictError{ProductID: p.ID, Name: p.Name, Requested: line.Quantity, Reason: StockInactive}
		}
		available := p.CurrentStock - taken[p.ID]
		if line.Quantity > available {
			return nil, decimal.Zero, &StockConflictError{ProductID: p.ID, Name: p.Name, Requested: line.Quantity, Available: available, Reason: StockInsufficient}
		}
		price := p.Price.Round(2)
		if line.UnitPrice != nil && !line.UnitPrice.Round(2).Equal(price) {
			return nil, decimal.Zero, &PriceConflictError{ProductID: p.ID, Name: p.Name, Field: FieldUnitPrice, Submitted: line.UnitPrice.Round(2), Current: price}
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		if line.Subtotal != nil && !line.Subtotal.Round(2).Equal(subtotal) {
			return nil, decimal.Zero, &PriceConflictError{ProductID: p.ID, Name: p.Name, Field: FieldSubtotal, Submitted: line.Subtotal.Round(2), Current: subtotal}
		}
		if err := tx.InsertLineItem(ctx, saleID, LineItem{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
		}); err != nil {
			return nil, decimal.Zero, err
		}
		if err := tx.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return nil, decimal.Zero, &StockConflictError{ProductID: p.ID, Name: p.Name, Requested: line.Quantity, Available: available, Reason: StockInsufficient}
			}
			return nil, decimal.Zero, err
		}
		taken[p.ID] += line.Quantity
		sum = sum.Add(subtotal)
		lines = append(lines, ReceiptLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			Subtotal:    subtotal,
		})
	}
	return lines, sum, nil
}

// afterCommit runs side effects that must never undo a committed sale.
func (s *Service) afterCommit(ctx context.Context, r Receipt) {
	if s.reports != nil {
		if err := s.reports.Invalidate(ctx); err != nil {
			s.logger.Warn("sales invalidate reports", slog.Int64("sale_id", r.SaleID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  r.OperatorID,
			Action:   shared.AuditSaleRecorded,
			Entity:   "sale",
			EntityID: fmt.Sprint(r.SaleID),
			Meta: map[string]any{
				"client_id":      r.ClientID,
				"total":          r.Total.StringFixed(2),
				"payment_method": string(r.PaymentMethod),
				"items":          len(r.Items),
			},
		}); err != nil {
			s.logger.Warn("sales audit", slog.Int64("sale_id", r.SaleID), slog.Any("error", err))
		}
	}
	s.logger.Info("sale recorded",
		slog.Int64("sale_id", r.SaleID),
		slog.Int64("operator_id", r.OperatorID),
		slog.Int64("client_id", r.ClientID),
		slog.String("total", r.Total.StringFixed(2)),
		slog.String("payment_method", string(r.PaymentMethod)),
		slog.Int("items", len(r.Items)),
	)
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeRecorded
	case errors.Is(err, shared.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrOperatorNotFound):
		return OutcomeForbidden
	case errors.Is(err, ErrStockConflict):
		return OutcomeStockConflict
	case errors.Is(err, ErrPriceConflict):
		return OutcomePriceConflict
	case errors.Is(err, db.ErrRetryable):
		return OutcomeRetryable
	default:
		return OutcomeError
	}
}


package sales

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

type fixture struct {
	ledger   *memoryLedger
	audit    *recordingAudit
	reports  *countingInvalidator
	observer *recordingObserver
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		ledger:   newMemoryLedger(),
		audit:    &recordingAudit{},
		reports:  &countingInvalidator{},
		observer: &recordingObserver{},
	}
	f.service = NewService(f.ledger, ServiceDeps{Audit: f.audit, Reports: f.reports, Observer: f.observer})
	f.ledger.addProduct(1, "Pan francés", "0.50", 100)
	f.ledger.addProduct(2, "Torta de chocolate", "45.00", 3)
	f.ledger.addProduct(3, "Alfajor", "2.50", 20)
	return f
}

func cart(nationalID string, total string, lines ...LineRequest) SaleRequest {
	return SaleRequest{
		ClientNationalID: nationalID,
		ClientName:       "ana pérez",
		PaymentMethod:    PaymentCash,
		Total:            money(total),
		Items:            lines,
	}
}

func line(productID int64, qty int) LineRequest {
	return LineRequest{ProductID: productID, Quantity: qty}
}

// ============================================================================
// SUCCESSFUL SALES
// ============================================================================

func TestRecordSaleCommitsEverything(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	receipt, err := f.service.RecordSale(ctx, 1, cart("12345678", "50.00", line(1, 10), line(2, 1)))
	require.NoError(t, err)

	assert.Equal(t, int64(1), receipt.SaleID)
	assert.Equal(t, "Ana Pérez", receipt.ClientName)
	assert.Equal(t, "50.00", receipt.Total.StringFixed(2))
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, "5.00", receipt.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "Torta de chocolate", receipt.Items[1].ProductName)

	state := f.ledger.snapshot()
	require.Len(t, state.Sales, 1)
	require.Len(t, state.Items, 2)
	sum := money("0")
	for _, it := range state.Items {
		sum = sum.Add(it.Item.Subtotal)
	}
	assert.True(t, sum.Equal(state.Sales[0].Header.Total), "sum of subtotals equals the sale total")

	assert.Equal(t, 90, state.Products[1].CurrentStock)
	assert.Equal(t, 2, state.Products[2].CurrentStock)
	assert.Equal(t, 20, state.Products[3].CurrentStock, "untouched product keeps its stock")

	assert.Equal(t, 1, f.reports.calls)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, shared.AuditSaleRecorded, f.audit.logs[0].Action)
	assert.Equal(t, []string{OutcomeRecorded}, f.observer.outcomes())
}

func TestRecordSaleReusesClientByNationalID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.service.RecordSale(ctx, 1, cart("87654321", "0.50", line(1, 1)))
	require.NoError(t, err)
	req := cart("87654321", "1.00", line(1, 2))
	req.ClientName = "Otro Nombre"
	second, err := f.service.RecordSale(ctx, 2, req)
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, "Ana Pérez", second.ClientName, "existing client name is kept")
	state := f.ledger.snapshot()
	count := 0
	for _, c := range state.Clients {
		if c.NationalID == "87654321" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordSaleRecoversFromClientInsertRace(t *testing.T) {
	f := newFixture()
	f.ledger.raceNationalID = "44556677"

	receipt, err := f.service.RecordSale(context.Background(), 1, cart("44556677", "0.50", line(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "Otra Caja", receipt.ClientName)
	assert.Len(t, f.ledger.snapshot().Clients, 1)
}

func TestRecordSaleDuplicateLinesUseCumulativeQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.RecordSale(ctx, 1, cart("12345678", "135.00", line(2, 2), line(2, 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, f.ledger.stock(2))

	f.ledger.addProduct(4, "Empanada", "4.00", 3)
	before := f.ledger.snapshot()
	_, err = f.service.RecordSale(ctx, 1, cart("12345678", "16.00", line(4, 2), line(4, 2)))
	var stockErr *StockConflictError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(4), stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, before, f.ledger.snapshot())
}

func TestRecordSaleAcceptsMatchingClientPrices(t *testing.T) {
	f := newFixture()
	l := line(3, 4)
	l.UnitPrice = moneyPtr("2.50")
	l.Subtotal = moneyPtr("10.00")

	receipt, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "10", l))
	require.NoError(t, err)
	assert.Equal(t, "10.00", receipt.Total.StringFixed(2))
}

func TestRecordSaleIgnoresInvalidatorFailure(t *testing.T) {
	f := newFixture()
	f.reports.err = errors.New("redis down")

	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "0.50", line(1, 1)))
	require.NoError(t, err)
	assert.Len(t, f.ledger.snapshot().Sales, 1)
}

// ============================================================================
// REJECTIONS AND ROLLBACK
// ============================================================================

func TestRecordSaleInsufficientStockRollsBack(t *testing.T) {
	f := newFixture()
	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "145.00", line(1, 10), line(2, 3), line(3, 2)))
	require.NoError(t, err)

	before := f.ledger.snapshot()
	_, err = f.service.RecordSale(context.Background(), 1, cart("99887766", "45.50", line(1, 1), line(2, 1)))
	var stockErr *StockConflictError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, StockInsufficient, stockErr.Reason)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, "Torta de chocolate", stockErr.Name)

	assert.Equal(t, before, f.ledger.snapshot(), "store state is identical after a failed sale")
	assert.Equal(t, 1, f.reports.calls)
	assert.Len(t, f.audit.logs, 1)
}

func TestRecordSaleScenarioTwoCartsOnFiveUnits(t *testing.T) {
	f := newFixture()
	f.ledger.addProduct(10, "Pie de manzana", "10.00", 5)
	ctx := context.Background()

	_, err := f.service.RecordSale(ctx, 1, cart("12345678", "30.00", line(10, 3)))
	require.NoError(t, err)
	assert.Equal(t, 2, f.ledger.stock(10))

	_, err = f.service.RecordSale(ctx, 1, cart("12345678", "30.00", line(10, 3)))
	var stockErr *StockConflictError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, f.ledger.stock(10))
	assert.Len(t, f.ledger.snapshot().Sales, 1)
}

func TestRecordSaleInactiveAndMissingProducts(t *testing.T) {
	f := newFixture()
	f.ledger.setStatus(3, inventory.StatusInactive)
	ctx := context.Background()

	_, err := f.service.RecordSale(ctx, 1, cart("12345678", "2.50", line(3, 1)))
	var stockErr *StockConflictError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, StockInactive, stockErr.Reason)

	_, err = f.service.RecordSale(ctx, 1, cart("12345678", "1.00", line(999, 1)))
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, StockMissing, stockErr.Reason)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, f.ledger.snapshot().Sales)
}

func TestRecordSalePriceConflict(t *testing.T) {
	f := newFixture()
	before := f.ledger.snapshot()
	l := line(2, 1)
	l.UnitPrice = moneyPtr("40.00")

	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "40.00", l))
	var priceErr *PriceConflictError
	require.ErrorAs(t, err, &priceErr)
	assert.Equal(t, "45.00", priceErr.Current.StringFixed(2))
	assert.Equal(t, FieldUnitPrice, priceErr.Field)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, before, f.ledger.snapshot())
	assert.Equal(t, []string{OutcomePriceConflict}, f.observer.outcomes())
}

func TestRecordSaleSubtotalConflict(t *testing.T) {
	f := newFixture()
	before := f.ledger.snapshot()
	l := line(3, 4)
	l.Subtotal = moneyPtr("9.00")

	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "10.00", l))
	var priceErr *PriceConflictError
	require.ErrorAs(t, err, &priceErr)
	assert.Equal(t, FieldSubtotal, priceErr.Field)
	assert.Equal(t, "9.00", priceErr.Submitted.StringFixed(2))
	assert.Equal(t, "10.00", priceErr.Current.StringFixed(2))
	assert.ErrorIs(t, err, ErrPriceConflict)
	assert.Equal(t, before, f.ledger.snapshot())
	assert.Equal(t, []string{OutcomePriceConflict}, f.observer.outcomes())

	l.Subtotal = moneyPtr("10.00")
	receipt, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "10.00", l))
	require.NoError(t, err)
	assert.Equal(t, "10.00", receipt.Total.StringFixed(2))
}

func TestRecordSaleTotalMismatch(t *testing.T) {
	f := newFixture()
	before := f.ledger.snapshot()

	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "99.00", line(1, 2)))
	var mismatch *TotalMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "1.00", mismatch.Computed.StringFixed(2))
	assert.ErrorIs(t, err, ErrTotalMismatch)
	assert.Equal(t, before, f.ledger.snapshot())
}

func TestRecordSaleUnknownOperator(t *testing.T) {
	f := newFixture()
	before := f.ledger.snapshot()

	_, err := f.service.RecordSale(context.Background(), 42, cart("12345678", "0.50", line(1, 1)))
	assert.ErrorIs(t, err, ErrOperatorNotFound)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, before, f.ledger.snapshot())

	_, err = f.service.RecordSale(context.Background(), 0, cart("12345678", "0.50", line(1, 1)))
	assert.ErrorIs(t, err, ErrOperatorNotFound)
	assert.Equal(t, []string{OutcomeForbidden, OutcomeForbidden}, f.observer.outcomes())
}

func TestRecordSaleStorageFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.ledger.failInsertItem = 2
	before := f.ledger.snapshot()

	_, err := f.service.RecordSale(context.Background(), 1, cart("12345678", "45.50", line(1, 1), line(2, 1)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, before, f.ledger.snapshot())
	assert.Equal(t, []string{OutcomeError}, f.observer.outcomes())
	assert.Zero(t, f.reports.calls)
}

func TestRecordSaleValidation(t *testing.T) {
	tests := []struct {
		name string
		req  SaleRequest
	}{
		{"no items", cart("12345678", "0")},
		{"zero quantity", cart("12345678", "0", line(1, 0))},
		{"negative total", cart("12345678", "-1", line(1, 1))},
		{"short national id", cart("1234", "0.50", line(1, 1))},
		{"bad product id", cart("12345678", "0.50", line(0, 1))},
		{"unknown payment", func() SaleRequest {
			r := cart("12345678", "0.50", line(1, 1))
			r.PaymentMethod = "bitcoin"
			return r
		}()},
		{"blank client name", func() SaleRequest {
			r := cart("12345678", "0.50", line(1, 1))
			r.ClientName = "  "
			return r
		}()},
		{"inconsistent subtotal", func() SaleRequest {
			l := line(1, 2)
			l.UnitPrice = moneyPtr("0.50")
			l.Subtotal = moneyPtr("2.00")
			return cart("12345678", "1.00", l)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			before := f.ledger.snapshot()
			_, err := f.service.RecordSale(context.Background(), 1, tt.req)
			assert.ErrorIs(t, err, shared.ErrValidation)
			assert.Equal(t, before, f.ledger.snapshot())
		})
	}
}

func TestParsePaymentMethodSpanishAliases(t *testing.T) {
	m, err := ParsePaymentMethod("Efectivo")
	require.NoError(t, err)
	assert.Equal(t, PaymentCash, m)
	m, err = ParsePaymentMethod("tarjeta")
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, m)
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func TestRecordSaleLastUnitRace(t *testing.T) {
	f := newFixture()
	f.ledger.addProduct(20, "Última torta", "30.00", 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.service.RecordSale(context.Background(), int64(i+1), cart("12345678", "30.00", line(20, 1)))
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		var stockErr *StockConflictError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 0, f.ledger.stock(20))
}

func TestRecordSaleConcurrentFirstTimeClient(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.service.RecordSale(context.Background(), 1, cart("11223344", "0.50", line(1, 1)))
			if err == nil {
				ids[i] = r.ClientID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.ledger.snapshot().Clients, 1)
	assert.Equal(t, 92, f.ledger.stock(1))
}

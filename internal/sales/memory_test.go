package sales

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/clients"
	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// ============================================================================
// IN-MEMORY LEDGER
// ============================================================================

type storedSale struct {
	ID     int64
	Header SaleHeader
}

type storedItem struct {
	SaleID int64
	Item   LineItem
}

type ledgerState struct {
	Products     map[int64]inventory.Product
	Clients      map[int64]clients.Client
	Sales        []storedSale
	Items        []storedItem
	NextClientID int64
	NextSaleID   int64
}

func (s ledgerState) clone() ledgerState {
	out := s
	out.Products = make(map[int64]inventory.Product, len(s.Products))
	for k, v := range s.Products {
		out.Products[k] = v
	}
	out.Clients = make(map[int64]clients.Client, len(s.Clients))
	for k, v := range s.Clients {
		out.Clients[k] = v
	}
	out.Sales = append([]storedSale(nil), s.Sales...)
	out.Items = append([]storedItem(nil), s.Items...)
	return out
}

// memoryLedger serialises transactions with one store-wide lock, standing in
// for row locks, and restores the snapshot when the unit of work fails.
type memoryLedger struct {
	mu        sync.Mutex
	state     ledgerState
	operators map[int64]bool

	// failInsertItem makes the nth InsertLineItem call fail with a storage error.
	failInsertItem int
	itemInserts    int
	// raceNationalID simulates a concurrent insert of the same client that
	// lands between the lookup and the insert.
	raceNationalID string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		state: ledgerState{
			Products:     make(map[int64]inventory.Product),
			Clients:      make(map[int64]clients.Client),
			NextClientID: 1,
			NextSaleID:   1,
		},
		operators: map[int64]bool{1: true, 2: true},
	}
}

func (m *memoryLedger) addProduct(id int64, name, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Products[id] = inventory.Product{
		ID:           id,
		Name:         name,
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
		CurrentStock: stock,
		Status:       inventory.StatusActive,
	}
}

func (m *memoryLedger) setStatus(id int64, status inventory.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.Products[id]
	p.Status = status
	m.state.Products[id] = p
}

func (m *memoryLedger) snapshot() ledgerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memoryLedger) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Products[id].CurrentStock
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.state.clone()
	if err := fn(ctx, &memoryLedgerTx{m: m}); err != nil {
		m.state = before
		return err
	}
	return nil
}

type memoryLedgerTx struct {
	m *memoryLedger
}

func (tx *memoryLedgerTx) LockOperator(_ context.Context, operatorID int64) error {
	if !tx.m.operators[operatorID] {
		return ErrOperatorNotFound
	}
	return nil
}

func (tx *memoryLedgerTx) FindOrCreateClient(ctx context.Context, nationalID, name string) (clients.Client, error) {
	return clients.FindOrCreate(ctx, tx, nationalID, name)
}

func (tx *memoryLedgerTx) FindByNationalID(_ context.Context, nationalID string) (clients.Client, error) {
	for _, c := range tx.m.state.Clients {
		if c.NationalID == nationalID {
			return c, nil
		}
	}
	return clients.Client{}, clients.ErrNotFound
}

func (tx *memoryLedgerTx) InsertIfAbsent(ctx context.Context, nationalID, name string) (clients.Client, bool, error) {
	if tx.m.raceNationalID == nationalID {
		tx.m.raceNationalID = ""
		tx.insertClient(nationalID, "Otra Caja")
	}
	if _, err := tx.FindByNationalID(ctx, nationalID); err == nil {
		return clients.Client{}, false, nil
	}
	return tx.insertClient(nationalID, name), true, nil
}

func (tx *memoryLedgerTx) insertClient(nationalID, name string) clients.Client {
	s := &tx.m.state
	c := clients.Client{ID: s.NextClientID, NationalID: nationalID, Name: name}
	s.Clients[c.ID] = c
	s.NextClientID++
	return c
}

func (tx *memoryLedgerTx) InsertSaleHeader(_ context.Context, h SaleHeader) (int64, error) {
	s := &tx.m.state
	id := s.NextSaleID
	s.NextSaleID++
	s.Sales = append(s.Sales, storedSale{ID: id, Header: h})
	return id, nil
}

func (tx *memoryLedgerTx) GetProductsForUpdate(_ context.Context, ids []int64) (map[int64]inventory.Product, error) {
	out := make(map[int64]inventory.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.m.state.Products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memoryLedgerTx) InsertLineItem(_ context.Context, saleID int64, item LineItem) error {
	tx.m.itemInserts++
	if tx.m.failInsertItem > 0 && tx.m.itemInserts == tx.m.failInsertItem {
		return errors.New("connection reset by peer")
	}
	tx.m.state.Items = append(tx.m.state.Items, storedItem{SaleID: saleID, Item: item})
	return nil
}

func (tx *memoryLedgerTx) DecrementStock(_ context.Context, productID int64, qty int) error {
	p, ok := tx.m.state.Products[productID]
	if !ok || !p.Active() || p.CurrentStock < qty {
		return inventory.ErrInsufficientStock
	}
	p.CurrentStock -= qty
	tx.m.state.Products[productID] = p
	return nil
}

// ============================================================================
// COLLABORATOR FAKES
// ============================================================================

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

type observedSale struct {
	outcome string
	method  string
	total   float64
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observedSale
}

func (o *recordingObserver) ObserveSale(outcome, method string, total float64, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observedSale{outcome: outcome, method: method, total: total})
}

func (o *recordingObserver) outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.seen))
	for _, s := range o.seen {
		out = append(out, s.outcome)
	}
	return out
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func moneyPtr(v string) *decimal.Decimal {
	d := money(v)
	return &d
}

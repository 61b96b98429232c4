package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

type stubRepo struct {
	sumCalls  atomic.Int32
	itemCalls atomic.Int32
	gate      chan struct{}

	total   decimal.Decimal
	count   int
	methods map[string]decimal.Decimal
	stock   int
	today   decimal.Decimal
	week    decimal.Decimal
	days    int
	sales   []SaleRecord
	items   map[int64][]SaleItemRecord

	mu         sync.Mutex
	lastFilter Filter
	lastRanges []Range
}

func (s *stubRepo) SumSales(ctx context.Context, f Filter) (decimal.Decimal, int, error) {
	s.sumCalls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return decimal.Zero, 0, ctx.Err()
		}
	}
	s.mu.Lock()
	s.lastFilter = f
	s.mu.Unlock()
	return s.total, s.count, nil
}

func (s *stubRepo) SumByPaymentMethod(context.Context, Filter) (map[string]decimal.Decimal, error) {
	return s.methods, nil
}

func (s *stubRepo) ActiveStock(context.Context) (int, error) { return s.stock, nil }

func (s *stubRepo) Income(_ context.Context, r Range) (decimal.Decimal, error) {
	s.mu.Lock()
	s.lastRanges = append(s.lastRanges, r)
	s.mu.Unlock()
	if r.To.Sub(r.From) > 24*time.Hour {
		return s.week, nil
	}
	return s.today, nil
}

func (s *stubRepo) DaysWithSales(context.Context, Range) (int, error) { return s.days, nil }

func (s *stubRepo) ListSales(_ context.Context, _ Filter, page shared.Pagination) ([]SaleRecord, int, error) {
	start := page.Offset()
	if start > len(s.sales) {
		start = len(s.sales)
	}
	end := start + page.PerPage
	if end > len(s.sales) {
		end = len(s.sales)
	}
	out := make([]SaleRecord, end-start)
	copy(out, s.sales[start:end])
	return out, len(s.sales), nil
}

func (s *stubRepo) GetSale(_ context.Context, id int64) (SaleRecord, error) {
	for _, rec := range s.sales {
		if rec.ID == id {
			return rec, nil
		}
	}
	return SaleRecord{}, ErrSaleNotFound
}

func (s *stubRepo) SaleItems(_ context.Context, saleID int64) ([]SaleItemRecord, error) {
	s.itemCalls.Add(1)
	return s.items[saleID], nil
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		total: decimal.RequireFromString("100.00"),
		count: 3,
		methods: map[string]decimal.Decimal{
			"cash": decimal.RequireFromString("60.00"),
			"yape": decimal.RequireFromString("40.00"),
		},
		stock: 42,
		today: decimal.RequireFromString("30.00"),
		week:  decimal.RequireFromString("100.00"),
		days:  3,
	}
}

func newTestService(t *testing.T, repo Repository) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }
	return NewService(repo, NewCache(client, time.Minute), nil, WithLocation(lima), WithClock(clock)), mr
}

func TestTotalsComputesIndicators(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo)

	totals, err := svc.Totals(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, "100.00", totals.TotalSales.StringFixed(2))
	assert.Equal(t, 3, totals.SalesCount)
	assert.Equal(t, "33.33", totals.AverageSale.StringFixed(2))
	assert.Equal(t, 42, totals.ActiveStock)
	assert.Equal(t, "30.00", totals.TodayIncome.StringFixed(2))
	assert.Equal(t, "100.00", totals.WeekIncome.StringFixed(2))
	assert.Equal(t, "33.33", totals.WeeklyAveragePerDay.StringFixed(2))
	assert.Equal(t, "60.00", totals.ByPaymentMethod["cash"].StringFixed(2))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.lastRanges, 2)
	for _, r := range repo.lastRanges {
		assert.Equal(t, "2024-05-11T00:00:00-05:00", r.To.Format(time.RFC3339))
	}
}

func TestTotalsWithoutSales(t *testing.T) {
	repo := &stubRepo{}
	svc, _ := newTestService(t, repo)

	totals, err := svc.Totals(context.Background(), Filter{})
	require.NoError(t, err)
	assert.True(t, totals.AverageSale.IsZero())
	assert.True(t, totals.WeeklyAveragePerDay.IsZero())
	assert.NotNil(t, totals.ByPaymentMethod)
}

func TestTotalsCachedUntilInvalidated(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Totals(ctx, Filter{})
	require.NoError(t, err)
	_, err = svc.Totals(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.sumCalls.Load())

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Totals(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.sumCalls.Load())
}

func TestTotalsCacheKeyedByFilter(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Totals(ctx, Filter{})
	require.NoError(t, err)
	_, err = svc.Totals(ctx, Filter{NationalID: "87654321"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.sumCalls.Load())

	repo.mu.Lock()
	assert.Equal(t, "87654321", repo.lastFilter.NationalID)
	repo.mu.Unlock()
}

func TestTotalsCoalescesConcurrentRequests(t *testing.T) {
	repo := newStubRepo()
	repo.gate = make(chan struct{})
	svc, _ := newTestService(t, repo)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Totals(context.Background(), Filter{})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return repo.sumCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), repo.sumCalls.Load())
}

func TestTotalsDegradesWithoutRedis(t *testing.T) {
	repo := newStubRepo()
	svc, mr := newTestService(t, repo)
	mr.Close()

	totals, err := svc.Totals(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, totals.SalesCount)
}

func TestHistoryLoadsItems(t *testing.T) {
	repo := newStubRepo()
	repo.items = map[int64][]SaleItemRecord{}
	for i := int64(1); i <= 5; i++ {
		repo.sales = append(repo.sales, SaleRecord{ID: 6 - i, Total: decimal.NewFromInt(i)})
		repo.items[6-i] = []SaleItemRecord{{ProductID: 1, ProductName: "Pan francés", Quantity: int(i)}}
	}
	svc, _ := newTestService(t, repo)

	page, err := svc.History(context.Background(), Filter{}, 1, 3)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, int64(5), page.Items[0].ID)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	for _, rec := range page.Items {
		require.Len(t, rec.Items, 1)
		assert.Equal(t, "Pan francés", rec.Items[0].ProductName)
	}
	assert.Equal(t, int32(3), repo.itemCalls.Load())

	page, err = svc.History(context.Background(), Filter{}, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestSaleNotFound(t *testing.T) {
	svc, _ := newTestService(t, newStubRepo())
	_, err := svc.Sale(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestParseFilterInclusiveDays(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	f, err := ParseFilter("2024-05-01", "2024-05-03", " 87654321 ", lima)
	require.NoError(t, err)
	r := f.Range()
	assert.Equal(t, "2024-05-01T00:00:00-05:00", r.From.Format(time.RFC3339))
	assert.Equal(t, "2024-05-04T00:00:00-05:00", r.To.Format(time.RFC3339))
	assert.Equal(t, "87654321", f.NationalID)
	assert.Equal(t, "2024-05-01:2024-05-03:87654321", f.CacheKey())

	_, err = ParseFilter("2024-05-03", "2024-05-01", "", lima)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = ParseFilter("01/05/2024", "", "", lima)
	assert.ErrorIs(t, err, shared.ErrValidation)

	f, err = ParseFilter("", "", "", lima)
	require.NoError(t, err)
	assert.True(t, f.Range().From.IsZero())
	assert.Equal(t, "-:-:-", f.CacheKey())
}

func TestWatchInvalidations(t *testing.T) {
	svc, _ := newTestService(t, newStubRepo())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.WatchInvalidations(ctx, func(v int64) { seen.Store(v) })
	}()

	require.Eventually(t, func() bool {
		_ = svc.Invalidate(context.Background())
		return seen.Load() > 0
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	<-done
}

package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

const (
	weekDays       = 7
	itemLoadLimit  = 4
	totalsCacheTag = "totals"
)

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	ObserveReportCache(report string, hit bool)
}

// Service exposes reporting use cases.
type Service struct {
	repo     Repository
	cache    *Cache
	flight   flight
	loc      *time.Location
	observer CacheObserver
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithLocation sets the business timezone used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCacheObserver reports cache hits and misses.
func WithCacheObserver(o CacheObserver) Option {
	return func(s *Service) { s.observer = o }
}

// NewService builds the reporting service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, cache: cache, loc: time.UTC, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the business timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Totals returns the dashboard summary for the filter.
func (s *Service) Totals(ctx context.Context, f Filter) (Totals, error) {
	now := s.now().In(s.loc)
	key, err := s.cache.BuildKey(ctx, totalsCacheTag, now.Format(dateLayout), f.CacheKey())
	if err != nil {
		s.logger.Warn("report cache version unavailable", slog.Any("error", err))
		key = "reports:" + totalsCacheTag + ":" + now.Format(dateLayout) + ":" + f.CacheKey()
	}
	val, err, _ := s.flight.do(ctx, key, func(ctx context.Context) (any, error) {
		var out Totals
		hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.computeTotals(ctx, f, now)
		})
		if s.observer != nil && err == nil {
			s.observer.ObserveReportCache(totalsCacheTag, hit)
		}
		return out, err
	})
	if err != nil {
		return Totals{}, err
	}
	return val.(Totals), nil
}

func (s *Service) computeTotals(ctx context.Context, f Filter, now time.Time) (Totals, error) {
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	tomorrow := todayStart.AddDate(0, 0, 1)
	today := Range{From: todayStart, To: tomorrow}
	week := Range{From: todayStart.AddDate(0, 0, -(weekDays - 1)), To: tomorrow}

	out := Totals{GeneratedAt: now.UTC()}
	var days int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.TotalSales, out.SalesCount, err = s.repo.SumSales(gctx, f)
		return wrap("sum sales", err)
	})
	g.Go(func() error {
		var err error
		out.ByPaymentMethod, err = s.repo.SumByPaymentMethod(gctx, f)
		return wrap("sum by payment method", err)
	})
	g.Go(func() error {
		var err error
		out.ActiveStock, err = s.repo.ActiveStock(gctx)
		return wrap("active stock", err)
	})
	g.Go(func() error {
		var err error
		out.TodayIncome, err = s.repo.Income(gctx, today)
		return wrap("today income", err)
	})
	g.Go(func() error {
		var err error
		out.WeekIncome, err = s.repo.Income(gctx, week)
		return wrap("week income", err)
	})
	g.Go(func() error {
		var err error
		days, err = s.repo.DaysWithSales(gctx, week)
		return wrap("days with sales", err)
	})
	if err := g.Wait(); err != nil {
		return Totals{}, err
	}

	if out.ByPaymentMethod == nil {
		out.ByPaymentMethod = map[string]decimal.Decimal{}
	}
	out.AverageSale = decimal.Zero
	if out.SalesCount > 0 {
		out.AverageSale = out.TotalSales.Div(decimal.NewFromInt(int64(out.SalesCount))).Round(2)
	}
	out.WeeklyAveragePerDay = decimal.Zero
	if days > 0 {
		out.WeeklyAveragePerDay = out.WeekIncome.Div(decimal.NewFromInt(int64(days))).Round(2)
	}
	return out, nil
}

// History returns a page of sales with their line items.
func (s *Service) History(ctx context.Context, f Filter, pageNum, perPage int) (HistoryPage, error) {
	page := shared.NewPagination(pageNum, perPage, 0)
	records, total, err := s.repo.ListSales(ctx, f, page)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("list sales: %w", err)
	}
	if records == nil {
		records = []SaleRecord{}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(itemLoadLimit)
	for i := range records {
		g.Go(func() error {
			items, err := s.repo.SaleItems(gctx, records[i].ID)
			if err != nil {
				return err
			}
			records[i].Items = nonNilItems(items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{Items: records, Pagination: shared.NewPagination(page.Page, page.PerPage, total)}, nil
}

// Sale returns one sale with its items.
func (s *Service) Sale(ctx context.Context, id int64) (SaleRecord, error) {
	rec, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return SaleRecord{}, err
	}
	items, err := s.repo.SaleItems(ctx, id)
	if err != nil {
		return SaleRecord{}, err
	}
	rec.Items = nonNilItems(items)
	return rec, nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm precomputes the unfiltered totals for the current day.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Totals(ctx, Filter{})
	return err
}

// WatchInvalidations calls fn for every cache version published by any
// instance until ctx ends.
func (s *Service) WatchInvalidations(ctx context.Context, fn func(version int64)) {
	for ver := range s.cache.Subscribe(ctx) {
		s.logger.Debug("report cache bumped", slog.Int64("version", ver))
		fn(ver)
	}
}

func nonNilItems(items []SaleItemRecord) []SaleItemRecord {
	if items == nil {
		return []SaleItemRecord{}
	}
	return items
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vlady-pos/vlady-pos/internal/inventory"
	jobmetrics "github.com/vlady-pos/vlady-pos/internal/jobs"
)

// LowStockLister lists active products at or below a threshold.
type LowStockLister interface {
	LowStock(ctx context.Context, threshold int) ([]inventory.Product, error)
}

// LowStockScanJob logs products that need restocking and publishes the
// count as a gauge.
type LowStockScanJob struct {
	Inventory        LowStockLister
	DefaultThreshold int
	Logger           *slog.Logger
	Metrics          *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(inv LowStockLister, threshold int, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inv, DefaultThreshold: threshold, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	threshold := payload.Threshold
	if threshold <= 0 {
		threshold = j.DefaultThreshold
	}

	metrics := jobMetrics(j.Metrics)
	tracker := metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskLowStockScan).With(slog.Int("threshold", threshold))
	products, err := j.Inventory.LowStock(ctx, threshold)
	if err != nil {
		logger.Error("list low stock", slog.Any("error", err))
		return err
	}
	metrics.SetLowStock(len(products))
	for _, p := range products {
		logger.Warn("product low on stock",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("current_stock", p.CurrentStock),
		)
	}
	logger.Info("low stock scan completed", slog.Int("products", len(products)))
	return nil
}

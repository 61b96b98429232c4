package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vlady-pos/vlady-pos/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// warmupTimeout bounds a single recomputation of the dashboard totals.
const warmupTimeout = 20 * time.Second

// ReportsWarmer recomputes cached reports.
type ReportsWarmer interface {
	Warm(ctx context.Context) error
}

// ReportsWarmupJob pre-populates the report cache after it is invalidated
// and once a day before opening.
type ReportsWarmupJob struct {
	Reports ReportsWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports ReportsWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	tracker := jobMetrics(j.Metrics).Track(TaskReportsWarmup)
	defer func() { err = tracker.End(err) }()

	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	start := time.Now()
	if err := j.Reports.Warm(ctx); err != nil {
		jobLogger(j.Logger, TaskReportsWarmup).Error("warm reports", slog.Any("error", err))
		return err
	}
	jobLogger(j.Logger, TaskReportsWarmup).Debug("reports warmed", slog.Duration("duration", time.Since(start)))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func jobMetrics(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

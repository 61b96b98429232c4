package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vlady-pos/vlady-pos/cmd/jobsctl/cli"
	"github.com/vlady-pos/vlady-pos/internal/app"
)

const usage = `usage:
  jobsctl trigger <job>   enqueue a job now
  jobsctl stats           show default queue depth
  jobsctl scheduled [n]   list scheduled tasks`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	jobsCLI.LowStockThreshold = cfg.LowStockThreshold
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	os.Exit(run(ctx, jobsCLI, os.Args[1:], logger))
}

func run(ctx context.Context, c *cli.JobsCLI, args []string, logger *slog.Logger) int {
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "known jobs: %s\n", strings.Join(cli.TaskNames(), ", "))
			return 2
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			logger.Error("trigger job", slog.String("job", args[1]), slog.Any("error", err))
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			return 1
		}
		if err := cli.PrintStats(os.Stdout, stats); err != nil {
			return 1
		}
	case "scheduled":
		size := 10
		if len(args) > 1 {
			if _, err := fmt.Sscan(args[1], &size); err != nil {
				fmt.Fprintln(os.Stderr, usage)
				return 2
			}
		}
		tasks, err := c.ListScheduled(ctx, size)
		if err != nil {
			logger.Error("list scheduled", slog.Any("error", err))
			return 1
		}
		for _, t := range tasks {
			fmt.Printf("%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	return 0
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/vlady-pos/vlady-pos/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func (f fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s-1"}}, nil
}

func (f fakeInspector) Close() error { return nil }

func TestTriggerKnownJobs(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq, LowStockThreshold: 7, KeyRetention: jobs.DefaultKeyRetention}

	for _, name := range TaskNames() {
		info, err := c.Trigger(context.Background(), name)
		require.NoError(t, err, name)
		require.Equal(t, name, info.Type)
	}
	require.Len(t, enq.tasks, 3)

	for _, task := range enq.tasks {
		if task.Type() != jobs.TaskLowStockScan {
			continue
		}
		var payload jobs.LowStockScanPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		require.Equal(t, 7, payload.Threshold)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{}}
	_, err := c.Trigger(context.Background(), "ledger:rebuild")
	require.ErrorContains(t, err, "unsupported job")
}

func TestTriggerPropagatesQueueError(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{err: errors.New("redis down")}}
	_, err := c.Trigger(context.Background(), jobs.TaskReportsWarmup)
	require.EqualError(t, err, "redis down")
}

func TestInspectQueue(t *testing.T) {
	c := &JobsCLI{inspector: fakeInspector{info: &asynq.QueueInfo{Pending: 2, Active: 1, Retry: 3}}}
	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Active: 1, Retry: 3}, stats)

	var out bytes.Buffer
	require.NoError(t, PrintStats(&out, stats))
	require.Equal(t, "queue=default pending=2 active=1 scheduled=0 retry=3\n", out.String())
}

func TestInspectQueueMissingQueueIsEmpty(t *testing.T) {
	c := &JobsCLI{inspector: fakeInspector{err: asynq.ErrQueueNotFound}}
	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Pending)
}

func TestNotConfigured(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskReportsWarmup)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}

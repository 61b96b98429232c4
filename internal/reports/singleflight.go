package reports

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// flight coalesces concurrent rebuilds of the same report key.
type flight struct {
	group singleflight.Group
}

// do runs fn once per key at a time. Waiters give up when their own context
// ends; the shared computation keeps running for the others.
func (f *flight) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := f.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

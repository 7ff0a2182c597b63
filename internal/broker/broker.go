package broker

import (
	"context"
	"fmt"
	"time"
)

// Call runs a blocking SDK call and returns early with ctx.Err() when ctx is
// done first. The SDK call itself keeps running; its result is dropped.
func Call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// SimulatedOrderID is the id given to orders that never leave the process.
func SimulatedOrderID() string {
	return fmt.Sprintf("SIM-%d", time.Now().UnixNano())
}

// Package fanout runs independent fetches concurrently and settles every one
// of them: a failing task yields its fallback value instead of cancelling the
// others.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group waits for a set of settled tasks. The zero value is ready to use.
type Group struct {
	g errgroup.Group
}

// Outcome is the settled result of one task. Read it only after Wait returns.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Failed reports whether the task fell back
func (o *Outcome[T]) Failed() bool {
	return o.Err != nil
}

// Go starts fn on g. When fn returns an error or panics the outcome holds
// fallback together with the error.
func Go[T any](ctx context.Context, g *Group, fallback T, fn func(context.Context) (T, error)) *Outcome[T] {
	out := &Outcome[T]{Value: fallback}
	g.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				out.Value = fallback
				out.Err = fmt.Errorf("panic: %v", r)
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			out.Err = err
			return nil
		}
		out.Value = v
		return nil
	})
	return out
}

// Wait blocks until every task started with Go has settled
func (g *Group) Wait() {
	_ = g.g.Wait()
}

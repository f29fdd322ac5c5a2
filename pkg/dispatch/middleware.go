package dispatch

import "github.com/hermodbot/hermod/pkg/domain"

// Middleware is one step in the processing chain. It receives the enriched
// context and a next continuation, and may return extra fields to merge into
// the context.
//
// The chain runs exactly once per inbound message regardless of how a
// middleware uses next:
//   - next is idempotent; calling it twice is a no-op the second time.
//   - a middleware that never calls next does not short-circuit the chain:
//     the remaining steps run after it returns.
//   - returned extras merge into the context before the implicit
//     continuation, so downstream steps and the command handler always see
//     the union of everything merged so far.
//
// Returning a non-nil error aborts the pipeline; any returned extras are
// discarded.
type Middleware func(c *domain.Context, next func() error) (domain.Extra, error)

func runChain(steps []Middleware, c *domain.Context) error {
	return runChainFrom(steps, 0, c)
}

func runChainFrom(steps []Middleware, i int, c *domain.Context) error {
	if i >= len(steps) {
		return nil
	}

	called := false
	next := func() error {
		if called {
			return nil
		}
		called = true
		return runChainFrom(steps, i+1, c)
	}

	extra, err := steps[i](c, next)
	if err != nil {
		return err
	}
	c.Merge(extra)
	if !called {
		return next()
	}
	return nil
}

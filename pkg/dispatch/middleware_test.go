package dispatch

import (
	"errors"
	"testing"

	"github.com/hermodbot/hermod/pkg/domain"
)

// TestChainMergesExtras verifies downstream steps and the final context see
// the union of all merged enrichments
func TestChainMergesExtras(t *testing.T) {
	c := &domain.Context{}
	var seenByThird any

	steps := []Middleware{
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			return domain.Extra{"user_tier": "gold"}, nil
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			return domain.Extra{"locale": "en"}, nil
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			seenByThird, _ = c.Value("user_tier")
			return nil, nil
		},
	}

	if err := runChain(steps, c); err != nil {
		t.Fatalf("runChain: %v", err)
	}

	if seenByThird != "gold" {
		t.Errorf("third step saw user_tier = %v, want gold", seenByThird)
	}
	if v, _ := c.Value("locale"); v != "en" {
		t.Errorf("final context locale = %v, want en", v)
	}
	if v, _ := c.Value("user_tier"); v != "gold" {
		t.Errorf("final context user_tier = %v, want gold", v)
	}
}

// TestChainRunsExactlyOnce verifies no step runs twice regardless of how
// middlewares use next
func TestChainRunsExactlyOnce(t *testing.T) {
	c := &domain.Context{}
	counts := make([]int, 3)

	steps := []Middleware{
		// Calls next twice; the second call must be a no-op.
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			counts[0]++
			if err := next(); err != nil {
				return nil, err
			}
			if err := next(); err != nil {
				return nil, err
			}
			return nil, nil
		},
		// Never calls next; the chain continues anyway.
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			counts[1]++
			return nil, nil
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			counts[2]++
			return nil, nil
		},
	}

	if err := runChain(steps, c); err != nil {
		t.Fatalf("runChain: %v", err)
	}
	for i, n := range counts {
		if n != 1 {
			t.Errorf("step %d ran %d times, want 1", i, n)
		}
	}
}

// TestChainExplicitNextSeesUpstreamExtras verifies a step calling next
// explicitly exposes its pre-next merges to downstream steps
func TestChainExplicitNextSeesUpstreamExtras(t *testing.T) {
	c := &domain.Context{}
	var downstreamSaw any

	steps := []Middleware{
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			c.Merge(domain.Extra{"early": true})
			if err := next(); err != nil {
				return nil, err
			}
			return domain.Extra{"late": true}, nil
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			downstreamSaw, _ = c.Value("early")
			return nil, nil
		},
	}

	if err := runChain(steps, c); err != nil {
		t.Fatalf("runChain: %v", err)
	}
	if downstreamSaw != true {
		t.Errorf("downstream saw early = %v, want true", downstreamSaw)
	}
	if v, _ := c.Value("late"); v != true {
		t.Errorf("final context late = %v, want true", v)
	}
}

// TestChainErrorAborts verifies an error stops the chain and drops the
// failing step's extras
func TestChainErrorAborts(t *testing.T) {
	c := &domain.Context{}
	thirdRan := false
	boom := errors.New("boom")

	steps := []Middleware{
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			return domain.Extra{"kept": true}, nil
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			return domain.Extra{"dropped": true}, boom
		},
		func(c *domain.Context, next func() error) (domain.Extra, error) {
			thirdRan = true
			return nil, nil
		},
	}

	if err := runChain(steps, c); !errors.Is(err, boom) {
		t.Fatalf("runChain error = %v, want boom", err)
	}
	if thirdRan {
		t.Error("expected third step skipped after error")
	}
	if v, _ := c.Value("kept"); v != true {
		t.Error("expected extras from steps before the failure to survive")
	}
	if _, ok := c.Value("dropped"); ok {
		t.Error("expected extras from the failing step to be dropped")
	}
}

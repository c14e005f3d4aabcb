package dynamo

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent simulations concurrently. Members must not
// share controllers or integrators, since neither is safe for concurrent use.
type Ensemble struct {
	members []*Simulator
}

func NewEnsemble(members ...*Simulator) *Ensemble {
	return &Ensemble{members: members}
}

func (e *Ensemble) Add(s *Simulator) { e.members = append(e.members, s) }

func (e *Ensemble) Len() int { return len(e.members) }

// Run starts every member from x0 and returns their results in member order.
// The first failing member cancels the rest.
func (e *Ensemble) Run(ctx context.Context, x0 State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(e.members))

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range e.members {
		g.Go(func() error {
			res, err := s.Run(ctx, x0, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

package sim

import (
	"context"
	"fmt"
	"sync"
)

// Builder constructs an independent simulator for one ensemble member.
type Builder func(seed uint64) (*Simulator, error)

// Ensemble runs several independently seeded simulators concurrently.
// Members share nothing: each builds its own agents, controllers and
// filters.
type Ensemble struct {
	build     Builder
	numRuns   int
	seedStart uint64
}

func NewEnsemble(build Builder, numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart}
}

// Run returns the results of every member, indexed by member then agent.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([][]*Result, error) {
	results := make([][]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			s, err := e.build(e.seedStart + uint64(idx))
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = s.Run(ctx, cfg)
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("ensemble member %d: %w", i, err)
		}
	}

	return results, nil
}

// Package de implements rand/1/bin differential evolution over a bounded
// mixed continuous/integer search space.
package de

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/optimization"
)

// Optimizer runs differential evolution for a fixed number of generations.
// There is no early-stopping check: the generation budget is the contract.
type Optimizer struct {
	space  *optimization.Space
	cfg    optimization.Config
	rng    *rand.Rand
	logger *logging.Logger

	pop         *optimization.Population
	evaluations int

	// mu guards best and history, which progress reporting reads while a
	// run is in flight.
	mu      sync.RWMutex
	best    *optimization.Candidate
	history []optimization.GenerationStats
}

// New validates the configuration and returns a ready optimizer. Validation
// happens here, before any evaluation budget is spent: a population below
// four members cannot supply the three distinct donors mutation needs.
func New(space *optimization.Space, cfg optimization.Config, logger *logging.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PopulationSize < 4 {
		return nil, fmt.Errorf("differential evolution needs a population of at least 4, got %d", cfg.PopulationSize)
	}
	if cfg.F <= 0 || cfg.F > 2 {
		return nil, fmt.Errorf("differential weight F must be in (0, 2], got %v", cfg.F)
	}
	if cfg.CR < 0 || cfg.CR > 1 {
		return nil, fmt.Errorf("crossover probability CR must be in [0, 1], got %v", cfg.CR)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Optimizer{
		space:   space,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger,
		history: make([]optimization.GenerationStats, 0, cfg.MaxIterations),
	}, nil
}

// Optimize runs initialization plus MaxIterations generations.
func (o *Optimizer) Optimize(ctx context.Context, objective optimization.Objective) (*optimization.Result, error) {
	o.pop = optimization.NewPopulation(o.cfg.PopulationSize, o.space, o.rng)
	for _, c := range o.pop.Members() {
		c.Score = o.evaluate(ctx, objective, c.Values)
	}
	o.trackBest(o.pop.Best())

	dim := o.space.Dim()
	for gen := 1; gen <= o.cfg.MaxIterations; gen++ {
		if err := ctx.Err(); err != nil {
			return o.result(gen - 1), err
		}

		for i := 0; i < o.pop.Len(); i++ {
			picks := o.pop.PickDistinct(o.rng, i, 3)
			xa := o.pop.At(picks[0]).Values
			xb := o.pop.At(picks[1]).Values
			xc := o.pop.At(picks[2]).Values

			mutant := make([]float64, dim)
			for j := 0; j < dim; j++ {
				mutant[j] = xa[j] + o.cfg.F*(xb[j]-xc[j])
			}
			mutant = o.space.Clip(mutant)

			// Binomial crossover with one forced dimension, so the trial
			// always inherits at least one component from the mutant.
			incumbent := o.pop.At(i)
			trial := make([]float64, dim)
			forced := o.rng.Intn(dim)
			for j := 0; j < dim; j++ {
				if j == forced || o.rng.Float64() < o.cfg.CR {
					trial[j] = mutant[j]
				} else {
					trial[j] = incumbent.Values[j]
				}
			}
			trial = o.space.Clamp(trial)

			score := o.evaluate(ctx, objective, trial)

			// Strict improvement only; ties keep the incumbent. Replacement
			// is in place, so donor picks later in this same sweep may see
			// the new value. That sequential-update dynamic is intentional.
			if score < incumbent.Score {
				o.pop.Replace(i, &optimization.Candidate{Values: trial, Score: score})
				o.trackBest(o.pop.At(i))
			}
		}

		best := o.recordGeneration(gen)
		o.logger.Info("generation complete", map[string]interface{}{
			"generation": gen,
			"of":         o.cfg.MaxIterations,
			"best_score": best,
		})
	}

	return o.result(o.cfg.MaxIterations), nil
}

// Best returns a snapshot of the best candidate found so far.
func (o *Optimizer) Best() *optimization.Candidate {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.best == nil {
		return nil
	}
	return o.best.Clone()
}

// History returns per-generation best scores recorded so far.
func (o *Optimizer) History() []optimization.GenerationStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]optimization.GenerationStats, len(o.history))
	copy(out, o.history)
	return out
}

func (o *Optimizer) evaluate(ctx context.Context, objective optimization.Objective, values []float64) float64 {
	o.evaluations++
	return objective.Evaluate(ctx, values)
}

func (o *Optimizer) trackBest(c *optimization.Candidate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.best == nil || c.Score < o.best.Score {
		o.best = c.Clone()
	}
}

func (o *Optimizer) recordGeneration(gen int) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, optimization.GenerationStats{Generation: gen, BestScore: o.best.Score})
	return o.best.Score
}

func (o *Optimizer) result(generations int) *optimization.Result {
	return &optimization.Result{
		Best:        o.Best(),
		Generations: generations,
		Evaluations: o.evaluations,
	}
}

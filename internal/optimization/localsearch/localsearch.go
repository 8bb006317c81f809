// Package localsearch implements an elitist local-perturbation optimizer for
// expensive objectives. New candidates are derived by small perturbations of
// current members rather than free recombination, keeping evaluations close
// to configurations already known to behave well.
package localsearch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/optimization"
)

// Optimizer runs elitist local perturbation for a fixed number of
// generations. Worse candidates are never accepted: every evaluation is
// expensive, so regressions are not worth exploring.
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

// New validates the configuration and returns a ready optimizer.
func New(space *optimization.Space, cfg optimization.Config, logger *logging.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Spread <= 0 || cfg.Spread >= 1 {
		return nil, fmt.Errorf("perturbation spread must be in (0, 1), got %v", cfg.Spread)
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

// Optimize runs initialization plus MaxIterations generations. Offspring are
// evaluated strictly one at a time: a stateful objective perturbs shared
// external state, so overlapping evaluations could not be attributed.
func (o *Optimizer) Optimize(ctx context.Context, objective optimization.Objective) (*optimization.Result, error) {
	o.pop = optimization.NewPopulation(o.cfg.PopulationSize, o.space, o.rng)
	for _, c := range o.pop.Members() {
		c.Score = o.evaluate(ctx, objective, c.Values)
	}
	o.trackBest(o.pop.Best())

	for gen := 1; gen <= o.cfg.MaxIterations; gen++ {
		if err := ctx.Err(); err != nil {
			return o.result(gen - 1), err
		}

		offspring := make([]*optimization.Candidate, 0, o.pop.Len())
		for _, parent := range o.pop.Members() {
			child := optimization.NewCandidate(o.perturb(parent.Values))
			child.Score = o.evaluate(ctx, objective, child.Values)
			offspring = append(offspring, child)
		}

		// Parents and offspring compete equally; only the best half survive.
		o.pop.Merge(offspring...)
		o.pop.Truncate(o.cfg.PopulationSize)
		o.trackBest(o.pop.Best())

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

// perturb derives one offspring vector from a parent: integer dimensions
// step by -1, 0 or +1 with equal probability, continuous dimensions get a
// multiplicative jitter uniform in [1-spread, 1+spread].
func (o *Optimizer) perturb(parent []float64) []float64 {
	values := make([]float64, len(parent))
	for i, p := range o.space.Params() {
		switch p.Kind {
		case optimization.Integer:
			values[i] = parent[i] + float64(o.rng.Intn(3)-1)
		default:
			jitter := 1 + (o.rng.Float64()*2-1)*o.cfg.Spread
			values[i] = parent[i] * jitter
		}
	}
	return o.space.Clamp(values)
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

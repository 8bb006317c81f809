package optimization

import (
	"context"
	"fmt"
)

// Mode selects the search strategy for a run.
type Mode string

const (
	// ModeDifferentialEvolution is rand/1/bin differential evolution. Suited
	// to cheap objectives that can be called hundreds of times per run.
	ModeDifferentialEvolution Mode = "de"

	// ModeLocalPerturbation biases new candidates near known-good ones and
	// keeps only the best survivors. Suited to expensive objectives where a
	// wasted evaluation is unacceptable.
	ModeLocalPerturbation Mode = "local"
)

// Objective maps a candidate's values to a scalar cost; lower is better.
// Implementations must be total over the declared bounds: transient failures
// are absorbed inside the adapter and turned into a fallback score, never
// returned to the engine.
type Objective interface {
	Evaluate(ctx context.Context, values []float64) float64
}

// Config holds the tunable parameters shared by both engines.
type Config struct {
	Mode           Mode
	PopulationSize int
	MaxIterations  int

	// Differential evolution only.
	F  float64 // differential weight, (0, 2]
	CR float64 // crossover probability, [0, 1]

	// Local perturbation only.
	Spread float64 // multiplicative jitter for continuous dimensions, (0, 1)

	// Seed for the run's random source. Zero means time-seeded.
	Seed int64
}

// Validate checks the parameters common to both engines. Engine constructors
// apply their own mode-specific checks on top.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("population size must be at least 1, got %d", c.PopulationSize)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	return nil
}

// GenerationStats records the best score seen at the end of one generation.
// It is observational output for progress reporting, not part of the search.
type GenerationStats struct {
	Generation int
	BestScore  float64
}

// Result is the outcome of a completed run.
type Result struct {
	Best        *Candidate
	Generations int
	Evaluations int
}

// Optimizer is implemented by each search engine.
type Optimizer interface {
	// Optimize runs the configured number of generations. The context is
	// checked between generations only; a cancelled run returns the best
	// candidate found so far along with the context error.
	Optimize(ctx context.Context, objective Objective) (*Result, error)

	// Best returns a snapshot of the best candidate observed so far.
	Best() *Candidate

	// History returns per-generation best scores recorded so far.
	History() []GenerationStats
}

// Package runner is the single entry point for starting a tuning run: it
// picks the engine for the configured mode and executes it.
package runner

import (
	"context"
	"fmt"

	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/optimization"
	"github.com/ecotune/ecotune/internal/optimization/de"
	"github.com/ecotune/ecotune/internal/optimization/localsearch"
)

// NewOptimizer constructs the engine for cfg.Mode. Configuration problems
// surface here, before any evaluation budget is spent.
func NewOptimizer(space *optimization.Space, cfg optimization.Config, logger *logging.Logger) (optimization.Optimizer, error) {
	switch cfg.Mode {
	case optimization.ModeDifferentialEvolution:
		return de.New(space, cfg, logger)
	case optimization.ModeLocalPerturbation:
		return localsearch.New(space, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown optimization mode %q", cfg.Mode)
	}
}

// Run executes a full tuning run and returns the best values and score.
func Run(ctx context.Context, space *optimization.Space, objective optimization.Objective, cfg optimization.Config, logger *logging.Logger) (*optimization.Result, error) {
	opt, err := NewOptimizer(space, cfg, logger)
	if err != nil {
		return nil, err
	}
	return opt.Optimize(ctx, objective)
}

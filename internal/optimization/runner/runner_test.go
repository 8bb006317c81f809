package runner

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/objective"
	"github.com/ecotune/ecotune/internal/optimization"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

func testSpace(t *testing.T) *optimization.Space {
	t.Helper()
	s, err := optimization.NewSpace(
		optimization.Param{Name: "cpu", Lower: 0.1, Upper: 2.0, Kind: optimization.Continuous},
		optimization.Param{Name: "memory_mb", Lower: 256, Upper: 4096, Kind: optimization.Continuous},
		optimization.Param{Name: "replicas", Lower: 1, Upper: 10, Kind: optimization.Integer},
	)
	require.NoError(t, err)
	return s
}

func TestNewOptimizerUnknownMode(t *testing.T) {
	_, err := NewOptimizer(testSpace(t), optimization.Config{Mode: "simulated-annealing"}, quietLogger())
	assert.Error(t, err)
}

func TestRunDispatch(t *testing.T) {
	space := testSpace(t)
	obj := objective.Func(objective.BuildCost)

	tests := []struct {
		name string
		cfg  optimization.Config
	}{
		{
			name: "differential evolution",
			cfg: optimization.Config{
				Mode:           optimization.ModeDifferentialEvolution,
				PopulationSize: 6,
				MaxIterations:  4,
				F:              0.8,
				CR:             0.7,
				Seed:           5,
			},
		},
		{
			name: "local perturbation",
			cfg: optimization.Config{
				Mode:           optimization.ModeLocalPerturbation,
				PopulationSize: 4,
				MaxIterations:  4,
				Spread:         0.2,
				Seed:           5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), space, obj, tt.cfg, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, 4, res.Generations)
			require.NotNil(t, res.Best)
			assert.True(t, res.Best.Scored())
		})
	}
}

func TestRunRejectsBadConfigBeforeEvaluating(t *testing.T) {
	space := testSpace(t)

	evaluations := 0
	counting := objective.Func(func(v []float64) float64 {
		evaluations++
		return objective.BuildCost(v)
	})

	cfg := optimization.Config{
		Mode:           optimization.ModeDifferentialEvolution,
		PopulationSize: 2, // too small for DE
		MaxIterations:  10,
		F:              0.8,
		CR:             0.7,
	}
	_, err := Run(context.Background(), space, counting, cfg, quietLogger())
	assert.Error(t, err)
	assert.Zero(t, evaluations, "configuration errors must fail before any evaluation")
}

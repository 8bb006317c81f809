package objective

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/optimization"
	"github.com/ecotune/ecotune/internal/optimization/localsearch"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

type stubApplier struct {
	calls    int
	failures int // fail this many leading calls
}

func (a *stubApplier) Apply(_ context.Context, _ []float64) error {
	a.calls++
	if a.calls <= a.failures {
		return fmt.Errorf("apply attempt %d failed", a.calls)
	}
	return nil
}

type stubMetrics struct {
	values map[string]float64
	err    error
}

func (m *stubMetrics) Scalar(_ context.Context, query string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.values[query], nil
}

func testLiveConfig() LiveConfig {
	return LiveConfig{
		Signals: []Signal{
			{Name: "build_duration", Query: "q_duration", Weight: 0.7, Low: 50, High: 900, Default: 300},
			{Name: "cpu", Query: "q_cpu", Weight: 0.3, Low: 0.01, High: 2.0, Default: 0.5},
		},
		Settle:        0,
		ApplyRetries:  3,
		RetryBackoff:  time.Millisecond,
		FallbackScore: 1e6,
	}
}

func TestLiveWeightedScore(t *testing.T) {
	applier := &stubApplier{}
	metrics := &stubMetrics{values: map[string]float64{"q_duration": 475, "q_cpu": 1.005}}

	live := NewLive(applier, metrics, testLiveConfig(), quietLogger())
	score := live.Evaluate(context.Background(), []float64{2, 0.3, 1})

	// 0.7 * Normalize(475, 50, 900) + 0.3 * Normalize(1.005, 0.01, 2.0)
	assert.InDelta(t, 0.7*0.5+0.3*0.5, score, 1e-9)
	assert.Equal(t, 1, applier.calls)
}

func TestLiveAbsorbsTransientApplyFailures(t *testing.T) {
	applier := &stubApplier{failures: 2}
	metrics := &stubMetrics{values: map[string]float64{"q_duration": 50, "q_cpu": 0.01}}

	live := NewLive(applier, metrics, testLiveConfig(), quietLogger())
	score := live.Evaluate(context.Background(), []float64{2, 0.3, 1})

	assert.Equal(t, 3, applier.calls, "two failures then success")
	assert.InDelta(t, 0, score, 1e-9)
}

func TestLiveFallsBackToDefaultsWhenTelemetryDown(t *testing.T) {
	applier := &stubApplier{}
	metrics := &stubMetrics{err: fmt.Errorf("prometheus unreachable")}

	live := NewLive(applier, metrics, testLiveConfig(), quietLogger())
	score := live.Evaluate(context.Background(), []float64{2, 0.3, 1})

	// Per-signal defaults substitute for unreachable telemetry.
	want := 0.7*Normalize(300, 50, 900) + 0.3*Normalize(0.5, 0.01, 2.0)
	assert.InDelta(t, want, score, 1e-9)
}

func TestLiveFallbackScoreWhenApplyExhausted(t *testing.T) {
	applier := &stubApplier{failures: 1000}
	live := NewLive(applier, &stubMetrics{}, testLiveConfig(), quietLogger())

	score := live.Evaluate(context.Background(), []float64{2, 0.3, 1})
	assert.Equal(t, 1e6, score)
	assert.Equal(t, 3, applier.calls, "retry budget respected")
}

// A run whose every evaluation exhausts its retries must still complete all
// generations and report the fallback score as its best.
func TestRunCompletesOnPermanentApplyFailure(t *testing.T) {
	space, err := optimization.NewSpace(
		optimization.Param{Name: "replicas", Lower: 1, Upper: 4, Kind: optimization.Integer},
		optimization.Param{Name: "cpu_request", Lower: 0.1, Upper: 0.5, Kind: optimization.Continuous},
		optimization.Param{Name: "concurrency", Lower: 1, Upper: 4, Kind: optimization.Integer},
	)
	require.NoError(t, err)

	live := NewLive(&stubApplier{failures: 1 << 30}, &stubMetrics{}, testLiveConfig(), quietLogger())

	opt, err := localsearch.New(space, optimization.Config{
		PopulationSize: 3,
		MaxIterations:  4,
		Spread:         0.2,
		Seed:           2,
	}, quietLogger())
	require.NoError(t, err)

	res, err := opt.Optimize(context.Background(), live)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Generations)
	assert.Equal(t, 1e6, res.Best.Score)
}

package objective

import (
	"context"
	"sync"
	"time"

	"github.com/ecotune/ecotune/internal/logging"
)

// Applier applies a candidate's values to the system under tuning and
// returns once the change has been accepted.
type Applier interface {
	Apply(ctx context.Context, values []float64) error
}

// MetricSource resolves a telemetry query to a scalar. Implementations
// perform their own bounded retries; an error means the signal could not be
// obtained at all.
type MetricSource interface {
	Scalar(ctx context.Context, query string) (float64, error)
}

// Signal is one weighted telemetry input to the live score.
type Signal struct {
	Name   string
	Query  string
	Weight float64

	// Historical range for normalization.
	Low  float64
	High float64

	// Default substitutes for the signal when telemetry is unreachable.
	Default float64
}

// LiveConfig holds the knobs of the live adapter.
type LiveConfig struct {
	Signals []Signal

	// Settle is how long to wait after applying a candidate before sampling
	// telemetry, so the metrics reflect the new configuration.
	Settle time.Duration

	// ApplyRetries and RetryBackoff bound the retry loop around Apply.
	ApplyRetries int
	RetryBackoff time.Duration

	// FallbackScore is returned when the candidate could not be applied at
	// all. It should sit well above any realistic score so the candidate
	// loses selection without aborting the run.
	FallbackScore float64
}

// Live scores a candidate by applying it to a running deployment, waiting
// for the change to take effect, and reducing sampled signals to
// sum(weight_k * Normalize(metric_k, low_k, high_k)).
//
// Evaluate never returns an error to the engine: transient failures are
// retried here, unreachable signals fall back to their defaults, and a
// candidate that cannot be applied at all gets the configured fallback
// score. Evaluations are serialized because each one perturbs the shared
// deployment; overlapping applies would produce metrics attributable to
// neither candidate.
type Live struct {
	applier Applier
	metrics MetricSource
	cfg     LiveConfig
	logger  *logging.Logger

	mu sync.Mutex
}

// NewLive wires a live adapter.
func NewLive(applier Applier, metrics MetricSource, cfg LiveConfig, logger *logging.Logger) *Live {
	if cfg.ApplyRetries < 1 {
		cfg.ApplyRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 3 * time.Second
	}
	return &Live{applier: applier, metrics: metrics, cfg: cfg, logger: logger}
}

// Evaluate implements optimization.Objective.
func (l *Live) Evaluate(ctx context.Context, values []float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.apply(ctx, values) {
		l.logger.Error("candidate could not be applied, using fallback score", map[string]interface{}{
			"values":   values,
			"fallback": l.cfg.FallbackScore,
		})
		return l.cfg.FallbackScore
	}

	sleep(ctx, l.cfg.Settle)

	score := 0.0
	for _, sig := range l.cfg.Signals {
		v, err := l.metrics.Scalar(ctx, sig.Query)
		if err != nil {
			l.logger.Warn("signal unavailable, using default", map[string]interface{}{
				"signal":  sig.Name,
				"default": sig.Default,
				"error":   err.Error(),
			})
			v = sig.Default
		}
		score += sig.Weight * Normalize(v, sig.Low, sig.High)
	}

	l.logger.Debug("candidate evaluated", map[string]interface{}{
		"values": values,
		"score":  score,
	})
	return score
}

func (l *Live) apply(ctx context.Context, values []float64) bool {
	for attempt := 1; attempt <= l.cfg.ApplyRetries; attempt++ {
		err := l.applier.Apply(ctx, values)
		if err == nil {
			return true
		}
		l.logger.Warn("apply failed", map[string]interface{}{
			"attempt": attempt,
			"of":      l.cfg.ApplyRetries,
			"error":   err.Error(),
		})
		if attempt < l.cfg.ApplyRetries {
			sleep(ctx, l.cfg.RetryBackoff)
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

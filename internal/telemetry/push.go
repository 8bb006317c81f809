package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ecotune/ecotune/internal/logging"
)

// Reporter pushes the final best score of a run to a Pushgateway. Reporting
// is best effort: a push failure is logged and otherwise ignored, since the
// run's result is already in hand.
type Reporter struct {
	url        string
	job        string
	deployment string
	logger     *logging.Logger
}

// NewReporter builds a Reporter. An empty url disables pushing.
func NewReporter(url, job, deployment string, logger *logging.Logger) *Reporter {
	return &Reporter{url: url, job: job, deployment: deployment, logger: logger}
}

// PushBestScore publishes the best objective score of a completed run.
func (r *Reporter) PushBestScore(score float64) {
	if r.url == "" {
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecotune_best_score",
		Help: "Best objective score of the most recent tuning run.",
	})
	g.Set(score)

	err := push.New(r.url, r.job).
		Collector(g).
		Grouping("deployment", r.deployment).
		Push()
	if err != nil {
		r.logger.Warn("pushgateway push failed", map[string]interface{}{
			"url":   r.url,
			"error": err.Error(),
		})
		return
	}
	r.logger.Info("pushed best score", map[string]interface{}{
		"url":   r.url,
		"score": score,
	})
}

// Package telemetry reads live signals from Prometheus and reports run
// summaries to a Pushgateway.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"gonum.org/v1/gonum/stat"

	apperrors "github.com/ecotune/ecotune/internal/errors"
	"github.com/ecotune/ecotune/internal/logging"
)

// Client queries a Prometheus server for instant scalar values. Transient
// query failures are retried with a fixed backoff; only retry exhaustion or
// an empty result surfaces as an error.
type Client struct {
	api     promv1.API
	retries int
	backoff time.Duration
	timeout time.Duration
	logger  *logging.Logger
}

// NewClient builds a Client for the Prometheus server at address.
func NewClient(address string, logger *logging.Logger) (*Client, error) {
	c, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &Client{
		api:     promv1.NewAPI(c),
		retries: 3,
		backoff: 3 * time.Second,
		timeout: 30 * time.Second,
		logger:  logger,
	}, nil
}

// Scalar runs an instant query and reduces the result to a single value.
// Vector results are averaged across series.
func (c *Client) Scalar(ctx context.Context, query string) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		v, err := c.query(ctx, query)
		if err == nil {
			return v, nil
		}
		lastErr = err
		c.logger.Warn("prometheus query failed", map[string]interface{}{
			"query":   query,
			"attempt": attempt,
			"of":      c.retries,
			"error":   err.Error(),
		})
		if attempt < c.retries {
			t := time.NewTimer(c.backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}
	}
	return 0, apperrors.Wrapf(lastErr, "query %q failed after %d attempts", query, c.retries).
		WithComponent("telemetry").WithOperation("query")
}

func (c *Client) query(ctx context.Context, query string) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, _, err := c.api.Query(qctx, query, time.Now())
	if err != nil {
		return 0, err
	}

	switch v := value.(type) {
	case *model.Scalar:
		return float64(v.Value), nil
	case model.Vector:
		if len(v) == 0 {
			return 0, fmt.Errorf("query returned no samples")
		}
		samples := make([]float64, len(v))
		for i, s := range v {
			samples[i] = float64(s.Value)
		}
		return stat.Mean(samples, nil), nil
	default:
		return 0, fmt.Errorf("unexpected result type %T", value)
	}
}

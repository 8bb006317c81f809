package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecotune/ecotune/internal/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, quietLogger())
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func vectorResponse(w http.ResponseWriter, samples ...string) {
	w.Header().Set("Content-Type", "application/json")
	body := `{"status":"success","data":{"resultType":"vector","result":[`
	for i, s := range samples {
		if i > 0 {
			body += ","
		}
		body += `{"metric":{"pod":"p"},"value":[1700000000,"` + s + `"]}`
	}
	body += `]}}`
	_, _ = w.Write([]byte(body))
}

func TestScalarAveragesVector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		vectorResponse(w, "2", "4", "6")
	})

	v, err := c.Scalar(context.Background(), "avg_over_time(ci_build_duration_seconds[30m])")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestScalarRetriesTransientFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		vectorResponse(w, "1.5")
	})

	v, err := c.Scalar(context.Background(), "up")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-9)
	assert.Equal(t, 3, calls)
}

func TestScalarExhaustsRetries(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Scalar(context.Background(), "up")
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestScalarEmptyVector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		vectorResponse(w)
	})
	c.retries = 1

	_, err := c.Scalar(context.Background(), "absent_metric")
	assert.Error(t, err)
}

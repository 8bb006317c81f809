package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Target struct {
		PrometheusURL  string `env:"PROM_URL" envDefault:"http://127.0.0.1:9090"`
		PushgatewayURL string `env:"PUSHGATEWAY_URL"`
		Namespace      string `env:"NAMESPACE" envDefault:"default"`
		Deployment     string `env:"DEPLOYMENT" envDefault:"eco-ci-app"`
		Container      string `env:"CONTAINER"`
		Kubeconfig     string `env:"KUBECONFIG"`
	}
	Objective struct {
		// Weights for the live score: build duration vs. CPU usage.
		DurationWeight float64 `env:"ALPHA" envDefault:"0.7"`
		CPUWeight      float64 `env:"BETA" envDefault:"0.3"`

		// Historical ranges used to normalize each signal.
		DurationLow  float64 `env:"DURATION_LOW" envDefault:"50"`
		DurationHigh float64 `env:"DURATION_HIGH" envDefault:"900"`
		CPULow       float64 `env:"CPU_LOW" envDefault:"0.01"`
		CPUHigh      float64 `env:"CPU_HIGH" envDefault:"2.0"`

		// Settle is the wait between applying a candidate and sampling.
		Settle time.Duration `env:"SETTLE_INTERVAL" envDefault:"8s"`

		// FallbackScore is used for candidates that cannot be applied.
		FallbackScore float64 `env:"FALLBACK_SCORE" envDefault:"1e6"`
	}
	Optimizer struct {
		Mode           string  `env:"OPT_MODE" envDefault:"local"`
		PopulationSize int     `env:"OPT_POP_SIZE" envDefault:"8"`
		MaxIterations  int     `env:"OPT_MAX_ITERS" envDefault:"12"`
		F              float64 `env:"OPT_F" envDefault:"0.8"`
		CR             float64 `env:"OPT_CR" envDefault:"0.7"`
		Spread         float64 `env:"OPT_SPREAD" envDefault:"0.2"`
		Seed           int64   `env:"OPT_SEED" envDefault:"0"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// The tuned container defaults to the deployment name.
	if cfg.Target.Container == "" {
		cfg.Target.Container = cfg.Target.Deployment
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

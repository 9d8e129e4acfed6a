// Package metrics exposes the orchestration loop's internal state as
// Prometheus gauges via promhttp, grounded on the client_golang usage
// pattern already pulled in for querying the monitoring backend.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder exposes the orchestration loop's per-iteration state as
// Prometheus gauges.
type Recorder struct {
	registry     *prometheus.Registry
	iteration    prometheus.Gauge
	reward       prometheus.Gauge
	regret       prometheus.Gauge
	safeSetSize  prometheus.Gauge
	withinBudget prometheus.Gauge
}

// NewRecorder builds a Recorder with its own registry, so the
// orchestrator never pollutes the default global registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return &Recorder{
		registry: reg,
		iteration: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "drone_iteration",
			Help: "Current orchestration loop iteration counter.",
		}),
		reward: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "drone_last_reward",
			Help: "Scalarised reward (public mode) or performance (private mode) of the most recent iteration.",
		}),
		regret: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "drone_cumulative_regret",
			Help: "Cumulative regret relative to the best observed reward so far (public mode only).",
		}),
		safeSetSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "drone_safe_set_size",
			Help: "Number of arms currently in the safe set (private mode only; -1 in public mode).",
		}),
		withinBudget: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "drone_within_budget",
			Help: "1 if the most recent observed resource usage was within the configured budget, else 0.",
		}),
	}
}

// Observe records one iteration's outcome.
func (r *Recorder) Observe(iteration int, reward, regret float64, safeSetSize int, withinBudget bool) {
	r.iteration.Set(float64(iteration))
	r.reward.Set(reward)
	r.regret.Set(regret)
	r.safeSetSize.Set(float64(safeSetSize))
	if withinBudget {
		r.withinBudget.Set(1)
	} else {
		r.withinBudget.Set(0)
	}
}

// Serve starts a blocking HTTP server exposing /metrics until ctx is
// cancelled. Intended to be run in its own goroutine.
func (r *Recorder) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Str("addr", addr).Msg("shutting down metrics server")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Package monitoring implements the MonitoringSource contract: instant
// vector PromQL queries against a time-series HTTP backend.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	apiv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"
)

// Source is the narrow contract the orchestration loop depends on for
// context, performance, and resource-usage figures.
type Source interface {
	GetContext(ctx context.Context) (map[string]float64, error)
	GetPerformanceMetrics(ctx context.Context) (map[string]float64, error)
	GetResourceUsage(ctx context.Context) (map[string]float64, error)
}

// QueryCache is a short-TTL result cache consulted before hitting the
// time-series backend. It is ambient infrastructure, not part of the core
// contract: a no-op implementation is used when no cache is configured.
type QueryCache interface {
	Get(ctx context.Context, query string) (float64, bool)
	Set(ctx context.Context, query string, value float64)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (float64, bool) { return 0, false }
func (noopCache) Set(context.Context, string, float64)        {}

// Prometheus is the default Source: it issues instant-vector queries
// against GET /api/v1/query and parses data.result[0].value[1] as a real;
// any failure (network, missing series, parse) yields 0.0 and a logged
// error or warning rather than propagating an error, per the transient-external
// error policy.
type Prometheus struct {
	api             apiv1.API
	cache           QueryCache
	log             zerolog.Logger
	appName         string
	namespace       string
	performance     map[string]string
	context         map[string]string
	resourceQueries map[string]string
}

// NewPrometheus constructs the default monitoring source against the given
// Prometheus-compatible URL. cache may be nil to disable query caching.
func NewPrometheus(url, appName, namespace string, cache QueryCache, log zerolog.Logger) (*Prometheus, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("monitoring: constructing prometheus client: %w", err)
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Prometheus{
		api:       apiv1.NewAPI(client),
		cache:     cache,
		log:       log,
		appName:   appName,
		namespace: namespace,
		performance: map[string]string{
			"job_time":    fmt.Sprintf(`rate(job_completion_time_seconds{namespace="%s",app="%s"}[5m])`, namespace, appName),
			"p90_latency": fmt.Sprintf(`histogram_quantile(0.9, sum(rate(http_request_duration_seconds_bucket{namespace="%s",app="%s"}[5m])) by (le))`, namespace, appName),
		},
		context: map[string]string{
			"workload":   fmt.Sprintf(`sum(rate(http_requests_total{namespace="%s"}[5m]))`, namespace),
			"cpu_util":   `avg(node_cpu_utilization)`,
			"mem_util":   `avg(node_memory_utilization)`,
			"net_util":   `avg(node_network_transmit_bytes_total + node_network_receive_bytes_total)`,
			"spot_price": `1`,
		},
		resourceQueries: map[string]string{
			"cpu":     fmt.Sprintf(`sum(container_cpu_usage_seconds_total{namespace="%s",pod=~"%s-.*"})`, namespace, appName),
			"memory":  fmt.Sprintf(`sum(container_memory_working_set_bytes{namespace="%s",pod=~"%s-.*"})`, namespace, appName),
			"network": fmt.Sprintf(`sum(container_network_transmit_bytes_total{namespace="%s",pod=~"%s-.*"} + container_network_receive_bytes_total{namespace="%s",pod=~"%s-.*"})`, namespace, appName, namespace, appName),
		},
	}, nil
}

func (p *Prometheus) query(ctx context.Context, q string) float64 {
	if v, ok := p.cache.Get(ctx, q); ok {
		return v
	}
	result, warnings, err := p.api.Query(ctx, q, time.Now())
	if len(warnings) > 0 {
		p.log.Warn().Strs("warnings", warnings).Str("query", q).Msg("prometheus query returned warnings")
	}
	if err != nil {
		p.log.Error().Err(err).Str("query", q).Msg("error querying prometheus")
		return 0.0
	}
	vec, ok := result.(model.Vector)
	if !ok || len(vec) == 0 {
		p.log.Warn().Str("query", q).Msg("no data for query")
		return 0.0
	}
	v := float64(vec[0].Value)
	p.cache.Set(ctx, q, v)
	return v
}

func (p *Prometheus) queryAll(ctx context.Context, queries map[string]string) map[string]float64 {
	out := make(map[string]float64, len(queries))
	for name, q := range queries {
		out[name] = p.query(ctx, q)
	}
	return out
}

// GetContext returns workload, cpu_util, mem_util, net_util, and
// spot_price figures.
func (p *Prometheus) GetContext(ctx context.Context) (map[string]float64, error) {
	return p.queryAll(ctx, p.context), nil
}

// GetPerformanceMetrics returns job_time and p90_latency figures.
func (p *Prometheus) GetPerformanceMetrics(ctx context.Context) (map[string]float64, error) {
	return p.queryAll(ctx, p.performance), nil
}

// GetResourceUsage returns cpu, memory (bytes), and network figures.
func (p *Prometheus) GetResourceUsage(ctx context.Context) (map[string]float64, error) {
	return p.queryAll(ctx, p.resourceQueries), nil
}

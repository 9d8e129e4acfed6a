// Package orchestrator wires the bandit core to the cluster mutator,
// monitoring source, and enforcers into the per-iteration control loop
// described by the orchestration contract.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonlvhit/gocron"
	"github.com/rs/zerolog"

	"github.com/MSRG/DRONE/internal/bandit"
	"github.com/MSRG/DRONE/internal/cluster"
	"github.com/MSRG/DRONE/internal/history"
	"github.com/MSRG/DRONE/internal/metrics"
	"github.com/MSRG/DRONE/internal/monitoring"
)

// publicContextKeys and privateContextKeys fix the ordering used to
// flatten the monitoring source's named metrics into the bandit's
// positional Context vector. Map iteration order is unstable in Go, so
// this ordering must be captured once and reused for every iteration.
// Private mode drops spot_price: there is no spot market on a private
// cluster, so d_c is 4 rather than 5, which also changes d in the
// Beta(t,d) schedule and the GP's concatenated input dimension.
var (
	publicContextKeys  = []string{"workload", "cpu_util", "mem_util", "net_util", "spot_price"}
	privateContextKeys = []string{"workload", "cpu_util", "mem_util", "net_util"}
)

// cpuDollarPerCoreHour and memDollarPerGiBHour are the public-mode cost
// model's dollar constants; the formula and the constants themselves are
// part of the contract, not tuning knobs.
const (
	cpuDollarPerCoreHour = 0.0425
	memDollarPerGiBHour  = 0.00575
)

// gibibyte converts a byte count to GiB.
const gibibyte = 1 << 30

// calculateCost implements the public-mode cost model:
// replicas * (cpu*cpuDollarPerCoreHour + (mem_MiB/1024)*memDollarPerGiBHour),
// scaled by the observed spot price when the monitoring source reports one.
func calculateCost(arm bandit.Arm, rawContext map[string]float64) float64 {
	if len(arm) < 3 {
		return 0
	}
	cpu, memMi, replicas := arm[0], arm[1], arm[2]
	cost := replicas * (cpu*cpuDollarPerCoreHour + (memMi/1024)*memDollarPerGiBHour)
	if spotPrice, ok := rawContext["spot_price"]; ok {
		cost *= spotPrice
	}
	return cost
}

// Loop is the orchestration control loop: one bandit, one workload, one
// cluster. It is not safe to call Start concurrently from multiple
// goroutines, but Stop may be called from any goroutine at any time.
type Loop struct {
	appName   string
	namespace string
	interval  time.Duration
	settle    time.Duration

	mutator    cluster.Mutator
	classifier cluster.Classifier
	source     monitoring.Source
	projector  *ArmProjector
	band       *Bandit

	objectiveEnforcer *ObjectiveEnforcer
	resourceEnforcer  *ResourceEnforcer

	history *history.Writer
	metrics *metrics.Recorder
	log     zerolog.Logger

	maxIterations int
	running       int32
	scheduler     *gocron.Scheduler
	stopCh        chan bool
	errCh         chan error
	mu            sync.Mutex
}

// Options configures a new Loop.
type Options struct {
	AppName       string
	Namespace     string
	Interval      time.Duration
	SettleWait    time.Duration
	MaxIterations int // 0 means unbounded

	Mutator           cluster.Mutator
	Classifier        cluster.Classifier
	Source            monitoring.Source
	Projector         *ArmProjector
	Band              *Bandit
	ObjectiveEnforcer *ObjectiveEnforcer // public mode only; may be nil
	ResourceEnforcer  *ResourceEnforcer  // private mode only; may be nil

	History *history.Writer
	Metrics *metrics.Recorder
	Log     zerolog.Logger
}

// New validates and constructs a Loop.
func New(o Options) (*Loop, error) {
	if o.AppName == "" {
		return nil, fmt.Errorf("orchestrator: app name is required")
	}
	if o.Mutator == nil || o.Source == nil || o.Projector == nil || o.Band == nil {
		return nil, fmt.Errorf("orchestrator: mutator, source, projector, and bandit are required")
	}
	if o.Interval <= 0 {
		return nil, fmt.Errorf("orchestrator: interval must be positive")
	}
	if o.History == nil {
		o.History = history.NewWriter()
	}
	return &Loop{
		appName:           o.AppName,
		namespace:         o.Namespace,
		interval:          o.Interval,
		settle:            o.SettleWait,
		mutator:           o.Mutator,
		classifier:        o.Classifier,
		source:            o.Source,
		projector:         o.Projector,
		band:              o.Band,
		objectiveEnforcer: o.ObjectiveEnforcer,
		resourceEnforcer:  o.ResourceEnforcer,
		history:           o.History,
		metrics:           o.Metrics,
		log:               o.Log,
		maxIterations:     o.MaxIterations,
		errCh:             make(chan error, 1),
	}, nil
}

// History returns the accumulated per-iteration CSV history.
func (l *Loop) History() *history.Writer { return l.history }

// Start runs the orchestration loop until ctx is cancelled, Stop is
// called, or maxIterations is reached, whichever comes first. It blocks
// the calling goroutine.
func (l *Loop) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return fmt.Errorf("orchestrator: loop already running")
	}
	defer atomic.StoreInt32(&l.running, 0)

	l.mu.Lock()
	l.scheduler = gocron.NewScheduler()
	intervalSeconds := uint64(l.interval.Seconds())
	if intervalSeconds == 0 {
		intervalSeconds = 1
	}
	l.scheduler.Every(intervalSeconds).Seconds().Do(l.tick, ctx)
	stop := l.scheduler.Start()
	l.stopCh = stop
	l.mu.Unlock()

	l.tick(ctx) // run the first iteration immediately rather than waiting one interval

	select {
	case <-ctx.Done():
		l.scheduler.Clear()
		return ctx.Err()
	case err := <-l.errCh:
		l.scheduler.Clear()
		return err
	case <-stop:
		return nil
	}
}

// Stop requests cooperative shutdown; Start's blocking call returns once
// the in-flight iteration (if any) completes.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scheduler != nil {
		l.scheduler.Clear()
	}
	if l.stopCh != nil {
		// Closing (rather than sending) wakes both the scheduler goroutine
		// and Start's select, which both receive on this channel.
		close(l.stopCh)
		l.stopCh = nil
	}
}

// tick runs exactly one orchestration iteration.
func (l *Loop) tick(ctx context.Context) {
	if atomic.LoadInt32(&l.running) == 0 {
		return
	}
	if err := l.iterate(ctx); err != nil {
		l.log.Error().Err(err).Msg("iteration failed")
		select {
		case l.errCh <- err:
		default:
		}
		return
	}
	if l.maxIterations > 0 && l.band.Iteration() > l.maxIterations {
		l.Stop()
	}
}

func (l *Loop) iterate(ctx context.Context) error {
	iteration := l.band.Iteration()

	rawContext, err := l.source.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: fetching context: %w", err)
	}
	contextKeys := publicContextKeys
	if l.band.Mode() == ModePrivate {
		contextKeys = privateContextKeys
	}
	observedContext := flatten(rawContext, contextKeys)

	var arm bandit.Arm
	if iteration == 1 {
		current, err := l.mutator.GetCurrentResources(ctx, l.appName)
		if err != nil {
			return fmt.Errorf("orchestrator: reading current resources: %w", err)
		}
		if current != nil {
			arm = l.projector.FromParameters(Parameters{
				CPU: current.CPU, Memory: current.Memory,
				Replicas: current.Replicas, NodeAffinities: current.NodeAffinities,
			})
		}
	}
	if arm == nil {
		arm, err = l.band.SelectAction(observedContext)
		if err != nil {
			return fmt.Errorf("orchestrator: selecting action: %w", err)
		}
	}

	params, err := l.projector.ToParameters(arm)
	if err != nil {
		return fmt.Errorf("orchestrator: projecting arm: %w", err)
	}
	if _, err := l.mutator.ApplyResourceAction(ctx, l.appName, params.CPU, params.Memory, params.Replicas, params.NodeAffinities); err != nil {
		return fmt.Errorf("orchestrator: applying resource action: %w", err)
	}

	if l.settle > 0 {
		select {
		case <-time.After(l.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var appType string
	if l.classifier != nil {
		appType, _ = l.classifier.IdentifyAppType(ctx, l.appName)
		if chars, err := l.classifier.Characteristics(ctx, l.appName); err == nil {
			l.log.Debug().Interface("characteristics", chars).Msg("workload characteristics")
		}
	}

	perfMetrics, err := l.source.GetPerformanceMetrics(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: fetching performance metrics: %w", err)
	}
	performance := performanceSignal(appType, perfMetrics)

	var secondary float64
	var isSafe bool
	switch l.band.Mode() {
	case ModePublic:
		secondary = calculateCost(arm, rawContext)
	case ModePrivate:
		usage, err := l.source.GetResourceUsage(ctx)
		if err != nil {
			return fmt.Errorf("orchestrator: fetching resource usage: %w", err)
		}
		secondary = usage["memory"] / gibibyte
		if l.resourceEnforcer != nil {
			if limit, ok := l.resourceEnforcer.AbsoluteLimits()["cpu"]; ok && limit > 0 {
				l.log.Debug().Interface("safety_margins", l.resourceEnforcer.SafetyMargins(usage)).Msg("resource safety margins")
			}
		}
	}

	reward, safe, err := l.band.Update(arm, observedContext, performance, secondary)
	isSafe = safe
	if err != nil {
		return fmt.Errorf("orchestrator: updating bandit: %w", err)
	}
	l.band.Log(l.log, performance, isSafe)

	regret := 0.0
	if l.band.Mode() == ModePublic {
		regret = l.band.public.Regret()
	}
	if l.metrics != nil {
		l.metrics.Observe(l.band.Iteration(), reward, regret, l.band.SafeSetSize(), isSafe)
	}
	l.history.Append(history.Record{
		Iteration:    iteration,
		CPU:          params.CPU,
		MemoryMi:     parseMemoryMi(params.Memory),
		Replicas:     params.Replicas,
		Performance:  performance,
		Secondary:    secondary,
		Reward:       reward,
		SafeSetSize:  l.band.SafeSetSize(),
		WithinBudget: isSafe,
	})
	return nil
}

// performanceSignal selects job_time for batch workloads (shorter is
// better, so performance is its reciprocal) and p90_latency for
// microservices (lower is better, so performance is its negation),
// defaulting to the microservice signal when the app type is unknown.
func performanceSignal(appType string, metrics map[string]float64) float64 {
	if appType == cluster.AppTypeBatch {
		jobTime := metrics["job_time"]
		if jobTime <= 0 {
			return 0
		}
		return 1.0 / jobTime
	}
	return -metrics["p90_latency"]
}

func flatten(m map[string]float64, keys []string) bandit.Context {
	out := make(bandit.Context, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

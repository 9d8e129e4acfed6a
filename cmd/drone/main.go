// Command drone runs the resource orchestration loop for a single
// workload, choosing the public-cloud or private-cloud bandit strategy
// per --mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MSRG/DRONE/internal/bandit"
	"github.com/MSRG/DRONE/internal/cluster"
	"github.com/MSRG/DRONE/internal/config"
	"github.com/MSRG/DRONE/internal/history"
	"github.com/MSRG/DRONE/internal/logging"
	"github.com/MSRG/DRONE/internal/metrics"
	"github.com/MSRG/DRONE/internal/monitoring"
	"github.com/MSRG/DRONE/internal/orchestrator"
)

const windowSize = 50

type runFlags struct {
	appName       string
	namespace     string
	mode          string
	prometheusURL string
	redisAddr     string
	configFile    string
	inCluster     bool
	verbose       bool
	iterations    int
	interval      time.Duration
	settleWait    time.Duration
	numActions    int
	metricsAddr   string
	historyFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "drone",
		Short: "Bandit-driven container resource orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.appName, "app-name", "", "name of the Deployment/StatefulSet to orchestrate (required)")
	cmd.Flags().StringVar(&flags.namespace, "namespace", "default", "kubernetes namespace")
	cmd.Flags().StringVar(&flags.mode, "mode", "public", "orchestration mode: public or private")
	cmd.Flags().StringVar(&flags.prometheusURL, "prometheus-url", "http://localhost:9090", "prometheus-compatible query endpoint")
	cmd.Flags().StringVar(&flags.redisAddr, "redis-addr", "", "optional redis address for query caching")
	cmd.Flags().StringVar(&flags.configFile, "config-file", "", "optional YAML configuration file")
	cmd.Flags().BoolVar(&flags.inCluster, "in-cluster", false, "use in-cluster kubernetes config instead of local kubeconfig")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	cmd.Flags().IntVar(&flags.iterations, "iterations", 0, "maximum number of iterations (0 means unbounded)")
	cmd.Flags().DurationVar(&flags.interval, "interval", time.Minute, "interval between orchestration iterations")
	cmd.Flags().DurationVar(&flags.settleWait, "settle-wait", 30*time.Second, "wait after applying a resource action before observing metrics")
	cmd.Flags().IntVar(&flags.numActions, "num-actions", 0, "cap on the size of the constructed arm set (0 means unbounded)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "optional address to expose prometheus /metrics on")
	cmd.Flags().StringVar(&flags.historyFile, "history-file", "", "optional CSV path to write iteration history to on exit")
	cmd.MarkFlagRequired("app-name")
	return cmd
}

func run(ctx context.Context, flags *runFlags) error {
	log := logging.New(os.Stderr, flags.verbose)
	runID := uuid.New().String()
	log = log.With().Str("run_id", runID).Str("app", flags.appName).Logger()

	if flags.mode != "public" && flags.mode != "private" {
		return fmt.Errorf("drone: --mode must be \"public\" or \"private\", got %q", flags.mode)
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return fmt.Errorf("drone: loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mutator, err := cluster.NewKubernetesMutator(flags.namespace, flags.inCluster, log)
	if err != nil {
		return fmt.Errorf("drone: building cluster mutator: %w", err)
	}

	var cache monitoring.QueryCache
	if flags.redisAddr != "" {
		cache = monitoring.NewRedisCache(flags.redisAddr, flags.interval, log)
	}
	source, err := monitoring.NewPrometheus(flags.prometheusURL, flags.appName, flags.namespace, cache, log)
	if err != nil {
		return fmt.Errorf("drone: building monitoring source: %w", err)
	}

	nodes, err := mutator.GetNodes(ctx)
	if err != nil {
		return fmt.Errorf("drone: listing cluster nodes: %w", err)
	}
	rng := rand.New(rand.NewSource(1))
	armSet, zoneHosts, err := orchestrator.NewArmSetBuilder(rng).Build(nodes, flags.numActions)
	if err != nil {
		return fmt.Errorf("drone: building arm set: %w", err)
	}
	projector := orchestrator.NewArmProjector(zoneHosts)

	var band *orchestrator.Bandit
	var objectiveEnforcer *orchestrator.ObjectiveEnforcer
	var resourceEnforcer *orchestrator.ResourceEnforcer

	switch flags.mode {
	case "public":
		objectiveEnforcer, err = orchestrator.NewObjectiveEnforcer(cfg.Alpha, cfg.Beta, log)
		if err != nil {
			return fmt.Errorf("drone: configuring objective weights: %w", err)
		}
		alpha, beta := objectiveEnforcer.Weights()
		b, err := bandit.NewUnconstrainedBandit(armSet, alpha, beta, windowSize, log)
		if err != nil {
			return fmt.Errorf("drone: constructing public bandit: %w", err)
		}
		band = orchestrator.NewPublicBandit(b)
	case "private":
		resourceEnforcer, err = orchestrator.NewResourceEnforcer(cfg.ResourceLimits, log)
		if err != nil {
			return fmt.Errorf("drone: configuring resource limits: %w", err)
		}
		resourceEnforcer.CalculateAbsoluteLimits(nodes)
		pMax := config.DefaultPMax
		if memoryLimit, ok := resourceEnforcer.AbsoluteLimits()["memory"]; ok && memoryLimit > 0 {
			pMax = memoryLimit / (1 << 30)
		}
		b, err := bandit.NewConstrainedBandit(armSet, pMax, nil, windowSize, log)
		if err != nil {
			return fmt.Errorf("drone: constructing private bandit: %w", err)
		}
		band = orchestrator.NewPrivateBandit(b)
	}

	classifier := cluster.NewKubernetesClassifier(mutator.Clientset(), flags.namespace, log)

	var recorder *metrics.Recorder
	if flags.metricsAddr != "" {
		recorder = metrics.NewRecorder()
		go func() {
			if err := recorder.Serve(ctx, flags.metricsAddr, log); err != nil {
				log.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	loop, err := orchestrator.New(orchestrator.Options{
		AppName:           flags.appName,
		Namespace:         flags.namespace,
		Interval:          flags.interval,
		SettleWait:        flags.settleWait,
		MaxIterations:     flags.iterations,
		Mutator:           mutator,
		Classifier:        classifier,
		Source:            source,
		Projector:         projector,
		Band:              band,
		ObjectiveEnforcer: objectiveEnforcer,
		ResourceEnforcer:  resourceEnforcer,
		History:           history.NewWriter(),
		Metrics:           recorder,
		Log:               log,
	})
	if err != nil {
		return fmt.Errorf("drone: constructing orchestration loop: %w", err)
	}

	runErr := loop.Start(ctx)
	if flags.historyFile != "" {
		if err := loop.History().WriteFile(flags.historyFile); err != nil {
			log.Error().Err(err).Msg("failed to write history file")
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("drone: orchestration loop exited: %w", runErr)
	}
	return nil
}

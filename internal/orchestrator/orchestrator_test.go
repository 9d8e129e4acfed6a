package orchestrator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSRG/DRONE/internal/bandit"
	"github.com/MSRG/DRONE/internal/cluster"
	"github.com/MSRG/DRONE/internal/logging"
)

type fakeMutator struct {
	applied  int
	current  *cluster.ResourceSpec
	lastArgs struct {
		cpu      float64
		memory   string
		replicas int
	}
}

func (m *fakeMutator) GetNodes(ctx context.Context) ([]cluster.Node, error) {
	return []cluster.Node{{Name: "n1", Allocatable: map[string]string{"cpu": "4", "memory": "8Gi"}}}, nil
}

func (m *fakeMutator) GetCurrentResources(ctx context.Context, appName string) (*cluster.ResourceSpec, error) {
	return m.current, nil
}

func (m *fakeMutator) ApplyResourceAction(ctx context.Context, appName string, cpu float64, memory string, replicas int, nodeAffinities map[string][]string) (bool, error) {
	m.applied++
	m.lastArgs.cpu, m.lastArgs.memory, m.lastArgs.replicas = cpu, memory, replicas
	return true, nil
}

type fakeClassifier struct{}

func (fakeClassifier) IdentifyAppType(ctx context.Context, appName string) (string, error) {
	return cluster.AppTypeMicroservice, nil
}

func (fakeClassifier) Characteristics(ctx context.Context, appName string) (cluster.Characteristics, error) {
	return cluster.Characteristics{AppType: cluster.AppTypeMicroservice}, nil
}

type fakeSource struct {
	perfQueries int
}

func (s *fakeSource) GetContext(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"workload": 1, "cpu_util": 0.3, "spot_price": 2}, nil
}

func (s *fakeSource) GetPerformanceMetrics(ctx context.Context) (map[string]float64, error) {
	s.perfQueries++
	return map[string]float64{"p90_latency": 0.2, "job_time": 5}, nil
}

func (s *fakeSource) GetResourceUsage(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"cpu": 1.5, "memory": 2 * gibibyte}, nil
}

func buildTestLoop(t *testing.T, mode Mode) (*Loop, *fakeMutator, *fakeSource) {
	log := logging.New(io.Discard, false)
	armSet := make(bandit.ArmSet, 6)
	for i := range armSet {
		armSet[i] = bandit.Arm{float64(i%4) + 0.5, 512, float64(i + 1), 1} // cpu, memory, replicas, zone-1
	}
	projector := NewArmProjector(map[string][]string{"zone-1": {"n1"}})

	var b *Bandit
	switch mode {
	case ModePublic:
		inner, err := bandit.NewUnconstrainedBandit(armSet, 0.5, 0.5, 10, log)
		require.NoError(t, err)
		b = NewPublicBandit(inner)
	case ModePrivate:
		inner, err := bandit.NewConstrainedBandit(armSet, 10, nil, 10, log)
		require.NoError(t, err)
		b = NewPrivateBandit(inner)
	}

	mutator := &fakeMutator{current: &cluster.ResourceSpec{CPU: 1, Memory: "512Mi", Replicas: 2}}
	source := &fakeSource{}
	loop, err := New(Options{
		AppName:    "demo",
		Namespace:  "default",
		Interval:   time.Hour,
		SettleWait: 0,
		Mutator:    mutator,
		Classifier: fakeClassifier{},
		Source:     source,
		Projector:  projector,
		Band:       b,
		Log:        log,
	})
	require.NoError(t, err)
	return loop, mutator, source
}

func TestIterateAppliesActionAndUpdatesBandit(t *testing.T) {
	loop, mutator, source := buildTestLoop(t, ModePublic)
	require.NoError(t, loop.iterate(context.Background()))
	assert.Equal(t, 1, mutator.applied)
	assert.Equal(t, 1, source.perfQueries)
	assert.Equal(t, 2, loop.band.Iteration())
	assert.Equal(t, 1, loop.history.Len())
}

func TestIterateSeedsFromCurrentResourcesOnFirstCall(t *testing.T) {
	loop, mutator, _ := buildTestLoop(t, ModePublic)
	require.NoError(t, loop.iterate(context.Background()))
	assert.Equal(t, 1.0, mutator.lastArgs.cpu)
	assert.Equal(t, "512Mi", mutator.lastArgs.memory)
	assert.Equal(t, 2, mutator.lastArgs.replicas)
}

func TestIteratePrivateModeConvertsMemoryUsageToGiB(t *testing.T) {
	loop, _, _ := buildTestLoop(t, ModePrivate)
	require.NoError(t, loop.iterate(context.Background()))
	require.Equal(t, 1, loop.history.Len())
	assert.InDelta(t, 2.0, loop.history.Records()[0].Secondary, 1e-9)
}

func TestIteratePublicModeUsesCostFormula(t *testing.T) {
	loop, _, _ := buildTestLoop(t, ModePublic)
	require.NoError(t, loop.iterate(context.Background()))
	require.Equal(t, 1, loop.history.Len())
	// seeded arm (iteration 1) is [cpu=1, mem_MiB=512, replicas=2, zone=0],
	// spot_price=2 from fakeSource.GetContext.
	expected := 2.0 * (1*cpuDollarPerCoreHour + (512.0/1024)*memDollarPerGiBHour) * 2.0
	assert.InDelta(t, expected, loop.history.Records()[0].Secondary, 1e-9)
}

func TestCalculateCostAppliesFormulaAndSpotPrice(t *testing.T) {
	arm := bandit.Arm{2, 1024, 3}
	withoutSpot := calculateCost(arm, map[string]float64{})
	expectedBase := 3 * (2*cpuDollarPerCoreHour + (1024.0/1024)*memDollarPerGiBHour)
	assert.InDelta(t, expectedBase, withoutSpot, 1e-9)

	withSpot := calculateCost(arm, map[string]float64{"spot_price": 1.5})
	assert.InDelta(t, expectedBase*1.5, withSpot, 1e-9)
}

func TestContextDimensionDropsSpotPriceInPrivateMode(t *testing.T) {
	loop, _, _ := buildTestLoop(t, ModePrivate)
	require.NoError(t, loop.iterate(context.Background()))
	assert.Len(t, privateContextKeys, 4)
	assert.NotContains(t, privateContextKeys, "spot_price")
	assert.Contains(t, publicContextKeys, "spot_price")
}

func TestPerformanceSignalPrefersReciprocalForBatch(t *testing.T) {
	metrics := map[string]float64{"job_time": 2, "p90_latency": 0.5}
	assert.InDelta(t, 0.5, performanceSignal(cluster.AppTypeBatch, metrics), 1e-9)
	assert.InDelta(t, -0.5, performanceSignal(cluster.AppTypeMicroservice, metrics), 1e-9)
}

func TestFlattenPreservesKeyOrder(t *testing.T) {
	m := map[string]float64{"b": 2, "a": 1}
	got := flatten(m, []string{"a", "b"})
	assert.Equal(t, bandit.Context{1, 2}, got)
}

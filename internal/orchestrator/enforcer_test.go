package orchestrator

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSRG/DRONE/internal/cluster"
	"github.com/MSRG/DRONE/internal/logging"
)

func TestNewObjectiveEnforcerRejectsNegativeWeights(t *testing.T) {
	log := logging.New(io.Discard, false)
	_, err := NewObjectiveEnforcer(-1, 0.5, log)
	require.Error(t, err)
}

func TestNewObjectiveEnforcerNormalisesWeights(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewObjectiveEnforcer(3, 1, log)
	require.NoError(t, err)
	alpha, beta := e.Weights()
	assert.InDelta(t, 0.75, alpha, 1e-9)
	assert.InDelta(t, 0.25, beta, 1e-9)
}

func TestNewObjectiveEnforcerZeroWeightsDefaultToEven(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewObjectiveEnforcer(0, 0, log)
	require.NoError(t, err)
	alpha, beta := e.Weights()
	assert.Equal(t, 0.5, alpha)
	assert.Equal(t, 0.5, beta)
}

func TestNewResourceEnforcerRejectsOutOfRangeLimits(t *testing.T) {
	log := logging.New(io.Discard, false)
	_, err := NewResourceEnforcer(map[string]float64{"cpu": 1.5}, log)
	require.Error(t, err)
}

func TestNewResourceEnforcerDefaultsWhenNil(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewResourceEnforcer(nil, log)
	require.NoError(t, err)
	assert.Equal(t, 0.8, e.limits["cpu"])
}

func TestCalculateAbsoluteLimitsSumsAcrossNodes(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewResourceEnforcer(map[string]float64{"cpu": 0.5, "memory": 0.5}, log)
	require.NoError(t, err)

	nodes := []cluster.Node{
		{Name: "n1", Allocatable: map[string]string{"cpu": "4", "memory": "8Gi"}},
		{Name: "n2", Allocatable: map[string]string{"cpu": "2000m", "memory": "4096Mi"}},
	}
	e.CalculateAbsoluteLimits(nodes)
	limits := e.AbsoluteLimits()
	assert.InDelta(t, 3.0, limits["cpu"], 1e-6) // (4 + 2) * 0.5
	expectedMemory := (8*1024*1024*1024 + 4096*1024*1024) * 0.5
	assert.InDelta(t, expectedMemory, limits["memory"], 1e-6)
}

func TestCalculateAbsoluteLimitsNoNodesLeavesLimitsEmpty(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewResourceEnforcer(nil, log)
	require.NoError(t, err)
	e.CalculateAbsoluteLimits(nil)
	assert.Empty(t, e.AbsoluteLimits())
}

func TestSafetyMarginsClampsAtZero(t *testing.T) {
	log := logging.New(io.Discard, false)
	e, err := NewResourceEnforcer(map[string]float64{"cpu": 1.0}, log)
	require.NoError(t, err)
	e.CalculateAbsoluteLimits([]cluster.Node{{Name: "n1", Allocatable: map[string]string{"cpu": "4"}}})

	margins := e.SafetyMargins(map[string]float64{"cpu": 1.0})
	assert.InDelta(t, 0.75, margins["cpu"], 1e-9)

	overBudget := e.SafetyMargins(map[string]float64{"cpu": 10})
	assert.Equal(t, 0.0, overBudget["cpu"])
}

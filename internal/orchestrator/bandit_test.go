package orchestrator

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSRG/DRONE/internal/bandit"
	"github.com/MSRG/DRONE/internal/logging"
)

func buildTestArmSet(n int) bandit.ArmSet {
	armSet := make(bandit.ArmSet, n)
	for i := range armSet {
		armSet[i] = bandit.Arm{float64(i), 1}
	}
	return armSet
}

func TestPublicBanditWrapperDispatchesCorrectly(t *testing.T) {
	log := logging.New(io.Discard, false)
	inner, err := bandit.NewUnconstrainedBandit(buildTestArmSet(3), 0.5, 0.5, 10, log)
	require.NoError(t, err)
	b := NewPublicBandit(inner)

	assert.Equal(t, ModePublic, b.Mode())
	assert.Equal(t, -1, b.SafeSetSize())

	arm, err := b.SelectAction(bandit.Context{1})
	require.NoError(t, err)

	_, isSafe, err := b.Update(arm, bandit.Context{1}, 1.0, 0.5)
	require.NoError(t, err)
	assert.True(t, isSafe)
	assert.Equal(t, 2, b.Iteration())
}

func TestPrivateBanditWrapperDispatchesCorrectly(t *testing.T) {
	log := logging.New(io.Discard, false)
	armSet := buildTestArmSet(4)
	inner, err := bandit.NewConstrainedBandit(armSet, 10, nil, 10, log)
	require.NoError(t, err)
	b := NewPrivateBandit(inner)

	assert.Equal(t, ModePrivate, b.Mode())
	assert.Greater(t, b.SafeSetSize(), 0)

	arm, err := b.SelectAction(bandit.Context{1})
	require.NoError(t, err)

	_, isSafe, err := b.Update(arm, bandit.Context{1}, 1.0, 100)
	require.NoError(t, err)
	assert.False(t, isSafe)
}

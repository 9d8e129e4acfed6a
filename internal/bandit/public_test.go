package bandit

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnconstrainedBanditRejectsNegativeWeights(t *testing.T) {
	armSet := ArmSet{{1}, {2}}
	_, err := NewUnconstrainedBandit(armSet, -1, 0.5, 30, zerolog.Nop())
	require.Error(t, err)
}

func TestUnconstrainedBanditIterationCounterAdvances(t *testing.T) {
	armSet := ArmSet{{1}, {2}}
	b, err := NewUnconstrainedBandit(armSet, 0.5, 0.5, 30, zerolog.Nop())
	require.NoError(t, err)
	for tIdx := 0; tIdx < 5; tIdx++ {
		assert.Equal(t, tIdx+1, b.Iteration())
		_, err := b.Update(Arm{1}, Context{0}, 1.0, 0.1)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, b.Iteration())
}

func TestUnconstrainedBanditDominantArmWins(t *testing.T) {
	armSet := ArmSet{{1}, {2}}
	b, err := NewUnconstrainedBandit(armSet, 1.0, 0.0, 30, zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := b.Update(Arm{1}, Context{0}, 10, 0)
		require.NoError(t, err)
		_, err = b.Update(Arm{2}, Context{0}, 0, 0)
		require.NoError(t, err)
	}
	action, err := b.SelectAction(Context{0})
	require.NoError(t, err)
	assert.Equal(t, Arm{1}, action)
}

func TestUnconstrainedBanditRewardFormula(t *testing.T) {
	b, err := NewUnconstrainedBandit(ArmSet{{1}, {2}}, 0.5, 0.5, 30, zerolog.Nop())
	require.NoError(t, err)
	assert.InDelta(t, 4.5, b.Reward(10, 1), 1e-9)
}

func TestUnconstrainedBanditRegretIsZeroWithNoHistory(t *testing.T) {
	b, err := NewUnconstrainedBandit(ArmSet{{1}, {2}}, 0.5, 0.5, 30, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Regret())
}

func TestUnconstrainedBanditResetClearsStateButKeepsArmSet(t *testing.T) {
	b, err := NewUnconstrainedBandit(ArmSet{{1}, {2}}, 0.5, 0.5, 30, zerolog.Nop())
	require.NoError(t, err)
	_, err = b.Update(Arm{1}, Context{0}, 5, 1)
	require.NoError(t, err)
	b.Reset()
	assert.Equal(t, 1, b.Iteration())
	assert.Empty(t, b.History().Rewards)
	assert.Equal(t, ArmSet{{1}, {2}}, b.armSet)
}

package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSRG/DRONE/internal/gp"
)

func TestBetaClampsLogTermAtOne(t *testing.T) {
	got := Beta(1, 1)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestBetaIsPositiveAndNonDecreasing(t *testing.T) {
	prev := 0.0
	for tt := 1; tt <= 200; tt++ {
		b := Beta(tt, 4)
		assert.Greater(t, b, 0.0)
		assert.GreaterOrEqual(t, b, prev-1e-9)
		prev = b
	}
}

func TestSelectUCBActionEmptyGPTieBreaksLowestIndex(t *testing.T) {
	g := gp.New(30)
	armSet := [][]float64{{1.0}, {2.0}}
	context := []float64{0.0}
	idx, arm, score, err := SelectUCBAction(armSet, context, g, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []float64{1.0}, arm)
	assert.Greater(t, score, 0.0)
}

func TestSelectUCBActionPrefersHigherMean(t *testing.T) {
	g := gp.New(30)
	require.NoError(t, g.Update([][]float64{{1, 0}}, []float64{10}))
	require.NoError(t, g.Update([][]float64{{2, 0}}, []float64{0}))
	for i := 0; i < 4; i++ {
		require.NoError(t, g.Update([][]float64{{1, 0}}, []float64{10}))
		require.NoError(t, g.Update([][]float64{{2, 0}}, []float64{0}))
	}
	idx, arm, _, err := SelectUCBAction([][]float64{{1}, {2}}, []float64{0}, g, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []float64{1.0}, arm)
}

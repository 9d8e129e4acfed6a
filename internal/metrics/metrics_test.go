package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSetsGaugeValues(t *testing.T) {
	r := NewRecorder()
	r.Observe(3, 1.5, 0.25, 4, true)

	assert.InDelta(t, 3, testutil.ToFloat64(r.iteration), 1e-9)
	assert.InDelta(t, 1.5, testutil.ToFloat64(r.reward), 1e-9)
	assert.InDelta(t, 0.25, testutil.ToFloat64(r.regret), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(r.safeSetSize), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.withinBudget), 1e-9)
}

func TestObserveWithinBudgetFalseSetsZero(t *testing.T) {
	r := NewRecorder()
	r.Observe(1, 0, 0, -1, false)
	assert.InDelta(t, 0, testutil.ToFloat64(r.withinBudget), 1e-9)
}

package bandit

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/MSRG/DRONE/internal/acquisition"
	"github.com/MSRG/DRONE/internal/gp"
)

// defaultExplorationDuration (T_expl) is the number of initial iterations
// spent sampling uniformly from the safe set before exploitation begins.
const defaultExplorationDuration = 10

// PrivateCloudHistory records one row per update, including the safe-set
// size observed at that step, mirroring the reference implementation.
type PrivateCloudHistory struct {
	Actions       []Arm
	Contexts      []Context
	Performance   []float64
	ResourceUsage []float64
	SafeSetSize   []int
}

// ConstrainedBandit (private-cloud mode) maximises performance subject to a
// hard resource budget, using two GPs (performance, resource) and a
// lower-confidence-bound safe-set filter on the resource GP.
type ConstrainedBandit struct {
	armSet              ArmSet
	resourceLimit       float64
	explorationDuration int
	confidenceLevel     float64 // reserved; not consumed by the beta(t) schedule

	t               int
	explorationPhase bool
	safeSet         ArmSet

	performanceGP *gp.GaussianProcess
	resourceGP    *gp.GaussianProcess

	history PrivateCloudHistory
	rng     *rand.Rand
	log     zerolog.Logger
}

// ConstrainedBanditOption configures optional constructor parameters.
type ConstrainedBanditOption func(*ConstrainedBandit)

// WithExplorationDuration overrides the default exploration-phase length.
func WithExplorationDuration(n int) ConstrainedBanditOption {
	return func(b *ConstrainedBandit) { b.explorationDuration = n }
}

// WithConfidenceLevel stores delta; accepted for API parity with the
// reference implementation but never consumed by the beta(t) schedule.
func WithConfidenceLevel(delta float64) ConstrainedBanditOption {
	return func(b *ConstrainedBandit) { b.confidenceLevel = delta }
}

// WithRand overrides the source of randomness used during the exploration
// phase, for deterministic tests.
func WithRand(rng *rand.Rand) ConstrainedBanditOption {
	return func(b *ConstrainedBandit) { b.rng = rng }
}

// NewConstrainedBandit constructs a private-cloud bandit. If initialSafeSet
// is nil, the safe set seeds from the first ceil(25%) of armSet.
func NewConstrainedBandit(armSet ArmSet, resourceLimit float64, initialSafeSet ArmSet, windowSize int, log zerolog.Logger, opts ...ConstrainedBanditOption) (*ConstrainedBandit, error) {
	if len(armSet) == 0 {
		return nil, fmt.Errorf("bandit: arm set must not be empty")
	}
	b := &ConstrainedBandit{
		armSet:              armSet.Clone(),
		resourceLimit:       resourceLimit,
		explorationDuration: defaultExplorationDuration,
		confidenceLevel:     0.1,
		t:                   1,
		explorationPhase:    true,
		performanceGP:       gp.New(windowSize),
		resourceGP:          gp.New(windowSize),
		rng:                 rand.New(rand.NewSource(1)),
		log:                 log,
	}
	for _, opt := range opts {
		opt(b)
	}
	if initialSafeSet == nil {
		size := ceilFraction(len(armSet), 0.25)
		b.safeSet = armSet[:size].Clone()
	} else {
		if len(initialSafeSet) == 0 {
			return nil, fmt.Errorf("bandit: initial safe set must not be empty")
		}
		b.safeSet = initialSafeSet.Clone()
	}
	return b, nil
}

func ceilFraction(n int, frac float64) int {
	size := int(math.Ceil(float64(n) * frac))
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}
	return size
}

// SafeSet returns the current safe set.
func (b *ConstrainedBandit) SafeSet() ArmSet { return b.safeSet }

// ExplorationPhase reports whether the bandit is still in its initial
// exploration window (t <= T_expl).
func (b *ConstrainedBandit) ExplorationPhase() bool { return b.explorationPhase }

// Iteration returns the current iteration counter t.
func (b *ConstrainedBandit) Iteration() int { return b.t }

// History returns the accumulated observation history.
func (b *ConstrainedBandit) History() PrivateCloudHistory { return b.history }

// recomputeSafeSet replaces the safe set with every arm in the full arm set
// whose resource-GP LCB is within budget. If the filtered set would be
// empty, the previous safe set is retained and a warning is logged.
func (b *ConstrainedBandit) recomputeSafeSet(context Context) ArmSet {
	d := len(b.armSet[0]) + len(context)
	betaT := acquisition.Beta(b.t, d)
	sqrtBeta := math.Sqrt(betaT)

	rows := toFloatRows(b.armSet, context)
	mean, std, err := b.resourceGP.Predict(rows)
	if err != nil {
		b.log.Warn().Err(err).Msg("resource GP prediction failed during safe-set recomputation; keeping previous safe set")
		return b.safeSet
	}

	var admitted ArmSet
	for i, a := range b.armSet {
		lcb := mean[i] - sqrtBeta*std[i]
		if lcb <= b.resourceLimit {
			admitted = append(admitted, a)
		}
	}
	if len(admitted) == 0 {
		b.log.Warn().Msg("safe-set recomputation produced an empty set; keeping previous safe set")
		return b.safeSet
	}
	b.safeSet = admitted
	return b.safeSet
}

// SelectAction implements the two-phase protocol: uniform sampling from the
// safe set during exploration (t <= T_expl), UCB over a recomputed safe set
// during exploitation.
func (b *ConstrainedBandit) SelectAction(context Context) (Arm, error) {
	if b.t <= b.explorationDuration {
		b.explorationPhase = true
		return b.safeSet[b.rng.Intn(len(b.safeSet))], nil
	}
	b.explorationPhase = false
	safeSet := b.recomputeSafeSet(context)

	d := len(b.armSet[0]) + len(context)
	rows := make([][]float64, len(safeSet))
	for i, a := range safeSet {
		rows[i] = []float64(a)
	}
	idx, _, _, err := acquisition.SelectUCBAction(rows, context, b.performanceGP, b.t, d)
	if err != nil {
		return nil, fmt.Errorf("bandit: selecting action: %w", err)
	}
	return safeSet[idx], nil
}

// Update feeds back an observed (performance, resource) pair into both GPs,
// appends to history, and advances t. Returns the performance value
// unchanged and whether the observed resource usage is within budget.
func (b *ConstrainedBandit) Update(arm Arm, context Context, performance, resourceUsage float64) (float64, bool, error) {
	isSafe := resourceUsage <= b.resourceLimit
	x := concat(arm, context)
	if err := b.performanceGP.Update([][]float64{x}, []float64{performance}); err != nil {
		return 0, false, fmt.Errorf("bandit: updating performance GP: %w", err)
	}
	if err := b.resourceGP.Update([][]float64{x}, []float64{resourceUsage}); err != nil {
		return 0, false, fmt.Errorf("bandit: updating resource GP: %w", err)
	}
	b.history.Actions = append(b.history.Actions, arm)
	b.history.Contexts = append(b.history.Contexts, context)
	b.history.Performance = append(b.history.Performance, performance)
	b.history.ResourceUsage = append(b.history.ResourceUsage, resourceUsage)
	b.history.SafeSetSize = append(b.history.SafeSetSize, len(b.safeSet))
	b.t++
	return performance, isSafe, nil
}

// Reset clears both GPs, resets t to 1 and the exploration-phase flag, and
// clears history. The safe set is deliberately NOT reset — see DESIGN.md.
func (b *ConstrainedBandit) Reset() {
	b.performanceGP.Reset()
	b.resourceGP.Reset()
	b.t = 1
	b.explorationPhase = true
	b.history = PrivateCloudHistory{}
}

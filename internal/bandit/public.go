package bandit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MSRG/DRONE/internal/acquisition"
	"github.com/MSRG/DRONE/internal/gp"
)

// PublicCloudHistory records one row per update, mirroring the reference
// implementation's history dict, for regret reporting and CSV export.
type PublicCloudHistory struct {
	Actions     []Arm
	Contexts    []Context
	Rewards     []float64
	Performance []float64
	Costs       []float64
}

// UnconstrainedBandit (public-cloud mode) maximises a weighted
// performance/cost scalar over a single GP surrogate.
type UnconstrainedBandit struct {
	armSet  ArmSet
	alpha   float64
	beta    float64
	t       int
	gpModel *gp.GaussianProcess
	history PublicCloudHistory
	log     zerolog.Logger
}

// NewUnconstrainedBandit constructs a public-cloud bandit. alpha and beta
// must be non-negative weights on performance and cost respectively; the
// caller (the orchestrator's ObjectiveEnforcer) is responsible for
// normalising them to sum to 1 before calling this constructor.
func NewUnconstrainedBandit(armSet ArmSet, alpha, beta float64, windowSize int, log zerolog.Logger) (*UnconstrainedBandit, error) {
	if alpha < 0 || beta < 0 {
		return nil, fmt.Errorf("bandit: reward weights must be non-negative, got alpha=%g beta=%g", alpha, beta)
	}
	if len(armSet) == 0 {
		return nil, fmt.Errorf("bandit: arm set must not be empty")
	}
	return &UnconstrainedBandit{
		armSet:  armSet.Clone(),
		alpha:   alpha,
		beta:    beta,
		t:       1,
		gpModel: gp.New(windowSize),
		log:     log,
	}, nil
}

// Reward computes the scalarised reward alpha*performance - beta*cost.
func (b *UnconstrainedBandit) Reward(performance, cost float64) float64 {
	return b.alpha*performance - b.beta*cost
}

// SelectAction delegates to UCB over the entire arm set; there is no
// separate exploration phase, the UCB's own beta(t) is the explorer.
func (b *UnconstrainedBandit) SelectAction(context Context) (Arm, error) {
	d := len(b.armSet[0]) + len(context)
	rows := make([][]float64, len(b.armSet))
	for i, a := range b.armSet {
		rows[i] = []float64(a)
	}
	idx, _, _, err := acquisition.SelectUCBAction(rows, context, b.gpModel, b.t, d)
	if err != nil {
		return nil, fmt.Errorf("bandit: selecting action: %w", err)
	}
	return b.armSet[idx], nil
}

// Update feeds back an observed (performance, cost) pair for the given
// (arm, context) into the GP, appends to history, and advances t.
func (b *UnconstrainedBandit) Update(arm Arm, context Context, performance, cost float64) (float64, error) {
	reward := b.Reward(performance, cost)
	x := concat(arm, context)
	if err := b.gpModel.Update([][]float64{x}, []float64{reward}); err != nil {
		return 0, fmt.Errorf("bandit: updating GP: %w", err)
	}
	b.history.Actions = append(b.history.Actions, arm)
	b.history.Contexts = append(b.history.Contexts, context)
	b.history.Rewards = append(b.history.Rewards, reward)
	b.history.Performance = append(b.history.Performance, performance)
	b.history.Costs = append(b.history.Costs, cost)
	b.t++
	return reward, nil
}

// Regret reports cumulative regret relative to the best observed reward so
// far: sum(best - reward_i). Used for reporting only.
func (b *UnconstrainedBandit) Regret() float64 {
	if len(b.history.Rewards) == 0 {
		return 0
	}
	best := b.history.Rewards[0]
	for _, r := range b.history.Rewards {
		if r > best {
			best = r
		}
	}
	var regret float64
	for _, r := range b.history.Rewards {
		regret += best - r
	}
	return regret
}

// Iteration returns the current iteration counter t.
func (b *UnconstrainedBandit) Iteration() int { return b.t }

// History returns the accumulated observation history.
func (b *UnconstrainedBandit) History() PublicCloudHistory { return b.history }

// Reset clears the GP and history and resets t to 1.
func (b *UnconstrainedBandit) Reset() {
	b.gpModel.Reset()
	b.t = 1
	b.history = PublicCloudHistory{}
}

package orchestrator

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MSRG/DRONE/internal/bandit"
)

// Mode selects which bandit variant the orchestrator runs.
type Mode string

const (
	ModePublic  Mode = "public"
	ModePrivate Mode = "private"
)

// Bandit unifies UnconstrainedBandit and ConstrainedBandit behind a single
// surface so the orchestration loop branches on mode exactly once, at
// construction, instead of at every call site.
type Bandit struct {
	mode    Mode
	public  *bandit.UnconstrainedBandit
	private *bandit.ConstrainedBandit
}

// NewPublicBandit wraps an UnconstrainedBandit.
func NewPublicBandit(b *bandit.UnconstrainedBandit) *Bandit {
	return &Bandit{mode: ModePublic, public: b}
}

// NewPrivateBandit wraps a ConstrainedBandit.
func NewPrivateBandit(b *bandit.ConstrainedBandit) *Bandit {
	return &Bandit{mode: ModePrivate, private: b}
}

// Mode reports which variant this wraps.
func (b *Bandit) Mode() Mode { return b.mode }

// SelectAction dispatches to the wrapped bandit's action-selection policy.
func (b *Bandit) SelectAction(context bandit.Context) (bandit.Arm, error) {
	switch b.mode {
	case ModePublic:
		return b.public.SelectAction(context)
	case ModePrivate:
		return b.private.SelectAction(context)
	default:
		return nil, fmt.Errorf("orchestrator: unknown bandit mode %q", b.mode)
	}
}

// Update feeds an observation back into the wrapped bandit. secondary is
// cost in public mode and resource usage in private mode. isSafe is always
// true in public mode, since there is no safety constraint to violate.
func (b *Bandit) Update(arm bandit.Arm, context bandit.Context, performance, secondary float64) (reward float64, isSafe bool, err error) {
	switch b.mode {
	case ModePublic:
		r, err := b.public.Update(arm, context, performance, secondary)
		return r, true, err
	case ModePrivate:
		perf, safe, err := b.private.Update(arm, context, performance, secondary)
		return perf, safe, err
	default:
		return 0, false, fmt.Errorf("orchestrator: unknown bandit mode %q", b.mode)
	}
}

// Iteration returns the wrapped bandit's current iteration counter.
func (b *Bandit) Iteration() int {
	if b.mode == ModePublic {
		return b.public.Iteration()
	}
	return b.private.Iteration()
}

// SafeSetSize returns the current safe-set size in private mode, or the
// full arm-set behaviour (-1, not applicable) in public mode.
func (b *Bandit) SafeSetSize() int {
	if b.mode == ModePrivate {
		return len(b.private.SafeSet())
	}
	return -1
}

// Log emits a one-line per-iteration summary, matching the density the
// reference loop logs at.
func (b *Bandit) Log(log zerolog.Logger, performance float64, isSafe bool) {
	ev := log.Info().Int("iteration", b.Iteration()).Float64("performance", performance)
	if b.mode == ModePrivate {
		ev = ev.Int("safe_set_size", b.SafeSetSize()).Bool("within_budget", isSafe)
	}
	ev.Msg("bandit updated")
}

package arbiter

import (
	"sync"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// SourceSet is a bitmask over intent sources.
type SourceSet uint8

func NewSourceSet(sources ...types.IntentSource) SourceSet {
	var s SourceSet
	for _, src := range sources {
		s |= 1 << uint(src)
	}
	return s
}

func (s SourceSet) Has(src types.IntentSource) bool {
	return s&(1<<uint(src)) != 0
}

// Policy is the state machine's gate over the candidate set. Safety is
// always admitted regardless of the policy. A source in StopOnly may
// submit nothing but Stop intents.
type Policy struct {
	Enabled  SourceSet
	StopOnly SourceSet

	// PreferManualOnTie picks Manual over Voice when both carry the
	// exact same timestamp. Deliberately configurable rather than
	// hard-coded.
	PreferManualOnTie bool
}

// Arbiter resolves the per-tick candidate set into at most one motion
// decision. Decide is deterministic: the only state carried across
// ticks is the previously chosen intent, used for the implicit-stop
// grace period.
type Arbiter struct {
	logger *logger.Logger
	grace  time.Duration

	mu     sync.Mutex
	policy Policy
	prev   types.MotionIntent
	prevAt time.Time
}

func New(l *logger.Logger, grace time.Duration) *Arbiter {
	return &Arbiter{
		logger: l.WithTag("arbiter"),
		grace:  grace,
		policy: Policy{
			Enabled:           NewSourceSet(types.SourceManual),
			PreferManualOnTie: true,
		},
	}
}

// SetPolicy swaps the source gate, typically on a state transition.
func (a *Arbiter) SetPolicy(p Policy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.policy = p
	a.logger.Debugf("Arbitration policy updated: enabled=%08b stop-only=%08b", p.Enabled, p.StopOnly)
}

// Reset forgets the previous decision so no implicit stop is derived
// from it. Used when the gateway has already been force-stopped.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prev = types.MotionIntent{}
	a.prevAt = time.Time{}
}

// ForceStop records a stop decision outside the tick cadence, for
// state exits that must end motion without waiting for the grace
// window. The stop becomes the previous decision so no implicit stop
// is derived afterwards.
func (a *Arbiter) ForceStop(now time.Time, source types.IntentSource) types.MotionIntent {
	a.mu.Lock()
	defer a.mu.Unlock()

	stop := types.NewIntent(source, types.KindStop, 0, now)
	a.prev = stop
	a.prevAt = now
	return stop
}

// Decide picks the winning intent for this tick. ok is false when
// nothing should be applied, which includes the grace window after the
// candidates dry up.
func (a *Arbiter) Decide(now time.Time, candidates []types.MotionIntent) (types.MotionIntent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if chosen, ok := pick(a.policy, candidates); ok {
		a.prev = chosen
		a.prevAt = now
		return chosen, true
	}

	// implicit stop once the grace period after the last non-Stop
	// decision has elapsed, so momentary gaps do not chatter the drive
	if !a.prev.IsStop() && !a.prevAt.IsZero() && now.Sub(a.prevAt) >= a.grace {
		stop := types.NewIntent(a.prev.Source, types.KindStop, 0, now)
		a.prev = stop
		a.prevAt = now
		return stop, true
	}

	return types.MotionIntent{}, false
}

// pick is the pure selection function over one candidate list.
func pick(policy Policy, candidates []types.MotionIntent) (types.MotionIntent, bool) {
	var best types.MotionIntent
	found := false

	for _, c := range candidates {
		if !admitted(policy, c) {
			continue
		}
		if !found || better(policy, c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func admitted(policy Policy, c types.MotionIntent) bool {
	if c.Source == types.SourceSafety {
		return true
	}
	if !policy.Enabled.Has(c.Source) {
		return false
	}
	if policy.StopOnly.Has(c.Source) && !c.IsStop() {
		return false
	}
	return true
}

// better reports whether a beats b: higher priority first, then most
// recently issued, then the configured source tiebreak.
func better(policy Policy, a, b types.MotionIntent) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.IssuedAt.Equal(b.IssuedAt) {
		return a.IssuedAt.After(b.IssuedAt)
	}
	if policy.PreferManualOnTie {
		return a.Source > b.Source
	}
	return a.Source < b.Source
}

package arbiter

import (
	"io"
	"log"
	"math/rand"
	"testing"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

func testArbiter(grace time.Duration) *Arbiter {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelNone)
	return New(l, grace)
}

func allSources() Policy {
	return Policy{
		Enabled: NewSourceSet(types.SourceNavigation, types.SourceVoice,
			types.SourceManual, types.SourceSafety),
		PreferManualOnTie: true,
	}
}

func TestSourceSet(t *testing.T) {
	s := NewSourceSet(types.SourceManual, types.SourceVoice)

	if !s.Has(types.SourceManual) || !s.Has(types.SourceVoice) {
		t.Error("Expected manual and voice in set")
	}
	if s.Has(types.SourceNavigation) || s.Has(types.SourceSafety) {
		t.Error("Unexpected sources in set")
	}
}

func TestForceStopEndsMotionImmediately(t *testing.T) {
	a := testArbiter(50 * time.Millisecond)
	a.SetPolicy(allSources())
	now := time.Now()

	forward := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{forward}); !ok {
		t.Fatal("Expected the forward intent to be chosen")
	}

	stop := a.ForceStop(now.Add(10*time.Millisecond), types.SourceVoice)
	if !stop.IsStop() {
		t.Fatalf("Expected a stop intent, got %v", stop.Kind)
	}
	if stop.Source != types.SourceVoice {
		t.Errorf("Expected the stop to carry the given source, got %v", stop.Source)
	}

	// the forced stop replaces the previous decision, so the grace
	// window must not produce a second stop
	if extra, ok := a.Decide(now.Add(time.Second), nil); ok {
		t.Errorf("Expected no implicit stop after a forced stop, got %v", extra.Kind)
	}
}

func TestDecidePicksHighestPriority(t *testing.T) {
	a := testArbiter(time.Second)
	a.SetPolicy(allSources())
	now := time.Now()

	candidates := []types.MotionIntent{
		types.NewIntent(types.SourceNavigation, types.KindForward, 0.5, now),
		types.NewIntent(types.SourceManual, types.KindBackward, 0.5, now),
		types.NewIntent(types.SourceVoice, types.KindTurnLeft, 0.5, now),
	}

	chosen, ok := a.Decide(now, candidates)
	if !ok {
		t.Fatal("Expected a decision")
	}
	if chosen.Source != types.SourceManual {
		t.Errorf("Expected manual to win, got %v", chosen.Source)
	}
}

func TestDecideNewerWinsAtEqualPriority(t *testing.T) {
	a := testArbiter(time.Second)
	a.SetPolicy(allSources())
	now := time.Now()

	older := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now.Add(-time.Second))
	newer := types.NewIntent(types.SourceVoice, types.KindBackward, 1.0, now)

	chosen, ok := a.Decide(now, []types.MotionIntent{older, newer})
	if !ok {
		t.Fatal("Expected a decision")
	}
	if chosen.Kind != types.KindBackward {
		t.Errorf("Expected the newer intent to win, got %v", chosen.Kind)
	}
}

func TestDecideEqualTimestampTiebreak(t *testing.T) {
	now := time.Now()
	manual := types.NewIntent(types.SourceManual, types.KindForward, 1.0, now)
	voice := types.NewIntent(types.SourceVoice, types.KindBackward, 1.0, now)
	// same explicit priority so only the tiebreak decides
	voice.Priority = manual.Priority

	a := testArbiter(time.Second)
	a.SetPolicy(allSources())
	chosen, ok := a.Decide(now, []types.MotionIntent{voice, manual})
	if !ok {
		t.Fatal("Expected a decision")
	}
	if chosen.Source != types.SourceManual {
		t.Errorf("Expected manual to win the tie, got %v", chosen.Source)
	}

	b := testArbiter(time.Second)
	p := allSources()
	p.PreferManualOnTie = false
	b.SetPolicy(p)
	chosen, ok = b.Decide(now, []types.MotionIntent{voice, manual})
	if !ok {
		t.Fatal("Expected a decision")
	}
	if chosen.Source != types.SourceVoice {
		t.Errorf("Expected voice to win the tie, got %v", chosen.Source)
	}
}

func TestDecideSafetyAlwaysAdmitted(t *testing.T) {
	a := testArbiter(time.Second)
	a.SetPolicy(Policy{}) // nothing enabled
	now := time.Now()

	stop := types.NewIntent(types.SourceSafety, types.KindStop, 0, now)
	chosen, ok := a.Decide(now, []types.MotionIntent{stop})
	if !ok {
		t.Fatal("Expected the safety intent to be admitted")
	}
	if chosen.Source != types.SourceSafety {
		t.Errorf("Expected safety source, got %v", chosen.Source)
	}
}

func TestDecideDisabledSourceRejected(t *testing.T) {
	a := testArbiter(time.Second)
	a.SetPolicy(Policy{Enabled: NewSourceSet(types.SourceManual)})
	now := time.Now()

	voice := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{voice}); ok {
		t.Error("Expected a disabled source to be rejected")
	}
}

func TestDecideStopOnlyGate(t *testing.T) {
	a := testArbiter(time.Second)
	a.SetPolicy(Policy{
		Enabled:  NewSourceSet(types.SourceVoice),
		StopOnly: NewSourceSet(types.SourceVoice),
	})
	now := time.Now()

	forward := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{forward}); ok {
		t.Error("Expected a non-stop intent from a stop-only source to be rejected")
	}

	stop := types.NewIntent(types.SourceVoice, types.KindStop, 0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{stop}); !ok {
		t.Error("Expected a stop from a stop-only source to be admitted")
	}
}

func TestImplicitStopAfterGrace(t *testing.T) {
	grace := 100 * time.Millisecond
	a := testArbiter(grace)
	a.SetPolicy(allSources())
	now := time.Now()

	forward := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{forward}); !ok {
		t.Fatal("Expected the forward intent to be chosen")
	}

	// within the grace window nothing is emitted
	if _, ok := a.Decide(now.Add(grace/2), nil); ok {
		t.Error("Expected no decision inside the grace window")
	}

	// after the grace window an implicit stop is derived
	stop, ok := a.Decide(now.Add(grace), nil)
	if !ok {
		t.Fatal("Expected an implicit stop after the grace window")
	}
	if !stop.IsStop() {
		t.Errorf("Expected a stop, got %v", stop.Kind)
	}
	if stop.Source != types.SourceVoice {
		t.Errorf("Expected the stop to carry the previous source, got %v", stop.Source)
	}

	// the stop is emitted once, not every tick
	if _, ok := a.Decide(now.Add(2*grace), nil); ok {
		t.Error("Expected no further decisions after the implicit stop")
	}
}

func TestResetSuppressesImplicitStop(t *testing.T) {
	grace := 50 * time.Millisecond
	a := testArbiter(grace)
	a.SetPolicy(allSources())
	now := time.Now()

	forward := types.NewIntent(types.SourceVoice, types.KindForward, 1.0, now)
	if _, ok := a.Decide(now, []types.MotionIntent{forward}); !ok {
		t.Fatal("Expected the forward intent to be chosen")
	}

	a.Reset()

	if _, ok := a.Decide(now.Add(2*grace), nil); ok {
		t.Error("Expected no implicit stop after Reset")
	}
}

// Decide must be a pure function of the candidate set: the winner cannot
// depend on candidate order.
func TestDecideDeterministicUnderPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Now()
	sources := []types.IntentSource{
		types.SourceNavigation, types.SourceVoice, types.SourceManual, types.SourceSafety,
	}
	kinds := []types.IntentKind{
		types.KindForward, types.KindBackward, types.KindTurnLeft, types.KindTurnRight, types.KindStop,
	}

	type sortKey struct {
		priority int
		issuedAt int64
		source   types.IntentSource
	}

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(6)
		candidates := make([]types.MotionIntent, 0, n)
		// candidates with identical priority, timestamp and source are
		// indistinguishable to the arbiter, so keep the keys unique
		seen := make(map[sortKey]bool)
		for len(candidates) < n {
			c := types.NewIntent(
				sources[rng.Intn(len(sources))],
				kinds[rng.Intn(len(kinds))],
				rng.Float64(),
				base.Add(time.Duration(rng.Intn(50))*time.Millisecond),
			)
			c.Priority = rng.Intn(4)
			key := sortKey{c.Priority, c.IssuedAt.UnixNano(), c.Source}
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, c)
		}

		reference, refOK := decideFresh(base, candidates)

		for p := 0; p < 5; p++ {
			shuffled := make([]types.MotionIntent, n)
			copy(shuffled, candidates)
			rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			got, ok := decideFresh(base, shuffled)
			if ok != refOK || got != reference {
				t.Fatalf("Round %d: decision depends on candidate order: %+v vs %+v", round, got, reference)
			}
		}
	}
}

func decideFresh(now time.Time, candidates []types.MotionIntent) (types.MotionIntent, bool) {
	a := testArbiter(time.Second)
	a.SetPolicy(allSources())
	return a.Decide(now, candidates)
}

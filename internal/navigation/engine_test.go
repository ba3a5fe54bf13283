package navigation

import (
	"io"
	"log"
	"testing"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

func testEngine() *Engine {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelNone)
	return New(l, 0.3, 0.8, 0.6, 100*time.Millisecond, 80*time.Millisecond, 5, time.Second)
}

func snapshot(now time.Time, front, left, right float64) types.SensorSnapshot {
	return types.SensorSnapshot{
		Readings: map[types.SensorID]types.Reading{
			types.SensorFront: {Value: front, Unit: "m", Timestamp: now, Valid: true},
			types.SensorLeft:  {Value: left, Unit: "m", Timestamp: now, Valid: true},
			types.SensorRight: {Value: right, Unit: "m", Timestamp: now, Valid: true},
		},
		Taken: now,
	}
}

func TestStepCruisesOnClearPath(t *testing.T) {
	e := testEngine()
	now := time.Now()

	intent, ok := e.Step(now, snapshot(now, 2.0, 2.0, 2.0))
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindForward {
		t.Errorf("Expected forward on a clear path, got %v", intent.Kind)
	}
	if intent.Source != types.SourceNavigation {
		t.Errorf("Expected navigation source, got %v", intent.Source)
	}
	if intent.Magnitude != 0.8 {
		t.Errorf("Expected cruise magnitude 0.8, got %.2f", intent.Magnitude)
	}
}

func TestStepTurnsTowardGreaterClearance(t *testing.T) {
	e := testEngine()
	now := time.Now()

	// obstacle ahead, left side is open
	intent, ok := e.Step(now, snapshot(now, 0.15, 0.8, 0.2))
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindTurnLeft {
		t.Errorf("Expected a left turn, got %v", intent.Kind)
	}

	e.Reset()

	// mirrored: right side is open
	intent, ok = e.Step(now, snapshot(now, 0.15, 0.2, 0.8))
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindTurnRight {
		t.Errorf("Expected a right turn, got %v", intent.Kind)
	}
}

func TestStepBacksOffWhenBoxedIn(t *testing.T) {
	e := testEngine()
	now := time.Now()

	intent, ok := e.Step(now, snapshot(now, 0.1, 0.1, 0.1))
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindBackward {
		t.Errorf("Expected backward when boxed in, got %v", intent.Kind)
	}

	// backing continues on a clear snapshot until the backoff elapses
	intent, ok = e.Step(now.Add(10*time.Millisecond), snapshot(now, 2.0, 2.0, 2.0))
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindBackward {
		t.Errorf("Expected the backoff to continue, got %v", intent.Kind)
	}
}

func TestStepNeverForwardWhenBlocked(t *testing.T) {
	e := testEngine()
	now := time.Now()

	// sweep blocked clearances on all three sides, with fresh engines
	// so cooldown and backoff state never mask a bad choice
	values := []float64{0.0, 0.1, 0.2, 0.29}
	for _, front := range values {
		for _, left := range values {
			for _, right := range values {
				e.Reset()
				intent, ok := e.Step(now, snapshot(now, front, left, right))
				if !ok {
					continue
				}
				if intent.Kind == types.KindForward {
					t.Errorf("Forward with front=%.2f left=%.2f right=%.2f below clearance",
						front, left, right)
				}
			}
		}
	}
}

func TestStepInvalidFrontCountsAsBlocked(t *testing.T) {
	e := testEngine()
	now := time.Now()

	snap := snapshot(now, 2.0, 0.8, 0.2)
	r := snap.Readings[types.SensorFront]
	r.Valid = false
	snap.Readings[types.SensorFront] = r

	intent, ok := e.Step(now, snap)
	if !ok {
		t.Fatal("Expected an intent")
	}
	if intent.Kind != types.KindTurnLeft {
		t.Errorf("Expected a turn on an invalid front reading, got %v", intent.Kind)
	}
}

func TestStepHoldsTurnDuringCooldown(t *testing.T) {
	e := testEngine()
	now := time.Now()

	if intent, _ := e.Step(now, snapshot(now, 0.15, 0.8, 0.2)); intent.Kind != types.KindTurnLeft {
		t.Fatalf("Expected a left turn, got %v", intent.Kind)
	}

	// path is clear again but the cooldown keeps the heading
	intent, _ := e.Step(now.Add(50*time.Millisecond), snapshot(now, 2.0, 2.0, 2.0))
	if intent.Kind != types.KindTurnLeft {
		t.Errorf("Expected the turn to be held inside the cooldown, got %v", intent.Kind)
	}

	// after the cooldown the engine cruises again
	intent, _ = e.Step(now.Add(200*time.Millisecond), snapshot(now, 2.0, 2.0, 2.0))
	if intent.Kind != types.KindForward {
		t.Errorf("Expected forward after the cooldown, got %v", intent.Kind)
	}
}

func TestStuckAfterRepeatedObstacles(t *testing.T) {
	e := testEngine()
	now := time.Now()

	blocked := snapshot(now, 0.15, 0.8, 0.2)
	for i := 0; i <= 5; i++ {
		if e.Stuck() {
			t.Fatalf("Stuck too early after %d encounters", i)
		}
		e.Step(now.Add(time.Duration(i)*10*time.Millisecond), blocked)
	}

	if !e.Stuck() {
		t.Fatal("Expected stuck after exceeding the obstacle limit")
	}

	intent, ok := e.Step(now.Add(time.Second/2), blocked)
	if !ok {
		t.Fatal("Expected an intent")
	}
	if !intent.IsStop() {
		t.Errorf("Expected a stop once stuck, got %v", intent.Kind)
	}
}

func TestStuckWindowExpires(t *testing.T) {
	e := testEngine()
	now := time.Now()

	blocked := snapshot(now, 0.15, 0.8, 0.2)
	// encounters spread beyond the window never accumulate
	for i := 0; i < 20; i++ {
		e.Step(now.Add(time.Duration(i)*2*time.Second), blocked)
	}
	if e.Stuck() {
		t.Error("Expected encounters outside the window not to trip stuck detection")
	}
}

func TestResetClearsState(t *testing.T) {
	e := testEngine()
	now := time.Now()

	blocked := snapshot(now, 0.15, 0.8, 0.2)
	for i := 0; i <= 6; i++ {
		e.Step(now.Add(time.Duration(i)*10*time.Millisecond), blocked)
	}
	if !e.Stuck() {
		t.Fatal("Expected stuck before reset")
	}

	e.Reset()
	if e.Stuck() {
		t.Error("Expected stuck cleared after Reset")
	}
	if e.Encounters() != 0 {
		t.Errorf("Expected encounter count cleared, got %d", e.Encounters())
	}

	intent, _ := e.Step(now.Add(time.Second), snapshot(now, 2.0, 2.0, 2.0))
	if intent.Kind != types.KindForward {
		t.Errorf("Expected forward after reset on a clear path, got %v", intent.Kind)
	}
}

package types

import (
	"testing"
	"time"
)

func TestNewIntentClampsMagnitude(t *testing.T) {
	now := time.Now()

	if i := NewIntent(SourceManual, KindForward, 2.5, now); i.Magnitude != 1.0 {
		t.Errorf("Expected magnitude clamped to 1.0, got %.2f", i.Magnitude)
	}
	if i := NewIntent(SourceManual, KindForward, -0.5, now); i.Magnitude != 0 {
		t.Errorf("Expected magnitude clamped to 0, got %.2f", i.Magnitude)
	}
	if i := NewIntent(SourceManual, KindForward, 0.7, now); i.Magnitude != 0.7 {
		t.Errorf("Expected magnitude kept, got %.2f", i.Magnitude)
	}
}

func TestNewIntentStopZeroesMagnitude(t *testing.T) {
	i := NewIntent(SourceSafety, KindStop, 0.9, time.Now())
	if i.Magnitude != 0 {
		t.Errorf("Expected zero magnitude on a stop, got %.2f", i.Magnitude)
	}
	if !i.IsStop() {
		t.Error("Expected IsStop")
	}
}

func TestNewIntentPriorityFromSource(t *testing.T) {
	now := time.Now()
	order := []IntentSource{SourceNavigation, SourceVoice, SourceManual, SourceSafety}

	prev := -1
	for _, src := range order {
		i := NewIntent(src, KindForward, 1.0, now)
		if i.Priority != src.Priority() {
			t.Errorf("Expected priority %d for %s, got %d", src.Priority(), src, i.Priority)
		}
		if i.Priority <= prev {
			t.Errorf("Expected strictly increasing priority, %s got %d after %d", src, i.Priority, prev)
		}
		prev = i.Priority
	}
}

func TestSnapshotClearance(t *testing.T) {
	now := time.Now()
	snap := SensorSnapshot{
		Readings: map[SensorID]Reading{
			SensorFront: {Value: 1.2, Unit: "m", Timestamp: now, Valid: true},
			SensorLeft:  {Value: 0.5, Unit: "m", Timestamp: now, Valid: false},
		},
		Taken: now,
	}

	if v, ok := snap.Clearance(SensorFront); !ok || v != 1.2 {
		t.Errorf("Expected (1.2, true), got (%.2f, %v)", v, ok)
	}
	if _, ok := snap.Clearance(SensorLeft); ok {
		t.Error("Expected invalid reading to report not ok")
	}
	if _, ok := snap.Clearance(SensorRight); ok {
		t.Error("Expected missing reading to report not ok")
	}
}

package messaging

import (
	"testing"
	"time"

	"robot-service/internal/types"
)

func TestParseManualCommand(t *testing.T) {
	now := time.Now()

	tests := []struct {
		value     string
		kind      types.IntentKind
		magnitude float64
	}{
		{"forward", types.KindForward, 1.0},
		{"forward:0.5", types.KindForward, 0.5},
		{"backward", types.KindBackward, 1.0},
		{"left", types.KindTurnLeft, 1.0},
		{"left:0.3", types.KindTurnLeft, 0.3},
		{"right", types.KindTurnRight, 1.0},
		{"stop", types.KindStop, 0},
		{"forward:2.5", types.KindForward, 1.0}, // clamped
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			intent, err := parseManualCommand(tt.value, now)
			if err != nil {
				t.Fatalf("parseManualCommand(%q) failed: %v", tt.value, err)
			}
			if intent.Source != types.SourceManual {
				t.Errorf("Expected manual source, got %v", intent.Source)
			}
			if intent.Kind != tt.kind {
				t.Errorf("Expected kind %v, got %v", tt.kind, intent.Kind)
			}
			if intent.Magnitude != tt.magnitude {
				t.Errorf("Expected magnitude %.2f, got %.2f", tt.magnitude, intent.Magnitude)
			}
			if !intent.IssuedAt.Equal(now) {
				t.Errorf("Expected the provided timestamp, got %v", intent.IssuedAt)
			}
		})
	}
}

func TestParseManualCommandInvalid(t *testing.T) {
	for _, value := range []string{"", "fly", "forward:fast", "forward:", ":0.5"} {
		if _, err := parseManualCommand(value, time.Now()); err == nil {
			t.Errorf("Expected error for %q", value)
		}
	}
}

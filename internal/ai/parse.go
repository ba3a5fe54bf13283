package ai

import (
	"strings"

	"robot-service/internal/types"
)

var (
	stopWords     = []string{"stop", "halt", "freeze"}
	exploreWords  = []string{"explore", "exploring", "search", "patrol"}
	movementWords = []string{"move", "moving", "go", "going", "turn", "turning", "navigate", "drive", "driving"}
)

// ParseAction extracts a directive from a response text. Stop wins over
// everything, exploration over movement, and anything without a motion
// keyword is plain speech.
func ParseAction(text string) Action {
	lower := strings.ToLower(text)

	if containsAny(lower, stopWords) {
		return Action{Kind: ActionStop}
	}
	if containsAny(lower, exploreWords) {
		return Action{Kind: ActionExplore}
	}
	if containsAny(lower, movementWords) {
		return Action{Kind: ActionMove, Direction: extractDirection(lower)}
	}
	return Action{Kind: ActionSpeech}
}

func extractDirection(lower string) types.IntentKind {
	switch {
	case strings.Contains(lower, "left"):
		return types.KindTurnLeft
	case strings.Contains(lower, "right"):
		return types.KindTurnRight
	case strings.Contains(lower, "back"), strings.Contains(lower, "reverse"):
		return types.KindBackward
	default:
		return types.KindForward
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

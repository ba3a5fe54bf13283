package ai

import (
	"context"

	"robot-service/internal/types"
)

// Backend is one reasoning provider. Query must honor the context
// deadline; the router supplies a per-attempt timeout.
type Backend interface {
	Name() string
	Kind() types.BackendKind
	Query(ctx context.Context, prompt string) (string, error)
}

// ActionKind classifies what a backend response asks the robot to do.
type ActionKind int

const (
	ActionSpeech ActionKind = iota
	ActionMove
	ActionExplore
	ActionStop
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionExplore:
		return "explore"
	case ActionStop:
		return "stop"
	default:
		return "speech"
	}
}

// Action is the parsed directive from a response.
type Action struct {
	Kind      ActionKind
	Direction types.IntentKind // set for ActionMove
}

// Response is a resolved query: the text to speak plus the directive
// extracted from it.
type Response struct {
	Text    string
	Action  Action
	Backend string
}

package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// Timeouts are the declarative state deadlines. Zero values fall back
// to the defaults below.
type Timeouts struct {
	Listen  time.Duration
	Think   time.Duration
	Explore time.Duration
}

const (
	DefaultListenTimeout  = 8 * time.Second
	DefaultThinkTimeout   = 30 * time.Second
	DefaultExploreTimeout = 5 * time.Minute
)

func (t Timeouts) withDefaults() Timeouts {
	if t.Listen == 0 {
		t.Listen = DefaultListenTimeout
	}
	if t.Think == 0 {
		t.Think = DefaultThinkTimeout
	}
	if t.Explore == 0 {
		t.Explore = DefaultExploreTimeout
	}
	return t
}

// NewDefinition creates the robot FSM definition. The actions parameter
// provides the implementation for state entry/exit and guards.
func NewDefinition(actions Actions, timeouts Timeouts) *librefsm.Definition {
	t := timeouts.withDefaults()

	return librefsm.NewDefinition().
		// Parent of every motion-capable state
		State(StateOperational).

		State(StateIdle,
			librefsm.WithParent(StateOperational),
			librefsm.WithOnEnter(actions.EnterIdle),
		).
		State(StateListening,
			librefsm.WithParent(StateOperational),
			librefsm.WithTimeout(t.Listen, EvListenTimeout),
			librefsm.WithOnEnter(actions.EnterListening),
		).
		State(StateThinking,
			librefsm.WithParent(StateOperational),
			librefsm.WithTimeout(t.Think, EvThinkTimeout),
			librefsm.WithOnEnter(actions.EnterThinking),
			librefsm.WithOnExit(actions.ExitThinking),
		).
		State(StateMoving,
			librefsm.WithParent(StateOperational),
			librefsm.WithOnEnter(actions.EnterMoving),
			librefsm.WithOnExit(actions.ExitMoving),
		).
		State(StateExploring,
			librefsm.WithParent(StateOperational),
			librefsm.WithTimeout(t.Explore, EvExploreTimeout),
			librefsm.WithOnEnter(actions.EnterExploring),
			librefsm.WithOnExit(actions.ExitExploring),
		).
		State(StateError,
			librefsm.WithOnEnter(actions.EnterError),
		).
		State(StateShutdown,
			librefsm.WithOnEnter(actions.EnterShutdown),
		).

		// === Transitions ===

		// Conversation flow
		Transition(StateIdle, EvWake, StateListening).
		Transition(StateListening, EvSpeech, StateThinking).
		Transition(StateListening, EvListenTimeout, StateIdle).
		Transition(StateListening, EvStop, StateIdle).
		Transition(StateThinking, EvMotionCommand, StateMoving).
		Transition(StateThinking, EvExploreCommand, StateExploring).
		Transition(StateThinking, EvSpeechReply, StateIdle).
		Transition(StateThinking, EvThinkTimeout, StateError).
		Transition(StateThinking, EvStop, StateIdle).

		// Motion lifecycle
		Transition(StateMoving, EvMotionDone, StateIdle).
		Transition(StateMoving, EvStop, StateIdle).

		// Exploration lifecycle, also reachable directly from idle via
		// the command port
		Transition(StateIdle, EvExploreCommand, StateExploring).
		Transition(StateExploring, EvExploreDone, StateIdle).
		Transition(StateExploring, EvExploreTimeout, StateIdle).
		Transition(StateExploring, EvStop, StateIdle).

		// Faults and shutdown, shared by the whole operational family
		Transition(StateOperational, EvActuationFault, StateError).
		Transition(StateOperational, EvHazardCritical, StateError).
		Transition(StateOperational, EvShutdown, StateShutdown).

		// Recovery
		Transition(StateError, EvRecover, StateIdle).
		Transition(StateError, EvHazardCleared, StateIdle,
			librefsm.WithGuard(actions.CanAutoRecover),
		).
		Transition(StateError, EvShutdown, StateShutdown).

		// Initial state
		Initial(StateIdle)
}

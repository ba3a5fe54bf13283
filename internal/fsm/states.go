package fsm

import "github.com/librescoot/librefsm"

// Robot states. Operational is the hierarchical parent of every state
// that may produce motion; fault and shutdown edges hang off it once
// instead of being repeated per state.
const (
	StateOperational librefsm.StateID = "operational"

	StateIdle      librefsm.StateID = "idle"
	StateListening librefsm.StateID = "listening"
	StateThinking  librefsm.StateID = "thinking"
	StateMoving    librefsm.StateID = "moving"
	StateExploring librefsm.StateID = "exploring"

	StateError    librefsm.StateID = "error"
	StateShutdown librefsm.StateID = "shutdown"
)

// Robot events
const (
	// Voice and command ports
	EvWake           librefsm.EventID = "wake"
	EvSpeech         librefsm.EventID = "speech"
	EvStop           librefsm.EventID = "stop"
	EvRecover        librefsm.EventID = "recover"
	EvShutdown       librefsm.EventID = "shutdown"
	EvExploreCommand librefsm.EventID = "explore-command"

	// Query resolution
	EvMotionCommand librefsm.EventID = "motion-command"
	EvSpeechReply   librefsm.EventID = "speech-reply"

	// Motion lifecycle
	EvMotionDone  librefsm.EventID = "motion-done"
	EvExploreDone librefsm.EventID = "explore-done"

	// Timer events
	EvListenTimeout  librefsm.EventID = "listen-timeout"
	EvThinkTimeout   librefsm.EventID = "think-timeout"
	EvExploreTimeout librefsm.EventID = "explore-timeout"

	// Faults
	EvActuationFault librefsm.EventID = "actuation-fault"
	EvHazardCritical librefsm.EventID = "hazard-critical"
	EvHazardCleared  librefsm.EventID = "hazard-cleared"
)

// Timer names for imperative timers
const (
	TimerMotion = "motion"
)

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/librescoot/librefsm"

	"robot-service/internal/arbiter"
	"robot-service/internal/fsm"
	"robot-service/internal/hardware"
	"robot-service/internal/types"
)

// Ensure RobotSystem implements fsm.Actions
var _ fsm.Actions = (*RobotSystem)(nil)

// stateIDToOperatingState converts a librefsm StateID to the published
// operating state.
func stateIDToOperatingState(id librefsm.StateID) types.OperatingState {
	switch id {
	case fsm.StateIdle:
		return types.StateIdle
	case fsm.StateListening:
		return types.StateListening
	case fsm.StateThinking:
		return types.StateThinking
	case fsm.StateMoving:
		return types.StateMoving
	case fsm.StateExploring:
		return types.StateExploring
	case fsm.StateError:
		return types.StateError
	case fsm.StateShutdown:
		return types.StateShutdown
	default:
		return types.OperatingState(string(id))
	}
}

// initFSM initializes and starts the librefsm machine
func (s *RobotSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(s, fsm.Timeouts{
		Listen:  s.cfg.ListenTimeout,
		Think:   s.cfg.ThinkTimeout,
		Explore: s.cfg.ExploreDuration,
	})
	machine, err := def.Build()
	if err != nil {
		return err
	}
	s.machine = machine

	// Mirror the state field and publish atomically on every transition.
	// Publish with the known new state; getCurrentState here would
	// deadlock against the FSM mutex.
	s.machine.OnStateChange(func(from, to librefsm.StateID) {
		newState := stateIDToOperatingState(to)
		oldState := stateIDToOperatingState(from)

		s.mu.Lock()
		s.state = newState
		s.mu.Unlock()

		s.logger.Infof("State transition: %s -> %s", oldState, newState)

		if err := s.redis.PublishRobotState(newState); err != nil {
			s.logger.Errorf("Failed to publish state: %v", err)
		}
	})

	if err := s.machine.Start(ctx); err != nil {
		return err
	}

	s.logger.Infof("librefsm state machine started")
	return nil
}

// sendEvent sends an event to the FSM synchronously
func (s *RobotSystem) sendEvent(event librefsm.EventID) error {
	return s.machine.SendSync(librefsm.Event{ID: event})
}

// getCurrentState returns the current state (thread-safe) using the FSM
func (s *RobotSystem) getCurrentState() types.OperatingState {
	if s.machine != nil {
		return stateIDToOperatingState(s.machine.CurrentState())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// === Arbitration policies per state ===

func (s *RobotSystem) policy(enabled arbiter.SourceSet, stopOnly arbiter.SourceSet) arbiter.Policy {
	return arbiter.Policy{
		Enabled:           enabled,
		StopOnly:          stopOnly,
		PreferManualOnTie: s.cfg.PreferManualOnTie,
	}
}

// === State Entry Actions ===

func (s *RobotSystem) EnterIdle(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterIdle")

	s.setLamp(hardware.ColorGreen)
	s.arbiter.SetPolicy(s.policy(arbiter.NewSourceSet(types.SourceManual), 0))

	s.mu.Lock()
	s.errorCause = ""
	s.voiceMotion = nil
	s.mu.Unlock()
	return nil
}

func (s *RobotSystem) EnterListening(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterListening")

	s.setLamp(hardware.ColorBlue)
	// conversation states admit Safety and Manual only
	s.arbiter.SetPolicy(s.policy(arbiter.NewSourceSet(types.SourceManual), 0))
	return nil
}

func (s *RobotSystem) EnterThinking(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterThinking")

	s.setLamp(hardware.ColorBlue)
	s.arbiter.SetPolicy(s.policy(arbiter.NewSourceSet(types.SourceManual), 0))

	s.mu.Lock()
	text := s.pendingUtterance
	s.pendingUtterance = ""
	s.mu.Unlock()

	if text == "" {
		s.logger.Warnf("Entered thinking without an utterance")
		return nil
	}
	s.startQuery(text)
	return nil
}

func (s *RobotSystem) EnterMoving(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterMoving")

	s.setLamp(hardware.ColorWhite)
	s.arbiter.SetPolicy(s.policy(
		arbiter.NewSourceSet(types.SourceVoice, types.SourceManual), 0))

	s.machine.StartTimer(fsm.TimerMotion, s.cfg.MotionDuration,
		librefsm.Event{ID: fsm.EvMotionDone})
	return nil
}

func (s *RobotSystem) EnterExploring(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterExploring")

	s.setLamp(hardware.ColorWhite)
	// Navigation drives; Voice may only override with a Stop
	s.arbiter.SetPolicy(s.policy(
		arbiter.NewSourceSet(types.SourceNavigation, types.SourceVoice, types.SourceManual),
		arbiter.NewSourceSet(types.SourceVoice)))

	s.nav.Reset()

	now := time.Now()
	s.mu.Lock()
	s.mission = &mission{id: fmt.Sprintf("mission-%d", now.Unix()), started: now}
	s.missionReason = ""
	s.mu.Unlock()

	s.logger.Infof("Exploration started")
	return nil
}

func (s *RobotSystem) EnterError(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterError")

	s.startLampBlink(hardware.ColorRed)
	// only a manual Stop may pass while in error
	s.arbiter.SetPolicy(s.policy(
		arbiter.NewSourceSet(types.SourceManual),
		arbiter.NewSourceSet(types.SourceManual)))

	s.mu.RLock()
	cause := s.errorCause
	s.mu.RUnlock()

	var notice string
	switch cause {
	case errorCauseActuation:
		notice = "I have a drive fault and stopped moving. Please check my motors."
	case errorCauseDeadline:
		notice = "I lost my train of thought and stopped. Please try again."
	default:
		notice = "I detected a hazard and stopped for safety."
	}
	if err := s.redis.Say(notice); err != nil {
		s.logger.Warnf("Failed to queue error notice: %v", err)
	}
	return nil
}

func (s *RobotSystem) EnterShutdown(c *librefsm.Context) error {
	s.logger.Infof("FSM: EnterShutdown")

	s.cancelQuery("shutdown")
	s.gateway.EmergencyStop("shutdown")
	s.setLamp(hardware.ColorOff)

	if err := s.redis.Say("Shutting down. Goodbye."); err != nil {
		s.logger.Debugf("Failed to queue shutdown notice: %v", err)
	}
	return nil
}

// === State Exit Actions ===

func (s *RobotSystem) ExitThinking(c *librefsm.Context) error {
	s.logger.Debugf("FSM: ExitThinking")

	// mark a deadline-driven exit before the error notice reads the cause
	if c != nil {
		s.mu.Lock()
		if s.errorCause == "" {
			s.errorCause = errorCauseDeadline
		}
		s.mu.Unlock()
	}
	s.cancelQuery("left thinking")
	return nil
}

func (s *RobotSystem) ExitMoving(c *librefsm.Context) error {
	s.logger.Debugf("FSM: ExitMoving")

	s.machine.StopTimer(fsm.TimerMotion)

	s.mu.Lock()
	s.voiceMotion = nil
	s.mu.Unlock()

	// gate down before stopping; the next state's entry action installs
	// its own policy, and every state reachable from Moving admits at
	// most Manual
	s.arbiter.SetPolicy(s.policy(arbiter.NewSourceSet(types.SourceManual), 0))
	s.exitStop(types.SourceVoice)
	return nil
}

func (s *RobotSystem) ExitExploring(c *librefsm.Context) error {
	s.logger.Debugf("FSM: ExitExploring")

	s.mu.Lock()
	m := s.mission
	reason := s.missionReason
	s.mission = nil
	s.missionReason = ""
	s.mu.Unlock()

	s.arbiter.SetPolicy(s.policy(arbiter.NewSourceSet(types.SourceManual), 0))
	s.exitStop(types.SourceNavigation)

	if m == nil {
		return nil
	}
	if reason == "" {
		reason = "completed"
	}

	duration := time.Since(m.started).Round(time.Second)
	report := fmt.Sprintf("%s: %s after %s, %d obstacle encounters",
		m.id, reason, duration, s.nav.Encounters())
	s.logger.Infof("Exploration finished: %s", report)

	if err := s.redis.PublishMissionReport(report); err != nil {
		s.logger.Warnf("Failed to publish mission report: %v", err)
	}
	if err := s.redis.Say(fmt.Sprintf("Exploration %s after %s.", reason, duration)); err != nil {
		s.logger.Debugf("Failed to queue mission summary: %v", err)
	}
	return nil
}

// === Guards ===

// CanAutoRecover allows hazard-cleared recovery only for hazard-caused
// errors, and only after the hold-down since the last critical hazard.
func (s *RobotSystem) CanAutoRecover(c *librefsm.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.errorCause != errorCauseHazard {
		return false
	}
	return time.Since(s.lastCritical) >= s.cfg.HazardHoldDown
}

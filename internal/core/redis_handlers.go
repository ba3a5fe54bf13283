package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/librescoot/librefsm"

	"robot-service/internal/actuator"
	"robot-service/internal/ai"
	"robot-service/internal/fsm"
	"robot-service/internal/types"
)

// handleWake handles a wake-word detection from the voice port.
func (s *RobotSystem) handleWake() error {
	s.logger.Debugf("Handling wake event")
	if err := s.sendEvent(fsm.EvWake); err != nil {
		// wake outside Idle is not an error, just late
		s.logger.Debugf("Wake event ignored in state %s: %v", s.getCurrentState(), err)
	}
	return nil
}

// handleUtterance handles a recognized utterance. It only advances the
// FSM when the robot is listening; anything else is logged and dropped.
func (s *RobotSystem) handleUtterance(text string) error {
	s.logger.Debugf("Handling utterance: %s", text)

	s.mu.Lock()
	s.pendingUtterance = text
	s.mu.Unlock()

	if err := s.sendEvent(fsm.EvSpeech); err != nil {
		s.logger.Debugf("Utterance ignored in state %s: %v", s.getCurrentState(), err)
		s.mu.Lock()
		s.pendingUtterance = ""
		s.mu.Unlock()
	}
	return nil
}

// handleManualIntent feeds a gamepad command into the next tick's
// candidate set. A manual stop also interrupts conversation and motion
// states and cancels any outstanding query.
func (s *RobotSystem) handleManualIntent(intent types.MotionIntent) error {
	s.logger.Debugf("Handling manual intent: %s (magnitude %.2f)", intent.Kind, intent.Magnitude)

	s.mu.Lock()
	s.manualIntent = &intent
	s.mu.Unlock()

	if intent.IsStop() {
		s.cancelQuery("manual stop")
		s.setMissionReason("stopped")
		s.machine.Send(librefsm.Event{ID: fsm.EvStop})
	}
	return nil
}

// handleRobotCommand handles the command port.
func (s *RobotSystem) handleRobotCommand(command string) error {
	s.logger.Infof("Handling robot command: %s", command)

	switch command {
	case "explore":
		if err := s.sendEvent(fsm.EvExploreCommand); err != nil {
			s.logger.Infof("Explore command ignored in state %s: %v", s.getCurrentState(), err)
		}
	case "stop":
		s.cancelQuery("stop command")
		s.setMissionReason("stopped")
		now := time.Now()
		stop := types.NewIntent(types.SourceManual, types.KindStop, 0, now)
		s.mu.Lock()
		s.manualIntent = &stop
		s.mu.Unlock()
		s.machine.Send(librefsm.Event{ID: fsm.EvStop})
	case "recover":
		if err := s.sendEvent(fsm.EvRecover); err != nil {
			s.logger.Infof("Recover command ignored in state %s: %v", s.getCurrentState(), err)
		}
	case "shutdown":
		// Shutdown tears down the listener goroutine delivering this
		// command, so it must not run inline
		go s.Shutdown()
	default:
		return fmt.Errorf("unknown robot command: %s", command)
	}
	return nil
}

// handleActuationFault escalates a gateway fault to the Error state.
// Runs on the gateway's apply loop goroutine.
func (s *RobotSystem) handleActuationFault(aerr *actuator.ActuationError) {
	s.logger.Errorf("Actuation fault: %v", aerr)

	if err := s.redis.PublishActuationFault(aerr.Op, aerr.Err.Error()); err != nil {
		s.logger.Warnf("Failed to publish actuation fault: %v", err)
	}

	s.mu.Lock()
	s.errorCause = errorCauseActuation
	s.mu.Unlock()

	s.cancelQuery("actuation fault")
	s.machine.Send(librefsm.Event{ID: fsm.EvActuationFault})
}

// handleSensorDegraded reports a degraded sensor to the event sink.
// Non-fatal by design: motion consumers already treat the invalid
// readings conservatively.
func (s *RobotSystem) handleSensorDegraded(id types.SensorID, consecutive int) {
	ev := types.HazardEvent{
		Category:  types.HazardSensor,
		Severity:  types.SeverityWarning,
		Detail:    fmt.Sprintf("sensor %s degraded after %d consecutive invalid reads", id, consecutive),
		Timestamp: time.Now(),
	}
	if err := s.redis.PublishHazard(ev); err != nil {
		s.logger.Warnf("Failed to publish sensor degradation: %v", err)
	}
}

// startQuery launches the resolution task for one utterance. The query
// is bounded by the Thinking state deadline and cancelled whenever that
// state is left.
func (s *RobotSystem) startQuery(text string) {
	qctx, cancel := context.WithCancel(s.runCtx)

	s.mu.Lock()
	s.querySeq++
	seq := s.querySeq
	s.queryCancel = cancel
	s.mu.Unlock()

	go s.resolveQuery(qctx, seq, text)
}

// cancelQuery aborts the outstanding query, if any. The query task may
// still finish for logging purposes; its result is discarded.
func (s *RobotSystem) cancelQuery(reason string) {
	s.mu.Lock()
	cancel := s.queryCancel
	s.queryCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		s.logger.Debugf("Cancelling outstanding query: %s", reason)
		cancel()
	}
}

func (s *RobotSystem) resolveQuery(ctx context.Context, seq uint64, text string) {
	resp, err := s.router.Resolve(ctx, text)

	s.mu.Lock()
	stale := seq != s.querySeq || s.queryCancel == nil
	if !stale {
		s.queryCancel = nil
	}
	s.mu.Unlock()

	if stale || ctx.Err() != nil {
		s.logger.Debugf("Discarding stale query result for %q", text)
		return
	}

	if err != nil {
		// recoverable: degrade the response, do not crash
		s.logger.Warnf("Query resolution failed: %v", err)
		reply := "I could not reach my reasoning backends. Please try again."
		if errors.Is(err, ai.ErrBackendTimeout) {
			reply = "That took too long to think about. Please try again."
		}
		if sayErr := s.redis.Say(reply); sayErr != nil {
			s.logger.Warnf("Failed to queue degraded reply: %v", sayErr)
		}
		if evErr := s.sendEvent(fsm.EvSpeechReply); evErr != nil {
			s.logger.Debugf("Speech reply event ignored: %v", evErr)
		}
		return
	}

	if sayErr := s.redis.Say(resp.Text); sayErr != nil {
		s.logger.Warnf("Failed to queue reply: %v", sayErr)
	}

	switch resp.Action.Kind {
	case ai.ActionMove:
		motion := types.NewIntent(types.SourceVoice, resp.Action.Direction, 1.0, time.Now())
		s.mu.Lock()
		s.voiceMotion = &motion
		s.mu.Unlock()
		if evErr := s.sendEvent(fsm.EvMotionCommand); evErr != nil {
			s.logger.Debugf("Motion command event ignored: %v", evErr)
			s.mu.Lock()
			s.voiceMotion = nil
			s.mu.Unlock()
		}
	case ai.ActionExplore:
		if evErr := s.sendEvent(fsm.EvExploreCommand); evErr != nil {
			s.logger.Debugf("Explore command event ignored: %v", evErr)
		}
	case ai.ActionStop:
		if evErr := s.sendEvent(fsm.EvStop); evErr != nil {
			s.logger.Debugf("Stop event ignored: %v", evErr)
		}
	default:
		if evErr := s.sendEvent(fsm.EvSpeechReply); evErr != nil {
			s.logger.Debugf("Speech reply event ignored: %v", evErr)
		}
	}
}

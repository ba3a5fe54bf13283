package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"robot-service/internal/actuator"
	"robot-service/internal/ai"
	"robot-service/internal/arbiter"
	"robot-service/internal/config"
	"robot-service/internal/fsm"
	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/messaging"
	"robot-service/internal/navigation"
	"robot-service/internal/safety"
	"robot-service/internal/sensors"
	"robot-service/internal/types"

	"github.com/librescoot/librefsm"
)

// Error causes tracked for the recovery path
const (
	errorCauseHazard    = "hazard"
	errorCauseActuation = "actuation"
	errorCauseDeadline  = "deadline"
)

// QueryResolver is the reasoning port; ai.Router implements it.
type QueryResolver interface {
	Resolve(ctx context.Context, query string) (ai.Response, error)
}

// RobotSystem is the top-level orchestrator. It owns the canonical
// operating state through the FSM, runs the control tick, and mediates
// which intent sources the arbiter accepts in each state.
type RobotSystem struct {
	cfg     *config.Config
	logger  *logger.Logger
	machine *librefsm.Machine

	hub     *sensors.Hub
	gateway *actuator.Gateway
	arbiter *arbiter.Arbiter
	nav     *navigation.Engine
	monitor *safety.Monitor
	router  QueryResolver
	redis   MessagingClient
	lamp    hardware.StatusLamp

	group  *errgroup.Group
	runCtx context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state types.OperatingState

	// orders state-exit stops after any in-flight tick decision
	decideMu sync.Mutex

	// per-tick candidate feed
	manualIntent *types.MotionIntent
	voiceMotion  *types.MotionIntent

	// outstanding query
	pendingUtterance string
	queryCancel      context.CancelFunc
	querySeq         uint64

	// error bookkeeping
	errorCause   string
	lastCritical time.Time

	// exploration mission
	mission       *mission
	missionReason string

	// lamp blink goroutine control
	lampBlinkStop chan struct{}

	tickCount uint64
}

type mission struct {
	id      string
	started time.Time
}

func NewRobotSystem(cfg *config.Config, l *logger.Logger,
	hub *sensors.Hub, gateway *actuator.Gateway, arb *arbiter.Arbiter,
	nav *navigation.Engine, monitor *safety.Monitor, router QueryResolver,
	redis MessagingClient, lamp hardware.StatusLamp) *RobotSystem {
	return &RobotSystem{
		cfg:     cfg,
		logger:  l.WithTag("core"),
		hub:     hub,
		gateway: gateway,
		arbiter: arb,
		nav:     nav,
		monitor: monitor,
		router:  router,
		redis:   redis,
		lamp:    lamp,
		state:   types.StateIdle,
	}
}

// Start connects the ports, builds the FSM and launches the
// long-running loops. It returns once everything is up; Wait blocks on
// the loops.
func (s *RobotSystem) Start(ctx context.Context) error {
	s.logger.Infof("Starting robot system")

	s.redis.SetCallbacks(messaging.Callbacks{
		WakeCallback:      s.handleWake,
		UtteranceCallback: s.handleUtterance,
		ManualCallback:    s.handleManualIntent,
		CommandCallback:   s.handleRobotCommand,
	})

	if err := s.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect messaging: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel

	if err := s.initFSM(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to initialize state machine: %w", err)
	}

	s.gateway.OnFault(s.handleActuationFault)
	s.hub.OnDegraded(s.handleSensorDegraded)

	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group
	group.Go(func() error { return s.hub.Run(groupCtx) })
	group.Go(func() error { return s.gateway.Run(groupCtx) })
	group.Go(func() error { return s.tickLoop(groupCtx) })

	if err := s.redis.StartListening(); err != nil {
		cancel()
		return fmt.Errorf("failed to start listeners: %w", err)
	}

	s.logger.Infof("Robot system started")
	return nil
}

// Wait blocks until the control loops exit.
func (s *RobotSystem) Wait() error {
	err := s.group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Shutdown drives the FSM to its terminal state, drains the gateway
// with a final stop, and tears the loops down.
func (s *RobotSystem) Shutdown() {
	s.logger.Infof("Shutting down robot system")
	if err := s.sendEvent(fsm.EvShutdown); err != nil {
		s.logger.Warnf("Shutdown event rejected: %v", err)
	}
	// give the gateway one tick to drain the final stop
	time.Sleep(s.cfg.TickInterval)
	s.cancel()

	if err := s.redis.Close(); err != nil {
		s.logger.Warnf("Failed to close messaging client: %v", err)
	}
}

// tickLoop is the sense -> decide -> act cycle.
func (s *RobotSystem) tickLoop(ctx context.Context) error {
	s.logger.Infof("Starting control loop, tick %s", s.cfg.TickInterval)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Control loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *RobotSystem) tick(now time.Time) {
	snap := s.hub.Latest()

	// safety first: Check force-stops the gateway on a critical hazard
	// before any decision of this tick is applied
	hazards := s.monitor.Check(snap)
	critical := safety.Critical(hazards)
	for _, h := range hazards {
		if err := s.redis.PublishHazard(h); err != nil {
			s.logger.Debugf("Failed to publish hazard: %v", err)
		}
	}

	s.tickCount++
	if s.tickCount%10 == 0 {
		if err := s.redis.SetTelemetry(snap); err != nil {
			s.logger.Debugf("Failed to mirror telemetry: %v", err)
		}
	}

	if critical {
		s.mu.Lock()
		s.lastCritical = now
		s.errorCause = errorCauseHazard
		s.mu.Unlock()

		s.cancelQuery("critical hazard")
		s.arbiter.Reset()
		s.machine.Send(librefsm.Event{ID: fsm.EvHazardCritical})
		return
	}

	state := s.getCurrentState()
	if state == types.StateError {
		s.maybeAutoRecover(now)
	}

	var candidates []types.MotionIntent

	if state == types.StateExploring {
		if s.nav.Stuck() {
			s.setMissionReason("stuck")
			s.machine.Send(librefsm.Event{ID: fsm.EvExploreDone})
		} else if intent, ok := s.nav.Step(now, snap); ok {
			candidates = append(candidates, intent)
		}
	}

	s.mu.Lock()
	// the voice motion persists for the whole Moving window
	if state == types.StateMoving && s.voiceMotion != nil {
		candidates = append(candidates, *s.voiceMotion)
	}
	if s.manualIntent != nil {
		candidates = append(candidates, *s.manualIntent)
		s.manualIntent = nil
	}
	s.mu.Unlock()

	s.decideMu.Lock()
	defer s.decideMu.Unlock()
	if decision, ok := s.arbiter.Decide(now, candidates); ok {
		s.gateway.Apply(decision)
		if err := s.redis.PublishMotionDecision(decision); err != nil {
			s.logger.Debugf("Failed to publish motion decision: %v", err)
		}
	}
}

// exitStop ends motion when a moving state is left. The stop is
// recorded through the arbiter like any decision and serialized
// against the tick, so a decision made before the exit is applied
// before the stop, never after it.
func (s *RobotSystem) exitStop(source types.IntentSource) {
	s.decideMu.Lock()
	defer s.decideMu.Unlock()

	stop := s.arbiter.ForceStop(time.Now(), source)
	s.gateway.Apply(stop)
	if err := s.redis.PublishMotionDecision(stop); err != nil {
		s.logger.Debugf("Failed to publish motion decision: %v", err)
	}
}

// maybeAutoRecover raises hazard-cleared once the hold-down after the
// last critical hazard has elapsed. The FSM guard re-checks the cause.
func (s *RobotSystem) maybeAutoRecover(now time.Time) {
	s.mu.RLock()
	cause := s.errorCause
	last := s.lastCritical
	s.mu.RUnlock()

	if cause != errorCauseHazard {
		return
	}
	if now.Sub(last) < s.cfg.HazardHoldDown {
		return
	}
	s.machine.Send(librefsm.Event{ID: fsm.EvHazardCleared})
}

func (s *RobotSystem) setMissionReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missionReason == "" {
		s.missionReason = reason
	}
}

func (s *RobotSystem) setLamp(c hardware.Color) {
	s.stopLampBlink()
	if s.lamp == nil {
		return
	}
	if err := s.lamp.SetColor(c); err != nil {
		s.logger.Warnf("Failed to set status lamp: %v", err)
	}
}

// startLampBlink toggles the lamp until the next setLamp call.
func (s *RobotSystem) startLampBlink(c hardware.Color) {
	s.stopLampBlink()
	if s.lamp == nil {
		return
	}

	stop := make(chan struct{})
	s.mu.Lock()
	s.lampBlinkStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		on := true
		_ = s.lamp.SetColor(c)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				on = !on
				next := hardware.ColorOff
				if on {
					next = c
				}
				if err := s.lamp.SetColor(next); err != nil {
					s.logger.Warnf("Failed to blink status lamp: %v", err)
					return
				}
			}
		}
	}()
}

func (s *RobotSystem) stopLampBlink() {
	s.mu.Lock()
	stop := s.lampBlinkStop
	s.lampBlinkStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

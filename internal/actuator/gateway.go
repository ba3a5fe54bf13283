package actuator

import (
	"context"
	"sync"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// FaultFunc receives driver failures from the apply loop.
type FaultFunc func(*ActuationError)

// Gateway owns the motor driver. All actuation flows through a single
// serialized loop; callers hand over intents and never touch the driver
// directly. The stop lane preempts: a stop requested while an intent is
// pending discards that intent before it reaches the hardware.
type Gateway struct {
	driver    hardware.MotorDriver
	logger    *logger.Logger
	maxSpeed  float64
	turnSpeed float64

	intents chan types.MotionIntent // capacity 1, newest wins
	stopLn  chan string             // capacity 1, preempts intents

	onFault FaultFunc

	mu      sync.Mutex
	applied types.MotionIntent
	halted  bool
}

func New(driver hardware.MotorDriver, l *logger.Logger, maxSpeed, turnSpeed float64) *Gateway {
	return &Gateway{
		driver:    driver,
		logger:    l.WithTag("actuator"),
		maxSpeed:  maxSpeed,
		turnSpeed: turnSpeed,
		intents:   make(chan types.MotionIntent, 1),
		stopLn:    make(chan string, 1),
	}
}

// OnFault registers the fault callback. Must be called before Run.
func (g *Gateway) OnFault(fn FaultFunc) {
	g.onFault = fn
}

// Apply hands an arbitrated intent to the apply loop. If an earlier
// intent is still pending it is replaced; only the newest decision
// reaches the hardware.
func (g *Gateway) Apply(intent types.MotionIntent) {
	for {
		select {
		case g.intents <- intent:
			return
		default:
			select {
			case <-g.intents:
			default:
			}
		}
	}
}

// EmergencyStop requests an immediate halt. Any pending intent is
// discarded; the loop processes the stop before anything else.
func (g *Gateway) EmergencyStop(reason string) {
	// discard whatever was queued before the stop
	select {
	case <-g.intents:
	default:
	}
	select {
	case g.stopLn <- reason:
	default:
	}
}

// Run is the serialized apply loop. It exits when the context is
// cancelled, halting the drive on the way out.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Infof("Starting actuation loop")

	for {
		select {
		case <-ctx.Done():
			g.halt("shutdown")
			g.logger.Infof("Actuation loop stopped")
			return ctx.Err()

		case reason := <-g.stopLn:
			g.halt(reason)

		case intent := <-g.intents:
			// checkpoint: a stop that arrived while this intent was
			// being dequeued still wins
			select {
			case reason := <-g.stopLn:
				g.halt(reason)
				continue
			default:
			}
			g.apply(intent)
		}
	}
}

func (g *Gateway) halt(reason string) {
	g.logger.Warnf("Emergency stop: %s", reason)

	g.mu.Lock()
	g.applied = types.MotionIntent{Source: types.SourceSafety, Kind: types.KindStop}
	g.halted = true
	g.mu.Unlock()

	if err := g.driver.Stop(); err != nil {
		g.fault(&ActuationError{Op: "emergency-stop", Err: err})
	}
}

func (g *Gateway) apply(intent types.MotionIntent) {
	left, right := g.wheelSpeeds(intent)

	var err error
	if intent.IsStop() {
		err = g.driver.Stop()
	} else {
		err = g.driver.Drive(left, right)
	}
	if err != nil {
		// leave the drive in a known state before reporting
		if stopErr := g.driver.Stop(); stopErr != nil {
			g.logger.Errorf("Failed to stop after actuation error: %v", stopErr)
		}
		g.fault(&ActuationError{Op: intent.Kind.String(), Err: err})
		return
	}

	g.mu.Lock()
	g.applied = intent
	g.halted = intent.IsStop()
	g.mu.Unlock()

	g.logger.Debugf("Applied %s from %s: left=%.2f right=%.2f", intent.Kind, intent.Source, left, right)
}

func (g *Gateway) wheelSpeeds(intent types.MotionIntent) (float64, float64) {
	switch intent.Kind {
	case types.KindForward:
		v := intent.Magnitude * g.maxSpeed
		return v, v
	case types.KindBackward:
		v := -intent.Magnitude * g.maxSpeed
		return v, v
	case types.KindTurnLeft:
		v := intent.Magnitude * g.turnSpeed
		return -v, v
	case types.KindTurnRight:
		v := intent.Magnitude * g.turnSpeed
		return v, -v
	default:
		return 0, 0
	}
}

func (g *Gateway) fault(aerr *ActuationError) {
	g.logger.Errorf("%v", aerr)
	if g.onFault != nil {
		g.onFault(aerr)
	}
}

// LastApplied returns the most recently applied intent.
func (g *Gateway) LastApplied() types.MotionIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applied
}

// Halted reports whether the drive is currently stopped.
func (g *Gateway) Halted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}

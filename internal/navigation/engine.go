package navigation

import (
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Engine is the reactive exploration policy. It is called once per
// control tick while the robot explores and produces at most one
// Navigation-sourced intent. There is no map; the only state carried
// across ticks is the current heading mode and the obstacle bookkeeping
// for stuck detection.
type Engine struct {
	logger *logger.Logger

	clearance     float64 // meters, avoidance threshold
	cruiseSpeed   float64 // intent magnitude when driving forward
	turnSpeed     float64 // intent magnitude when turning
	cooldown      time.Duration
	backoff       time.Duration
	stuckLimit    int
	stuckWindow   time.Duration

	mode         mode
	backingUntil time.Time
	lastObstacle time.Time

	obstacleRuns int
	runsStarted  time.Time
	stuck        bool
	encounters   int
}

type mode int

const (
	modeCruise mode = iota
	modeTurnLeft
	modeTurnRight
	modeBackward
)

func New(l *logger.Logger, clearance, cruiseSpeed, turnSpeed float64,
	cooldown, backoff time.Duration, stuckLimit int, stuckWindow time.Duration) *Engine {
	return &Engine{
		logger:      l.WithTag("navigation"),
		clearance:   clearance,
		cruiseSpeed: cruiseSpeed,
		turnSpeed:   turnSpeed,
		cooldown:    cooldown,
		backoff:     backoff,
		stuckLimit:  stuckLimit,
		stuckWindow: stuckWindow,
	}
}

// Reset clears all heading and stuck state, typically on entering
// exploration.
func (e *Engine) Reset() {
	e.mode = modeCruise
	e.backingUntil = time.Time{}
	e.lastObstacle = time.Time{}
	e.obstacleRuns = 0
	e.runsStarted = time.Time{}
	e.stuck = false
	e.encounters = 0
}

// Stuck reports whether the engine has hit too many consecutive
// obstacles inside the stuck window. The caller ends the exploration.
func (e *Engine) Stuck() bool { return e.stuck }

// Encounters returns the number of obstacle encounters this mission.
func (e *Engine) Encounters() int { return e.encounters }

// Step evaluates the snapshot and returns the next intent. An invalid
// front reading counts as blocked; an invalid side reading counts as no
// clearance on that side.
func (e *Engine) Step(now time.Time, snap types.SensorSnapshot) (types.MotionIntent, bool) {
	front, frontOK := snap.Clearance(types.SensorFront)
	blocked := !frontOK || front < e.clearance

	if blocked {
		e.recordObstacle(now)
		if e.stuck {
			return types.NewIntent(types.SourceNavigation, types.KindStop, 0, now), true
		}

		left, leftOK := snap.Clearance(types.SensorLeft)
		if !leftOK {
			left = 0
		}
		right, rightOK := snap.Clearance(types.SensorRight)
		if !rightOK {
			right = 0
		}

		if left < e.clearance && right < e.clearance {
			e.mode = modeBackward
			e.backingUntil = now.Add(e.backoff)
			e.logger.Debugf("Boxed in (front=%.2f left=%.2f right=%.2f), backing off", front, left, right)
			return types.NewIntent(types.SourceNavigation, types.KindBackward, e.cruiseSpeed, now), true
		}

		if left > right {
			e.mode = modeTurnLeft
		} else {
			e.mode = modeTurnRight
		}
		e.logger.Debugf("Obstacle ahead (front=%.2f), turning %s (left=%.2f right=%.2f)",
			front, e.turnKind(), left, right)
		return types.NewIntent(types.SourceNavigation, e.turnKind(), e.turnSpeed, now), true
	}

	e.obstacleRuns = 0

	if e.mode == modeBackward && now.Before(e.backingUntil) {
		return types.NewIntent(types.SourceNavigation, types.KindBackward, e.cruiseSpeed, now), true
	}

	// hold the last turn heading until the cooldown clears, then cruise
	if !e.lastObstacle.IsZero() && now.Sub(e.lastObstacle) < e.cooldown {
		switch e.mode {
		case modeTurnLeft, modeTurnRight:
			return types.NewIntent(types.SourceNavigation, e.turnKind(), e.turnSpeed, now), true
		}
	}

	e.mode = modeCruise
	return types.NewIntent(types.SourceNavigation, types.KindForward, e.cruiseSpeed, now), true
}

func (e *Engine) recordObstacle(now time.Time) {
	e.lastObstacle = now
	e.encounters++

	if e.runsStarted.IsZero() || now.Sub(e.runsStarted) > e.stuckWindow {
		e.runsStarted = now
		e.obstacleRuns = 0
	}
	e.obstacleRuns++
	if e.obstacleRuns > e.stuckLimit {
		if !e.stuck {
			e.logger.Warnf("Stuck: %d obstacle encounters within %s", e.obstacleRuns, e.stuckWindow)
		}
		e.stuck = true
	}
}

func (e *Engine) turnKind() types.IntentKind {
	if e.mode == modeTurnLeft {
		return types.KindTurnLeft
	}
	return types.KindTurnRight
}

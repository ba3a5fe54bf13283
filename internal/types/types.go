package types

import "time"

// OperatingState is the canonical robot state. It is owned by the state
// machine in internal/core; every other component only reads it.
type OperatingState string

const (
	StateIdle      OperatingState = "idle"
	StateListening OperatingState = "listening"
	StateThinking  OperatingState = "thinking"
	StateMoving    OperatingState = "moving"
	StateExploring OperatingState = "exploring"
	StateError     OperatingState = "error"
	StateShutdown  OperatingState = "shutdown"
)

// IntentSource identifies who proposed a motion intent. The numeric order
// is the arbitration priority: Safety beats Manual beats Voice beats
// Navigation.
type IntentSource int

const (
	SourceNavigation IntentSource = iota
	SourceVoice
	SourceManual
	SourceSafety
)

func (s IntentSource) String() string {
	switch s {
	case SourceNavigation:
		return "navigation"
	case SourceVoice:
		return "voice"
	case SourceManual:
		return "manual"
	case SourceSafety:
		return "safety"
	default:
		return "unknown"
	}
}

// Priority returns the arbitration priority of the source, higher wins.
func (s IntentSource) Priority() int { return int(s) }

// IntentKind is the requested motion primitive.
type IntentKind int

const (
	KindStop IntentKind = iota
	KindForward
	KindBackward
	KindTurnLeft
	KindTurnRight
)

func (k IntentKind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindForward:
		return "forward"
	case KindBackward:
		return "backward"
	case KindTurnLeft:
		return "turn-left"
	case KindTurnRight:
		return "turn-right"
	default:
		return "unknown"
	}
}

// MotionIntent is a proposed, not-yet-applied movement. Intents are
// ephemeral: they live for one arbitration decision and are never
// persisted.
type MotionIntent struct {
	Source    IntentSource
	Kind      IntentKind
	Magnitude float64 // [0,1], clamped on construction
	Priority  int     // defaults to the source priority
	IssuedAt  time.Time
}

// NewIntent builds a MotionIntent with the magnitude clamped to [0,1]
// and the priority derived from the source.
func NewIntent(source IntentSource, kind IntentKind, magnitude float64, issuedAt time.Time) MotionIntent {
	if magnitude < 0 {
		magnitude = 0
	}
	if magnitude > 1 {
		magnitude = 1
	}
	if kind == KindStop {
		magnitude = 0
	}
	return MotionIntent{
		Source:    source,
		Kind:      kind,
		Magnitude: magnitude,
		Priority:  source.Priority(),
		IssuedAt:  issuedAt,
	}
}

// IsStop reports whether the intent halts the drive.
func (i MotionIntent) IsStop() bool { return i.Kind == KindStop }

// HazardCategory classifies a safety hazard.
type HazardCategory string

const (
	HazardProximity   HazardCategory = "proximity"
	HazardGas         HazardCategory = "gas"
	HazardTemperature HazardCategory = "temperature"
	HazardHumidity    HazardCategory = "humidity"
	HazardSensor      HazardCategory = "sensor"
)

// HazardSeverity is the escalation level of a hazard.
type HazardSeverity int

const (
	SeverityWarning HazardSeverity = iota
	SeverityCritical
)

func (s HazardSeverity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// HazardEvent is raised by the safety monitor and consumed by the state
// machine and the event sink.
type HazardEvent struct {
	Category  HazardCategory
	Severity  HazardSeverity
	Detail    string
	Timestamp time.Time
}

// SensorID names one physical sensor channel.
type SensorID string

const (
	SensorFront       SensorID = "distance:front"
	SensorLeft        SensorID = "distance:left"
	SensorRight       SensorID = "distance:right"
	SensorGas         SensorID = "env:gas"
	SensorTemperature SensorID = "env:temperature"
	SensorHumidity    SensorID = "env:humidity"
)

// DistanceSensors are the channels that feed obstacle avoidance.
var DistanceSensors = []SensorID{SensorFront, SensorLeft, SensorRight}

// AllSensors is the full poll set for the sensor hub.
var AllSensors = []SensorID{
	SensorFront, SensorLeft, SensorRight,
	SensorGas, SensorTemperature, SensorHumidity,
}

// Reading is a single sensor sample. Valid is false when the read errored,
// timed out, or the sample is older than the freshness window.
type Reading struct {
	Value     float64
	Unit      string
	Timestamp time.Time
	Valid     bool
}

// SensorSnapshot is an immutable view of the latest reading per sensor,
// published atomically by the sensor hub once per poll cycle.
type SensorSnapshot struct {
	Readings map[SensorID]Reading
	Taken    time.Time
}

// Clearance returns the distance reading for a sensor in meters. ok is
// false when the reading is missing or invalid; callers must treat that
// conservatively (obstacle assumed present).
func (s SensorSnapshot) Clearance(id SensorID) (float64, bool) {
	r, exists := s.Readings[id]
	if !exists || !r.Valid {
		return 0, false
	}
	return r.Value, true
}

// Env returns an environmental reading. ok is false when missing or
// invalid; callers must treat that as "unknown".
func (s SensorSnapshot) Env(id SensorID) (float64, bool) {
	r, exists := s.Readings[id]
	if !exists || !r.Valid {
		return 0, false
	}
	return r.Value, true
}

// BackendKind distinguishes local from cloud reasoning backends.
type BackendKind int

const (
	BackendLocal BackendKind = iota
	BackendCloud
)

func (k BackendKind) String() string {
	if k == BackendCloud {
		return "cloud"
	}
	return "local"
}

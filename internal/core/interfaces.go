package core

import (
	"robot-service/internal/messaging"
	"robot-service/internal/types"
)

// MessagingClient defines the interface for Redis messaging operations
// needed by RobotSystem.
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// State management
	PublishRobotState(state types.OperatingState) error

	// Event sink
	PublishHazard(ev types.HazardEvent) error
	PublishActuationFault(op, detail string) error
	PublishMotionDecision(intent types.MotionIntent) error
	PublishMissionReport(report string) error

	// Speech output port
	Say(text string) error

	// Telemetry
	SetTelemetry(snap types.SensorSnapshot) error
}

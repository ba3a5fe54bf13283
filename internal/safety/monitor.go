package safety

import (
	"fmt"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Thresholds are the hazard trip points. Warning levels raise events;
// critical levels additionally force an emergency stop.
type Thresholds struct {
	EmergencyClearance float64 // meters
	GasWarn            float64 // ppm
	GasCritical        float64
	TempWarn           float64 // celsius
	TempCritical       float64
	HumidityWarn       float64 // percent
	HumidityCritical   float64
}

// EmergencyStopper is the preempting stop lane into the actuator gateway.
type EmergencyStopper interface {
	EmergencyStop(reason string)
}

// Monitor evaluates sensor snapshots against the thresholds. Evaluate is
// pure; Check adds the critical fast-path to the gateway so the drive is
// halted in the same tick the hazard is observed.
type Monitor struct {
	thresholds Thresholds
	stopper    EmergencyStopper
	logger     *logger.Logger
}

func New(t Thresholds, stopper EmergencyStopper, l *logger.Logger) *Monitor {
	return &Monitor{
		thresholds: t,
		stopper:    stopper,
		logger:     l.WithTag("safety"),
	}
}

// Evaluate returns every hazard present in the snapshot. Invalid
// readings produce no hazard here; degraded-sensor handling lives in
// the sensor hub, and motion consumers already treat invalid distance
// readings as blocked.
func (m *Monitor) Evaluate(snap types.SensorSnapshot) []types.HazardEvent {
	var hazards []types.HazardEvent
	now := snap.Taken
	if now.IsZero() {
		now = time.Now()
	}

	for _, id := range types.DistanceSensors {
		dist, ok := snap.Clearance(id)
		if !ok {
			continue
		}
		if dist < m.thresholds.EmergencyClearance {
			hazards = append(hazards, types.HazardEvent{
				Category:  types.HazardProximity,
				Severity:  types.SeverityCritical,
				Detail:    fmt.Sprintf("%s clearance %.2fm below emergency limit %.2fm", id, dist, m.thresholds.EmergencyClearance),
				Timestamp: now,
			})
		}
	}

	hazards = append(hazards, m.evaluateLevel(snap, types.SensorGas, types.HazardGas,
		m.thresholds.GasWarn, m.thresholds.GasCritical, "ppm", now)...)
	hazards = append(hazards, m.evaluateLevel(snap, types.SensorTemperature, types.HazardTemperature,
		m.thresholds.TempWarn, m.thresholds.TempCritical, "C", now)...)
	hazards = append(hazards, m.evaluateLevel(snap, types.SensorHumidity, types.HazardHumidity,
		m.thresholds.HumidityWarn, m.thresholds.HumidityCritical, "%", now)...)

	return hazards
}

func (m *Monitor) evaluateLevel(snap types.SensorSnapshot, id types.SensorID, category types.HazardCategory,
	warn, critical float64, unit string, now time.Time) []types.HazardEvent {

	value, ok := snap.Env(id)
	if !ok || value < warn {
		return nil
	}

	severity := types.SeverityWarning
	limit := warn
	if value >= critical {
		severity = types.SeverityCritical
		limit = critical
	}
	return []types.HazardEvent{{
		Category:  category,
		Severity:  severity,
		Detail:    fmt.Sprintf("%s %.1f%s above %s limit %.1f%s", id, value, unit, severity, limit, unit),
		Timestamp: now,
	}}
}

// Check evaluates the snapshot and triggers the emergency stop lane on
// the first critical hazard.
func (m *Monitor) Check(snap types.SensorSnapshot) []types.HazardEvent {
	hazards := m.Evaluate(snap)

	for _, h := range hazards {
		if h.Severity == types.SeverityCritical {
			m.logger.Errorf("Critical hazard: %s", h.Detail)
			if m.stopper != nil {
				m.stopper.EmergencyStop(h.Detail)
			}
			break
		}
	}
	return hazards
}

// Critical reports whether any hazard in the slice is critical.
func Critical(hazards []types.HazardEvent) bool {
	for _, h := range hazards {
		if h.Severity == types.SeverityCritical {
			return true
		}
	}
	return false
}

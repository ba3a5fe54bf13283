package hardware

import (
	"fmt"
	"sync"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Simulator implements SensorReader, MotorDriver and StatusLamp in
// memory so the service can run on a development host without GPIO.
// Sensor values start at safe defaults and can be changed at runtime.
type Simulator struct {
	logger *logger.Logger

	mu       sync.Mutex
	readings map[types.SensorID]float64
	failing  map[types.SensorID]bool
	left     float64
	right    float64
	color    Color
}

func NewSimulator(l *logger.Logger) *Simulator {
	return &Simulator{
		logger: l.WithTag("sim"),
		readings: map[types.SensorID]float64{
			types.SensorFront:       2.0,
			types.SensorLeft:        2.0,
			types.SensorRight:       2.0,
			types.SensorGas:         50,
			types.SensorTemperature: 22,
			types.SensorHumidity:    45,
		},
		failing: make(map[types.SensorID]bool),
	}
}

// SetReading overrides a sensor value for scenario testing.
func (s *Simulator) SetReading(id types.SensorID, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[id] = value
}

// SetFailing makes a sensor channel error on every read.
func (s *Simulator) SetFailing(id types.SensorID, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[id] = failing
}

func (s *Simulator) Read(id types.SensorID) (float64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing[id] {
		return 0, "", fmt.Errorf("simulated failure on %s", id)
	}
	value, ok := s.readings[id]
	if !ok {
		return 0, "", fmt.Errorf("unknown sensor: %s", id)
	}
	switch id {
	case types.SensorGas:
		return value, "ppm", nil
	case types.SensorTemperature:
		return value, "C", nil
	case types.SensorHumidity:
		return value, "%", nil
	default:
		return value, "m", nil
	}
}

func (s *Simulator) Drive(left, right float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = clampSpeed(left)
	s.right = clampSpeed(right)
	s.logger.Debugf("Drive left=%.2f right=%.2f at %s", s.left, s.right, time.Now().Format(time.RFC3339Nano))
	return nil
}

func (s *Simulator) Stop() error {
	return s.Drive(0, 0)
}

// Speeds returns the last applied wheel speeds.
func (s *Simulator) Speeds() (left, right float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

func (s *Simulator) SetColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = c
	return nil
}

// LampColor returns the current status lamp colour.
func (s *Simulator) LampColor() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

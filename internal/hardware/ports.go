package hardware

import (
	"robot-service/internal/types"
)

// SensorReader reads one sensor channel. Implementations must return
// within a few milliseconds or an error; the hub enforces an outer
// deadline on top.
type SensorReader interface {
	Read(id types.SensorID) (value float64, unit string, err error)
}

// MotorDriver controls the differential drive. Speeds are normalized to
// [-1, 1] per side; implementations clamp out-of-range values.
type MotorDriver interface {
	Drive(left, right float64) error
	Stop() error
}

// Color is an RGB on/off triple for the status lamp.
type Color struct {
	R, G, B bool
}

var (
	ColorOff   = Color{}
	ColorRed   = Color{R: true}
	ColorGreen = Color{G: true}
	ColorBlue  = Color{B: true}
	ColorWhite = Color{R: true, G: true, B: true}
)

// StatusLamp drives the RGB state indicator.
type StatusLamp interface {
	SetColor(c Color) error
}

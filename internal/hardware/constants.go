package hardware

import "robot-service/internal/types"

const (
	GpioChip = "gpiochip0"

	IioDevice     = "iio:device0"
	GasAdcChannel = 0

	// HC-SR04 echo round-trip, bounded by the sensor's ~4 m range
	EchoTimeoutMs = 30

	SpeedOfSoundMps = 343.0
)

// L298N dual H-bridge, BCM numbering
var MotorPins = struct {
	LeftForward   int
	LeftBackward  int
	LeftEnable    int
	RightForward  int
	RightBackward int
	RightEnable   int
}{
	LeftForward:   17,
	LeftBackward:  27,
	LeftEnable:    22,
	RightForward:  23,
	RightBackward: 24,
	RightEnable:   25,
}

// HC-SR04 trigger/echo pairs per mounting direction
var UltrasonicPins = map[types.SensorID]struct {
	Trigger int
	Echo    int
}{
	types.SensorFront: {Trigger: 5, Echo: 6},
	types.SensorLeft:  {Trigger: 19, Echo: 26},
	types.SensorRight: {Trigger: 20, Echo: 21},
}

var LampPins = struct {
	Red   int
	Green int
	Blue  int
}{
	Red:   12,
	Green: 13,
	Blue:  16,
}

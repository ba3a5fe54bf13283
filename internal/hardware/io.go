package hardware

import (
	"fmt"
	"sync"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"

	"github.com/warthog618/go-gpiocdev"
)

// GpioHardware drives the real robot through the GPIO character device:
// an L298N H-bridge, three HC-SR04 rangefinders, the RGB status lamp and
// the IIO-attached environmental sensors. It implements SensorReader,
// MotorDriver and StatusLamp.
type GpioHardware struct {
	logger *logger.Logger
	chip   *gpiocdev.Chip

	leftForward   *gpiocdev.Line
	leftBackward  *gpiocdev.Line
	leftEnable    *gpiocdev.Line
	rightForward  *gpiocdev.Line
	rightBackward *gpiocdev.Line
	rightEnable   *gpiocdev.Line

	sonars map[types.SensorID]*sonar

	lampRed   *gpiocdev.Line
	lampGreen *gpiocdev.Line
	lampBlue  *gpiocdev.Line

	mu sync.Mutex
}

// sonar is one HC-SR04 pair. The echo line reports both edges; the event
// handler turns a rise/fall pair into a pulse width on the echo channel.
type sonar struct {
	trigger *gpiocdev.Line
	echo    *gpiocdev.Line
	rise    time.Duration
	pulses  chan time.Duration
	mu      sync.Mutex
}

func NewGpioHardware(l *logger.Logger) *GpioHardware {
	return &GpioHardware{
		logger: l.WithTag("hardware"),
		sonars: make(map[types.SensorID]*sonar),
	}
}

func (h *GpioHardware) Initialize() error {
	h.logger.Infof("Initializing GPIO hardware on %s", GpioChip)

	chip, err := gpiocdev.NewChip(GpioChip)
	if err != nil {
		return fmt.Errorf("failed to open GPIO chip %s: %w", GpioChip, err)
	}
	h.chip = chip

	outputs := []struct {
		name   string
		offset int
		dest   **gpiocdev.Line
	}{
		{"left-forward", MotorPins.LeftForward, &h.leftForward},
		{"left-backward", MotorPins.LeftBackward, &h.leftBackward},
		{"left-enable", MotorPins.LeftEnable, &h.leftEnable},
		{"right-forward", MotorPins.RightForward, &h.rightForward},
		{"right-backward", MotorPins.RightBackward, &h.rightBackward},
		{"right-enable", MotorPins.RightEnable, &h.rightEnable},
		{"lamp-red", LampPins.Red, &h.lampRed},
		{"lamp-green", LampPins.Green, &h.lampGreen},
		{"lamp-blue", LampPins.Blue, &h.lampBlue},
	}
	for _, out := range outputs {
		line, err := chip.RequestLine(out.offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("robot-service"))
		if err != nil {
			return fmt.Errorf("failed to request output %s (line %d): %w", out.name, out.offset, err)
		}
		*out.dest = line
		h.logger.Debugf("Configured output %s: line=%d", out.name, out.offset)
	}

	for id, pins := range UltrasonicPins {
		s := &sonar{pulses: make(chan time.Duration, 1)}

		s.trigger, err = chip.RequestLine(pins.Trigger,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("robot-service"))
		if err != nil {
			return fmt.Errorf("failed to request trigger for %s (line %d): %w", id, pins.Trigger, err)
		}

		s.echo, err = chip.RequestLine(pins.Echo,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithConsumer("robot-service"),
			gpiocdev.WithEventHandler(s.handleEdge))
		if err != nil {
			return fmt.Errorf("failed to request echo for %s (line %d): %w", id, pins.Echo, err)
		}

		h.sonars[id] = s
		h.logger.Debugf("Configured sonar %s: trigger=%d echo=%d", id, pins.Trigger, pins.Echo)
	}

	return nil
}

func (s *sonar) handleEdge(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		s.rise = evt.Timestamp
	case gpiocdev.LineEventFallingEdge:
		if s.rise == 0 {
			return
		}
		width := evt.Timestamp - s.rise
		s.rise = 0
		select {
		case s.pulses <- width:
		default:
		}
	}
}

// measure fires one trigger pulse and waits for the echo width.
func (s *sonar) measure() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// drop a stale pulse from a previous timed-out measurement
	select {
	case <-s.pulses:
	default:
	}

	if err := s.trigger.SetValue(1); err != nil {
		return 0, fmt.Errorf("trigger high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := s.trigger.SetValue(0); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}

	select {
	case width := <-s.pulses:
		return width.Seconds() * SpeedOfSoundMps / 2, nil
	case <-time.After(EchoTimeoutMs * time.Millisecond):
		return 0, fmt.Errorf("echo timeout")
	}
}

func (h *GpioHardware) Read(id types.SensorID) (float64, string, error) {
	switch id {
	case types.SensorFront, types.SensorLeft, types.SensorRight:
		s, ok := h.sonars[id]
		if !ok {
			return 0, "", fmt.Errorf("no sonar configured for %s", id)
		}
		dist, err := s.measure()
		if err != nil {
			return 0, "", fmt.Errorf("sonar %s: %w", id, err)
		}
		return dist, "m", nil

	case types.SensorGas:
		raw, err := ReadAdcValue(IioDevice, GasAdcChannel)
		if err != nil {
			return 0, "", err
		}
		// MQ-type analog output mapped onto a coarse 0..1000 ppm scale
		return float64(raw) * 1000.0 / 4095.0, "ppm", nil

	case types.SensorTemperature:
		milli, err := ReadIioMilli(IioDevice, "in_temp_input")
		if err != nil {
			return 0, "", err
		}
		return float64(milli) / 1000.0, "C", nil

	case types.SensorHumidity:
		milli, err := ReadIioMilli(IioDevice, "in_humidityrelative_input")
		if err != nil {
			return 0, "", err
		}
		return float64(milli) / 1000.0, "%", nil

	default:
		return 0, "", fmt.Errorf("unknown sensor: %s", id)
	}
}

func (h *GpioHardware) Drive(left, right float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	left = clampSpeed(left)
	right = clampSpeed(right)

	if err := h.setSide(h.leftForward, h.leftBackward, h.leftEnable, left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := h.setSide(h.rightForward, h.rightBackward, h.rightEnable, right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	h.logger.Debugf("Drive left=%.2f right=%.2f", left, right)
	return nil
}

// setSide sets one H-bridge half. The enable line is switched, not
// PWM-modulated; speed scaling happens upstream in the intent magnitude
// and the bridge's onboard regulator.
func (h *GpioHardware) setSide(forward, backward, enable *gpiocdev.Line, speed float64) error {
	fwd, bwd, en := 0, 0, 0
	switch {
	case speed > 0:
		fwd, en = 1, 1
	case speed < 0:
		bwd, en = 1, 1
	}
	if err := forward.SetValue(fwd); err != nil {
		return err
	}
	if err := backward.SetValue(bwd); err != nil {
		return err
	}
	return enable.SetValue(en)
}

func (h *GpioHardware) Stop() error {
	return h.Drive(0, 0)
}

func clampSpeed(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func (h *GpioHardware) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Infof("Cleaning up hardware resources")

	lines := []*gpiocdev.Line{
		h.leftForward, h.leftBackward, h.leftEnable,
		h.rightForward, h.rightBackward, h.rightEnable,
		h.lampRed, h.lampGreen, h.lampBlue,
	}
	for _, line := range lines {
		if line != nil {
			line.SetValue(0)
			line.Close()
		}
	}
	for id, s := range h.sonars {
		s.trigger.Close()
		s.echo.Close()
		h.logger.Debugf("Closed sonar %s", id)
	}
	if h.chip != nil {
		h.chip.Close()
	}
	h.logger.Infof("Hardware cleanup complete")
}

package hardware

import "fmt"

// SetColor drives the RGB status lamp. Safe to call before Initialize
// on a zero-value GpioHardware only in tests; in production the lamp
// lines exist once Initialize has run.
func (h *GpioHardware) SetColor(c Color) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lampRed == nil || h.lampGreen == nil || h.lampBlue == nil {
		return fmt.Errorf("status lamp not initialized")
	}

	if err := h.lampRed.SetValue(boolToVal(c.R)); err != nil {
		return fmt.Errorf("lamp red: %w", err)
	}
	if err := h.lampGreen.SetValue(boolToVal(c.G)); err != nil {
		return fmt.Errorf("lamp green: %w", err)
	}
	if err := h.lampBlue.SetValue(boolToVal(c.B)); err != nil {
		return fmt.Errorf("lamp blue: %w", err)
	}
	return nil
}

func boolToVal(b bool) int {
	if b {
		return 1
	}
	return 0
}

package camera

import (
	"strings"

	"github.com/bft-labs/frameship/internal/ports"
)

// NewPowerSwitch returns a GPIO power switch for pin, or nil when pin is
// empty. Pins use the board's naming, e.g. "GPIO_17" or "P1_11".
func NewPowerSwitch(pin string, activeLow bool, logger ports.Logger) (PowerSwitch, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, nil
	}
	return newGPIOSwitch(pin, activeLow, logger)
}

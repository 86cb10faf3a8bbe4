//go:build !linux

package camera

import (
	"fmt"
	"runtime"

	"github.com/bft-labs/frameship/internal/ports"
)

func newGPIOSwitch(key string, activeLow bool, logger ports.Logger) (PowerSwitch, error) {
	return nil, fmt.Errorf("gpio power switch not supported on %s", runtime.GOOS)
}

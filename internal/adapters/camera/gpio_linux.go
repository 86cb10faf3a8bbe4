//go:build linux

package camera

import (
	"fmt"
	"sync"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"

	"github.com/bft-labs/frameship/internal/ports"
)

// gpioSwitch drives a camera power enable line through embd.
type gpioSwitch struct {
	mu        sync.Mutex
	pin       embd.DigitalPin
	activeLow bool
	logger    ports.Logger
}

func newGPIOSwitch(key string, activeLow bool, logger ports.Logger) (PowerSwitch, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	pin, err := embd.NewDigitalPin(key)
	if err != nil {
		embd.CloseGPIO()
		return nil, fmt.Errorf("open pin %s: %w", key, err)
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		pin.Close()
		embd.CloseGPIO()
		return nil, fmt.Errorf("set pin %s direction: %w", key, err)
	}
	return &gpioSwitch{pin: pin, activeLow: activeLow, logger: logger}, nil
}

// SetPower drives the enable line.
func (g *gpioSwitch) SetPower(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	level := embd.Low
	if on != g.activeLow {
		level = embd.High
	}
	g.logger.Debug("camera power", ports.Bool("on", on))
	return g.pin.Write(level)
}

// Close releases the pin and the GPIO driver.
func (g *gpioSwitch) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.pin.Close()
	if cerr := embd.CloseGPIO(); err == nil {
		err = cerr
	}
	return err
}

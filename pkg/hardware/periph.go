package hardware

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
	"periph.io/x/periph/host/sysfs"
)

var (
	periphOnce sync.Once
	periphErr  error
)

// initPeriph loads the periph drivers for this host.  Only the first call does
// any work.
func initPeriph() error {
	periphOnce.Do(func() {
		_, periphErr = host.Init()
		periphErr = errors.Wrap(periphErr, "failed to initialise periph")
	})
	return periphErr
}

type levelSetter interface {
	Out(l gpio.Level) error
}

type gpioOut struct {
	pin levelSetter
}

func (g *gpioOut) Out(high bool) error {
	return g.pin.Out(gpio.Level(high))
}

func openOut(name string) (DigitalOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such GPIO pin %q", name)
	}
	return &gpioOut{pin: p}, nil
}

type gpioPWM struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

func (g *gpioPWM) SetDuty(percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(percent) / 100)
	return g.pin.PWM(duty, g.freq)
}

func (g *gpioPWM) Halt() error {
	return g.pin.Halt()
}

func openPWM(name string, freqHz int) (PWMOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such PWM pin %q", name)
	}
	return &gpioPWM{pin: p, freq: physic.Frequency(freqHz) * physic.Hertz}, nil
}

// openLED finds one of the on-board LEDs exposed under /sys/class/leds.
func openLED(name string) (DigitalOut, error) {
	led, err := sysfs.LEDByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open LED %q", name)
	}
	return &gpioOut{pin: led}, nil
}

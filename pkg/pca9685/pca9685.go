package pca9685

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	OscillatorHz = 25000000

	PWMMax = 4095

	NumChannels = 16
)

type Interface interface {
	Configure(frequencyHz float64) error
	SetPWM(channel int, value float64) error
	Close() error
}

type port interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev port
}

func New(deviceFile string, addr int) (Interface, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, err
	}
	return &PCA9685{
		dev: dev,
	}, nil
}

// PreScale returns the prescaler register value for the given output
// frequency.  The chip accepts 3..255.
func PreScale(frequencyHz float64) byte {
	v := math.Round(OscillatorHz/(PWMMax+1)/frequencyHz) - 1
	if v < 3 {
		v = 3
	} else if v > 255 {
		v = 255
	}
	return byte(v)
}

func (p *PCA9685) Configure(frequencyHz float64) (err error) {
	// Put device to sleep; the prescaler can only be written while asleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	err = p.dev.WriteReg(RegPreScale, []byte{PreScale(frequencyHz)})
	if err != nil {
		return
	}
	// Wake with auto-increment.
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Restart.
	err = p.dev.WriteReg(RegMode1, []byte{0xa1})
	return
}

// SetPWM sets the duty of one channel as a fraction in [0, 1].
func (p *PCA9685) SetPWM(channel int, value float64) error {
	if channel < 0 || channel >= NumChannels {
		return fmt.Errorf("PWM channel out of range: %d", channel)
	}
	return p.dev.WriteReg(channelReg(channel), offRegisters(value))
}

func channelReg(channel int) byte {
	return byte(RegLEDBase + channel*4)
}

// offRegisters encodes the on/off registers for a duty fraction.  Full on
// and full off use the dedicated bit 4 of the high bytes so there is no
// glitch at either end.
func offRegisters(value float64) []byte {
	if value <= 0 {
		return []byte{0, 0, 0, 0x10}
	}
	if value >= 1 {
		return []byte{0, 0x10, 0, 0}
	}
	pwmValue := uint16(PWMMax * value)
	return []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)}
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

// ParseChannel accepts "3", "ch3" or "LED3".
func ParseChannel(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "LED"), "CH")
	ch, err := strconv.Atoi(s)
	if err != nil || ch < 0 || ch >= NumChannels {
		return 0, fmt.Errorf("%q is not a PCA9685 channel", name)
	}
	return ch, nil
}

// DummyChip records the last value written to each channel.
type DummyChip struct {
	lock      sync.Mutex
	values    [NumChannels]float64
	frequency float64
}

var _ Interface = (*DummyChip)(nil)

func Dummy() *DummyChip {
	return &DummyChip{}
}

func (d *DummyChip) Configure(frequencyHz float64) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.frequency = frequencyHz
	return nil
}

func (d *DummyChip) SetPWM(channel int, value float64) error {
	if channel < 0 || channel >= NumChannels {
		return fmt.Errorf("no PCA9685 channel %d", channel)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.values[channel] = value
	return nil
}

// Value returns the last duty fraction written to channel.
func (d *DummyChip) Value(channel int) float64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.values[channel]
}

func (d *DummyChip) Close() error {
	return nil
}

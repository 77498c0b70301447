package ads1015

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x48

	RegConversion = 0
	RegConfig     = 1

	NumChannels = 4

	// Single-shot, +/-4.096V full scale, 1600 samples/s, comparator off.
	configOS       = 1 << 15
	configMuxBase  = 4 << 12 // AINx vs GND
	configPGA4V    = 1 << 9
	configOneShot  = 1 << 8
	configDR1600   = 4 << 5
	configCompOff  = 3
	conversionTime = 1 * time.Millisecond
)

type Interface interface {
	ReadChannel(ch int) (int, error)
	Channel(ch int) *Channel
	Close() error
}

type port interface {
	// Read reads len(buf) bytes from the device.
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
	Close() error
}

type ADS1015 struct {
	// One conversion at a time: the config register is shared by all channels.
	lock sync.Mutex
	dev  port
}

func New(deviceFile string, addr int) (Interface, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, err
	}
	return &ADS1015{
		dev: dev,
	}, nil
}

func ConfigValue(ch int) uint16 {
	return configOS | configMuxBase | uint16(ch)<<12 | configPGA4V | configOneShot | configDR1600 | configCompOff
}

// ReadChannel runs a single-shot conversion and returns the 12-bit result.
// Negative readings (possible near ground) are clamped to 0.
func (a *ADS1015) ReadChannel(ch int) (int, error) {
	if ch < 0 || ch >= NumChannels {
		return 0, fmt.Errorf("ADS1015 channel out of range: %d", ch)
	}
	a.lock.Lock()
	defer a.lock.Unlock()

	cfg := ConfigValue(ch)
	err := a.dev.WriteReg(RegConfig, []byte{byte(cfg >> 8), byte(cfg)})
	if err != nil {
		return 0, err
	}
	time.Sleep(conversionTime)

	raw, err := a.read16(RegConversion)
	if err != nil {
		return 0, err
	}
	v := int(int16(raw) >> 4)
	if v < 0 {
		v = 0
	}
	return v, nil
}

func (a *ADS1015) read16(reg byte) (uint16, error) {
	var buf [2]byte
	err := a.dev.ReadReg(reg, buf[:])
	return uint16(buf[0])<<8 | uint16(buf[1]), err
}

func (a *ADS1015) Channel(ch int) *Channel {
	return &Channel{adc: a, ch: ch}
}

func (a *ADS1015) Close() error {
	return a.dev.Close()
}

// Channel is one input of the converter.
type Channel struct {
	adc Interface
	ch  int
}

func (c *Channel) Read() (int, error) {
	return c.adc.ReadChannel(c.ch)
}

// ParseChannel accepts "A0".."A3" or "AIN0".."AIN3".
func ParseChannel(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "AIN"), "A")
	ch, err := strconv.Atoi(s)
	if err != nil || ch < 0 || ch >= NumChannels {
		return 0, fmt.Errorf("%q is not an ADS1015 channel", name)
	}
	return ch, nil
}

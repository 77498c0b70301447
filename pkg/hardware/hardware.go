package hardware

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/ads1015"
	"github.com/tigerbot-team/quickbot/pkg/pca9685"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

const (
	BackendBeagleBone = "beaglebone"
	BackendDummy      = "dummy"

	ADCSysfs   = "sysfs"
	ADCADS1015 = "ads1015"

	PWMPeriph  = "periph"
	PWMPCA9685 = "pca9685"
)

type Config struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	ADC     string `yaml:"adc" env:"ADC"`
	PWM     string `yaml:"pwm" env:"PWM"`

	// Shared bus for the ADS1015 and PCA9685 backends.
	I2CDevice   string `yaml:"i2c_device" env:"I2C_DEVICE"`
	ADS1015Addr int    `yaml:"ads1015_addr" env:"ADS1015_ADDR"`
	PCA9685Addr int    `yaml:"pca9685_addr" env:"PCA9685_ADDR"`

	PWMFrequencyHz int `yaml:"pwm_frequency_hz" env:"PWM_FREQUENCY_HZ"`

	Dir1Pins     wheel.Pair[string] `yaml:"dir1_pins"`
	Dir2Pins     wheel.Pair[string] `yaml:"dir2_pins"`
	PWMPins      wheel.Pair[string] `yaml:"pwm_pins"`
	EncoderPins  wheel.Pair[string] `yaml:"encoder_pins"`
	IRPins       []string           `yaml:"ir_pins,flow"`
	HeartbeatLED string             `yaml:"heartbeat_led" env:"HEARTBEAT_LED"`
}

// DefaultConfig is the QuickBot cape wiring on a BeagleBone Black.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendBeagleBone,
		ADC:            ADCSysfs,
		PWM:            PWMPeriph,
		I2CDevice:      "/dev/i2c-1",
		ADS1015Addr:    ads1015.DefaultAddr,
		PCA9685Addr:    pca9685.DefaultAddr,
		PWMFrequencyHz: 2000,
		Dir1Pins:       wheel.Pair[string]{Left: "P8_12", Right: "P8_14"},
		Dir2Pins:       wheel.Pair[string]{Left: "P8_10", Right: "P8_16"},
		PWMPins:        wheel.Pair[string]{Left: "P9_14", Right: "P9_16"},
		EncoderPins:    wheel.Pair[string]{Left: "P9_39", Right: "P9_37"},
		IRPins:         []string{"P9_35", "P9_33", "P9_40", "P9_36", "P9_38"},
		HeartbeatLED:   "beaglebone:green:usr1",
	}
}

func (c Config) Validate() error {
	if c.Backend == BackendDummy {
		return nil
	}
	if c.Backend != BackendBeagleBone {
		return errors.Errorf("unknown hardware backend %q", c.Backend)
	}
	for _, side := range wheel.Both {
		for what, pin := range map[string]string{
			"dir1":    c.Dir1Pins.Get(side),
			"dir2":    c.Dir2Pins.Get(side),
			"pwm":     c.PWMPins.Get(side),
			"encoder": c.EncoderPins.Get(side),
		} {
			if pin == "" {
				return errors.Errorf("no %s pin configured for %v wheel", what, side)
			}
		}
	}
	switch c.ADC {
	case ADCSysfs, ADCADS1015:
	default:
		return errors.Errorf("unknown ADC backend %q", c.ADC)
	}
	switch c.PWM {
	case PWMPeriph, PWMPCA9685:
	default:
		return errors.Errorf("unknown PWM backend %q", c.PWM)
	}
	return nil
}

// Board is the set of handles opened at startup.  Everything it holds is
// released by Close.
type Board struct {
	motors   [2]MotorPins
	encoders [2]AnalogIn
	ir       []AnalogIn
	led      DigitalOut

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

var _ Interface = (*Board)(nil)

func (b *Board) Motor(side wheel.Side) MotorPins { return b.motors[side] }
func (b *Board) Encoder(side wheel.Side) AnalogIn { return b.encoders[side] }
func (b *Board) IR() []AnalogIn                   { return b.ir }
func (b *Board) LED() DigitalOut                  { return b.led }

func (b *Board) onClose(f func() error) {
	b.closers = append(b.closers, f)
}

// Close runs the release functions in reverse order of acquisition.  Every
// release is attempted; the first error is returned.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		for i := len(b.closers) - 1; i >= 0; i-- {
			if err := b.closers[i](); err != nil {
				log.Warn().Err(err).Msg("HW: release failed")
				if b.closeErr == nil {
					b.closeErr = err
				}
			}
		}
	})
	return b.closeErr
}

// Open acquires all the hardware described by cfg.  On failure, whatever was
// already opened is released again.
func Open(cfg Config) (Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendDummy {
		return NewDummy(), nil
	}

	b := &Board{}
	if err := b.open(cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Board) open(cfg Config) error {
	if err := initPeriph(); err != nil {
		return err
	}

	var pwmChip pca9685.Interface
	if cfg.PWM == PWMPCA9685 {
		chip, err := pca9685.New(cfg.I2CDevice, cfg.PCA9685Addr)
		if err != nil {
			return errors.Wrap(err, "failed to open PCA9685")
		}
		b.onClose(chip.Close)
		if err := chip.Configure(float64(cfg.PWMFrequencyHz)); err != nil {
			return errors.Wrap(err, "failed to configure PCA9685")
		}
		pwmChip = chip
	}

	var adc ads1015.Interface
	if cfg.ADC == ADCADS1015 {
		a, err := ads1015.New(cfg.I2CDevice, cfg.ADS1015Addr)
		if err != nil {
			return errors.Wrap(err, "failed to open ADS1015")
		}
		b.onClose(a.Close)
		adc = a
	}

	openAnalog := func(name string) (AnalogIn, error) {
		if adc != nil {
			ch, err := ads1015.ParseChannel(name)
			if err != nil {
				return nil, err
			}
			return adc.Channel(ch), nil
		}
		return OpenSysfsAnalog(name)
	}

	for _, side := range wheel.Both {
		dir1, err := openOut(cfg.Dir1Pins.Get(side))
		if err != nil {
			return err
		}
		dir2, err := openOut(cfg.Dir2Pins.Get(side))
		if err != nil {
			return err
		}
		var pwm PWMOut
		if pwmChip != nil {
			ch, err := pca9685.ParseChannel(cfg.PWMPins.Get(side))
			if err != nil {
				return err
			}
			pwm = &pcaPWM{chip: pwmChip, channel: ch}
		} else {
			pwm, err = openPWM(cfg.PWMPins.Get(side), cfg.PWMFrequencyHz)
			if err != nil {
				return err
			}
		}
		// Start with the bridge de-asserted; undo the same on the way out.
		if err := dir1.Out(false); err != nil {
			return errors.Wrapf(err, "failed to initialise %v dir1", side)
		}
		if err := dir2.Out(false); err != nil {
			return errors.Wrapf(err, "failed to initialise %v dir2", side)
		}
		if err := pwm.SetDuty(0); err != nil {
			return errors.Wrapf(err, "failed to start %v PWM", side)
		}
		b.onClose(func() error {
			err := pwm.Halt()
			if e := dir1.Out(false); err == nil {
				err = e
			}
			if e := dir2.Out(false); err == nil {
				err = e
			}
			return err
		})
		b.motors[side] = MotorPins{Dir1: dir1, Dir2: dir2, PWM: pwm}

		enc, err := openAnalog(cfg.EncoderPins.Get(side))
		if err != nil {
			return errors.Wrapf(err, "failed to open %v encoder", side)
		}
		b.encoders[side] = enc
	}

	for _, pin := range cfg.IRPins {
		in, err := openAnalog(pin)
		if err != nil {
			return errors.Wrapf(err, "failed to open IR sensor %s", pin)
		}
		b.ir = append(b.ir, in)
	}

	if cfg.HeartbeatLED == "" {
		b.led = nopOut{}
	} else {
		led, err := openLED(cfg.HeartbeatLED)
		if err != nil {
			// The heartbeat is cosmetic; run without it.
			log.Warn().Err(err).Str("led", cfg.HeartbeatLED).Msg("HW: heartbeat LED unavailable")
			b.led = nopOut{}
		} else {
			b.led = led
			b.onClose(func() error { return led.Out(false) })
		}
	}

	log.Info().Str("adc", cfg.ADC).Str("pwm", cfg.PWM).Int("ir", len(b.ir)).Msg("HW: board open")
	return nil
}

type nopOut struct{}

func (nopOut) Out(bool) error { return nil }

// pcaPWM adapts one PCA9685 channel to PWMOut.
type pcaPWM struct {
	chip    pca9685.Interface
	channel int
}

func (p *pcaPWM) SetDuty(percent int) error {
	return p.chip.SetPWM(p.channel, float64(percent)/100)
}

func (p *pcaPWM) Halt() error {
	return p.chip.SetPWM(p.channel, 0)
}

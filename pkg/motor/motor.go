// Package motor turns signed duty commands into H-bridge pin states and
// publishes the commanded direction of each wheel for the encoder sampler.
package motor

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

type Config struct {
	MinDuty int `yaml:"min_duty" env:"MIN_DUTY"`
	MaxDuty int `yaml:"max_duty" env:"MAX_DUTY"`
}

func DefaultConfig() Config {
	return Config{MinDuty: -100, MaxDuty: 100}
}

// Validate requires -100 <= min_duty <= 0 <= max_duty <= 100, so that a zero
// duty always stops the wheel and never exceeds what a PWM output accepts.
func (c Config) Validate() error {
	if c.MinDuty < -100 || c.MinDuty > 0 {
		return errors.Errorf("min_duty %d outside [-100, 0]", c.MinDuty)
	}
	if c.MaxDuty < 0 || c.MaxDuty > 100 {
		return errors.Errorf("max_duty %d outside [0, 100]", c.MaxDuty)
	}
	return nil
}

type Driver struct {
	cfg  Config
	pins [2]hardware.MotorPins

	// Serialises actuation so the pins and duty always agree.
	lock sync.Mutex
	duty [2]int

	// Read by the sampler without taking lock.
	direction [2]atomic.Int32
}

func New(cfg Config, hw hardware.Interface) *Driver {
	d := &Driver{cfg: cfg}
	for _, side := range wheel.Both {
		d.pins[side] = hw.Motor(side)
	}
	return d
}

func (d *Driver) clamp(v int) int {
	if v < d.cfg.MinDuty {
		return d.cfg.MinDuty
	}
	if v > d.cfg.MaxDuty {
		return d.cfg.MaxDuty
	}
	return v
}

// SetDuty applies a duty to both wheels and returns the values actually used.
// Out-of-range requests are clamped.  Actuator failures are logged, never
// returned: the caller is a remote peer that cannot do anything about them.
func (d *Driver) SetDuty(left, right int) (appliedLeft, appliedRight int) {
	applied, _ := d.setDuty(d.clamp(left), d.clamp(right))
	log.Debug().Int("left", applied[wheel.Left]).Int("right", applied[wheel.Right]).Msg("Setting motor PWMs")
	return applied[wheel.Left], applied[wheel.Right]
}

// Stop zeroes both wheels and reports the first actuator error.
func (d *Driver) Stop() error {
	_, err := d.setDuty(0, 0)
	return err
}

func (d *Driver) setDuty(left, right int) ([2]int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	var firstErr error
	for side, v := range [2]int{left, right} {
		s := wheel.Side(side)
		d.duty[s] = v
		// Publish before touching the pins so the sampler attributes any tick
		// caused by this command to the right direction.
		d.direction[s].Store(int32(wheel.Sign(v)))
		if err := d.actuate(s, v); err != nil {
			log.Warn().Err(err).Stringer("side", s).Int("duty", v).Msg("Failed to drive motor")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return d.duty, firstErr
}

func (d *Driver) actuate(side wheel.Side, v int) error {
	p := d.pins[side]
	var dir1, dir2 bool
	magnitude := v
	switch {
	case v > 0:
		dir2 = true
	case v < 0:
		dir1 = true
		magnitude = -v
	}
	if err := p.Dir1.Out(dir1); err != nil {
		return err
	}
	if err := p.Dir2.Out(dir2); err != nil {
		return err
	}
	return p.PWM.SetDuty(magnitude)
}

// Duty returns the last applied pair.
func (d *Driver) Duty() (left, right int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.duty[wheel.Left], d.duty[wheel.Right]
}

// Direction returns the sign of the last applied duty for side.
func (d *Driver) Direction(side wheel.Side) int {
	return int(d.direction[side].Load())
}

// Close zeroes both wheels and halts their PWM channels.  The driver must not
// be used afterwards.
func (d *Driver) Close() error {
	err := d.Stop()
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, side := range wheel.Both {
		if haltErr := d.pins[side].PWM.Halt(); haltErr != nil && err == nil {
			err = haltErr
		}
	}
	return err
}

package hardware

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

// Dummy is an in-memory board.  Outputs record what they were told; the
// encoders simulate a striped wheel turning in proportion to the PWM duty so
// that the controller can be exercised end to end without hardware.
type Dummy struct {
	Dir1      [2]*DummyOut
	Dir2      [2]*DummyOut
	PWM       [2]*DummyPWM
	Encoders  [2]AnalogIn
	IRs       []*DummyAnalog
	Heartbeat *DummyOut

	// CloseErr, if set, is returned from Close.
	CloseErr error

	lock   sync.Mutex
	closed int
}

var _ Interface = (*Dummy)(nil)

func NewDummy() *Dummy {
	d := &Dummy{Heartbeat: &DummyOut{}}
	for _, side := range wheel.Both {
		d.Dir1[side] = &DummyOut{}
		d.Dir2[side] = &DummyOut{}
		d.PWM[side] = &DummyPWM{}
		d.Encoders[side] = NewSimulatedEncoder(d.PWM[side])
	}
	for i := 0; i < 5; i++ {
		d.IRs = append(d.IRs, &DummyAnalog{})
	}
	return d
}

func (d *Dummy) Motor(side wheel.Side) MotorPins {
	return MotorPins{Dir1: d.Dir1[side], Dir2: d.Dir2[side], PWM: d.PWM[side]}
}

func (d *Dummy) Encoder(side wheel.Side) AnalogIn {
	return d.Encoders[side]
}

func (d *Dummy) IR() []AnalogIn {
	ins := make([]AnalogIn, len(d.IRs))
	for i, ir := range d.IRs {
		ins[i] = ir
	}
	return ins
}

func (d *Dummy) LED() DigitalOut {
	return d.Heartbeat
}

func (d *Dummy) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed++
	if d.closed == 1 {
		log.Info().Msg("DHW: Close")
		for _, side := range wheel.Both {
			_ = d.PWM[side].Halt()
		}
		if err := d.Heartbeat.Out(false); err != nil {
			log.Warn().Err(err).Msg("DHW: failed to turn off heartbeat")
		}
	}
	return d.CloseErr
}

// CloseCount reports how many times Close was called.
func (d *Dummy) CloseCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.closed
}

type DummyOut struct {
	lock   sync.Mutex
	high   bool
	writes int
	Err    error
}

func (o *DummyOut) Out(high bool) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.high = high
	o.writes++
	return nil
}

func (o *DummyOut) High() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.high
}

func (o *DummyOut) Writes() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.writes
}

type DummyPWM struct {
	lock    sync.Mutex
	duty    int
	running bool
	Err     error
}

func (p *DummyPWM) SetDuty(percent int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.duty = percent
	p.running = true
	return nil
}

func (p *DummyPWM) Halt() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.duty = 0
	p.running = false
	return nil
}

func (p *DummyPWM) Duty() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.duty
}

func (p *DummyPWM) Running() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.running
}

// ErrDummyRead is returned by a DummyAnalog scripted to fail.
var ErrDummyRead = errors.New("dummy read failure")

// DummyAnalog returns scripted readings first, then its steady value.
type DummyAnalog struct {
	lock   sync.Mutex
	value  int
	script []DummyReading
	reads  int
}

type DummyReading struct {
	Value int
	Err   error
}

func (a *DummyAnalog) Set(v int) {
	a.lock.Lock()
	a.value = v
	a.lock.Unlock()
}

// Script queues readings to be returned before the steady value.
func (a *DummyAnalog) Script(readings ...DummyReading) {
	a.lock.Lock()
	a.script = append(a.script, readings...)
	a.lock.Unlock()
}

func (a *DummyAnalog) Read() (int, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.reads++
	if len(a.script) > 0 {
		r := a.script[0]
		a.script = a.script[1:]
		return r.Value, r.Err
	}
	return a.value, nil
}

func (a *DummyAnalog) Reads() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.reads
}

const (
	simStripes         = 16  // rising edges per revolution
	simRevsPerSecAtMax = 2.0 // wheel speed at 100% duty
	simHigh            = 1800
	simLow             = 400
)

// SimulatedEncoder produces the reflectance signal of a striped wheel whose
// speed follows the duty of a DummyPWM.
type SimulatedEncoder struct {
	pwm *DummyPWM

	lock  sync.Mutex
	phase float64 // in stripes
	last  time.Time
}

func NewSimulatedEncoder(pwm *DummyPWM) *SimulatedEncoder {
	return &SimulatedEncoder{pwm: pwm}
}

func (s *SimulatedEncoder) Read() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	now := time.Now()
	if !s.last.IsZero() {
		revsPerSec := float64(s.pwm.Duty()) / 100 * simRevsPerSecAtMax
		s.phase += now.Sub(s.last).Seconds() * revsPerSec * simStripes
	}
	s.last = now
	if _, frac := math.Modf(s.phase); frac < 0.5 {
		return simHigh, nil
	}
	return simLow, nil
}

// Package robot runs the QuickBot control loop: it polls the link for
// commands, keeps a local copy of the odometry, refreshes the IR rangefinders
// and blinks the heartbeat LED until it is told to stop.
package robot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/link"
	"github.com/tigerbot-team/quickbot/pkg/motor"
	"github.com/tigerbot-team/quickbot/pkg/odometry"
	"github.com/tigerbot-team/quickbot/pkg/protocol"
)

type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

type Config struct {
	// IRInterval is the minimum time between IR refreshes; 0 disables them.
	IRInterval     time.Duration `yaml:"ir_interval" env:"IR_INTERVAL"`
	IRReadAttempts int           `yaml:"ir_read_attempts" env:"IR_READ_ATTEMPTS"`
	// LoopInterval is an optional pause at the end of each iteration.
	LoopInterval time.Duration `yaml:"loop_interval" env:"LOOP_INTERVAL"`
}

func DefaultConfig() Config {
	return Config{
		IRInterval:     50 * time.Millisecond,
		IRReadAttempts: 3,
	}
}

func (c Config) Validate() error {
	if c.IRInterval < 0 || c.LoopInterval < 0 {
		return errors.New("robot intervals must not be negative")
	}
	if c.IRReadAttempts < 1 {
		return errors.Errorf("ir_read_attempts must be at least 1, not %d", c.IRReadAttempts)
	}
	return nil
}

// Sampler is the background encoder task; it must call done.Done() once ctx
// is cancelled.
type Sampler interface {
	Loop(ctx context.Context, done *sync.WaitGroup)
}

type Robot struct {
	cfg    Config
	hw     hardware.Interface
	link   link.Interface
	motors *motor.Driver
	odo    *odometry.State

	state atomic.Int32

	// Owned by the control loop goroutine.
	dispatcher      *protocol.Dispatcher
	snapshot        odometry.Snapshot
	ir              []int
	lastIR          time.Time
	heartbeat       bool
	heartbeatFailed bool
}

func New(cfg Config, hw hardware.Interface, l link.Interface, motors *motor.Driver, odo *odometry.State) *Robot {
	if cfg.IRReadAttempts < 1 {
		cfg.IRReadAttempts = 1
	}
	return &Robot{
		cfg:    cfg,
		hw:     hw,
		link:   l,
		motors: motors,
		odo:    odo,
		ir:     make([]int, len(hw.IR())),
	}
}

func (r *Robot) State() State {
	return State(r.state.Load())
}

// Odometry returns the snapshot taken at the start of the current iteration.
func (r *Robot) Odometry() odometry.Snapshot {
	return r.snapshot
}

func (r *Robot) IRValues() []int {
	values := make([]int, len(r.ir))
	copy(values, r.ir)
	return values
}

// Run starts the sampler and runs the control loop until ctx is cancelled,
// either by the caller or by cancel being called from the END command or the
// sampler.  Every handle is released before Run returns; the returned error
// reports the first failure seen while releasing them.
func (r *Robot) Run(ctx context.Context, cancel context.CancelFunc, sampler Sampler) error {
	r.dispatcher = protocol.NewDispatcher(r.motors, r, r.link, cancel)

	var samplerDone sync.WaitGroup
	samplerDone.Add(1)
	go sampler.Loop(ctx, &samplerDone)

	r.state.Store(int32(Running))
	log.Info().Msg("QuickBot running")
	for ctx.Err() == nil {
		r.step(time.Now())
		if r.cfg.LoopInterval > 0 {
			time.Sleep(r.cfg.LoopInterval)
		}
	}
	return r.stop(cancel, &samplerDone)
}

func (r *Robot) step(now time.Time) {
	r.snapshot = r.odo.Snapshot()

	if data, ok := r.link.TryReceive(); ok {
		r.dispatcher.Pump(data)
	}

	if r.cfg.IRInterval > 0 && now.Sub(r.lastIR) >= r.cfg.IRInterval {
		r.refreshIR()
		r.lastIR = now
	}

	r.toggleHeartbeat()
}

// refreshIR reads every rangefinder; a channel that cannot be read keeps its
// previous value.
func (r *Robot) refreshIR() {
	for i, in := range r.hw.IR() {
		for attempt := 0; attempt < r.cfg.IRReadAttempts; attempt++ {
			v, err := in.Read()
			if err == nil {
				r.ir[i] = v
				break
			}
			log.Debug().Err(err).Int("ir", i).Msg("IR read failed")
		}
	}
}

func (r *Robot) toggleHeartbeat() {
	r.heartbeat = !r.heartbeat
	if err := r.hw.LED().Out(r.heartbeat); err != nil && !r.heartbeatFailed {
		log.Warn().Err(err).Msg("Failed to drive heartbeat LED")
		r.heartbeatFailed = true
	}
}

func (r *Robot) stop(cancel context.CancelFunc, samplerDone *sync.WaitGroup) error {
	r.state.Store(int32(Stopping))
	log.Info().Msg("QuickBot stopping")
	cancel()

	var firstErr error
	record := func(err error, msg string) {
		if err == nil {
			return
		}
		log.Error().Err(err).Msg(msg)
		if firstErr == nil {
			firstErr = errors.Wrap(err, msg)
		}
	}

	record(r.motors.Close(), "failed to zero motors")
	record(r.link.Close(), "failed to close link")
	samplerDone.Wait()
	record(r.hw.Close(), "failed to release hardware")

	r.state.Store(int32(Stopped))
	log.Info().Msg("QuickBot stopped")
	return firstErr
}

// Package encoder converts the analog reflectance signal of each wheel's
// stripe sensor into position ticks and velocity.
//
// The sampler polls the left and right sensors alternately with a fixed
// sleep in between.  A tick is a rising edge: a sample at or above the
// wheel's threshold following one below it.  Each tick moves the position by
// the wheel's current commanded direction, and, from the second tick on,
// sets the velocity to one stripe over the time since the previous tick.
// Velocity holds its value between ticks.
package encoder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

type Config struct {
	Threshold          wheel.Pair[int] `yaml:"threshold"`
	TicksPerRevolution int             `yaml:"ticks_per_revolution" env:"TICKS_PER_REVOLUTION"`
	SampleInterval     time.Duration   `yaml:"sample_interval" env:"SAMPLE_INTERVAL"`

	// Attempts per sample before the sample is skipped.
	ReadAttempts int `yaml:"read_attempts" env:"READ_ATTEMPTS"`

	// Diagnostic recording: when RecordSamples > 0 the sampler records that
	// many iterations, then asks for shutdown and writes them to RecordPath.
	RecordSamples int    `yaml:"record_samples" env:"RECORD_SAMPLES"`
	RecordPath    string `yaml:"record_path" env:"RECORD_PATH"`
}

func DefaultConfig() Config {
	return Config{
		Threshold:          wheel.Pair[int]{Left: 1325, Right: 1325},
		TicksPerRevolution: 16,
		SampleInterval:     1 * time.Millisecond,
		ReadAttempts:       1,
		RecordPath:         "output.txt",
	}
}

type Edge int

const (
	Below Edge = iota
	Above
)

// Sample is one poll of one sensor.  T is seconds since the sampler started.
type Sample struct {
	T    float64
	Raw  int
	Edge Edge
}

// DirectionSource reports the commanded direction (-1, 0, +1) of a wheel.
type DirectionSource interface {
	Direction(side wheel.Side) int
}

// Publisher receives every tick.
type Publisher interface {
	WriteTick(side wheel.Side, ticks int64, velocity float64)
}

type Stats struct {
	Ticks        [2]int64
	CoastTicks   [2]int64
	ReadFailures [2]int64
}

type Sampler struct {
	cfg      Config
	inputs   [2]hardware.AnalogIn
	dirs     DirectionSource
	out      Publisher
	shutdown func()
	recorder *Recorder

	// Owned by the sampling goroutine.
	last     [2]Sample
	seen     [2]bool
	ticks    [2]int64
	velocity [2]float64
	lastTick [2]float64
	haveTick [2]bool

	tickCount    [2]atomic.Int64
	coastCount   [2]atomic.Int64
	failureCount [2]atomic.Int64
}

// New creates a sampler.  shutdown is called (once) if the diagnostic
// recorder fills up; it may be nil when recording is disabled.
func New(cfg Config, hw hardware.Interface, dirs DirectionSource, out Publisher, shutdown func()) *Sampler {
	if cfg.ReadAttempts < 1 {
		cfg.ReadAttempts = 1
	}
	s := &Sampler{
		cfg:      cfg,
		dirs:     dirs,
		out:      out,
		shutdown: shutdown,
	}
	for _, side := range wheel.Both {
		s.inputs[side] = hw.Encoder(side)
	}
	if cfg.RecordSamples > 0 {
		s.recorder = NewRecorder(cfg.RecordSamples)
	}
	return s
}

// Loop samples until ctx is cancelled.
func (s *Sampler) Loop(ctx context.Context, done *sync.WaitGroup) {
	defer done.Done()
	log.Info().Dur("interval", s.cfg.SampleInterval).Msg("Encoder sampler started")

	start := time.Now()
	for ctx.Err() == nil {
		s.sample(wheel.Left, time.Since(start).Seconds())
		time.Sleep(s.cfg.SampleInterval)
		s.sample(wheel.Right, time.Since(start).Seconds())
		time.Sleep(s.cfg.SampleInterval)

		if s.recorder != nil && !s.recorder.Full() {
			s.recorder.Record(s.last[wheel.Left], s.last[wheel.Right])
			if s.recorder.Full() {
				log.Info().Int("samples", s.recorder.Len()).Msg("Quitting: diagnostic recording complete")
				if s.shutdown != nil {
					s.shutdown()
				}
			}
		}
	}

	if s.recorder != nil {
		if err := s.recorder.WriteFile(s.cfg.RecordPath); err != nil {
			log.Error().Err(err).Str("path", s.cfg.RecordPath).Msg("Failed to write encoder samples")
		} else {
			log.Info().Str("path", s.cfg.RecordPath).Msg("Wrote encoder samples")
		}
	}
	log.Info().Msg("Encoder sampler stopped")
}

func (s *Sampler) read(side wheel.Side) (int, bool) {
	var err error
	for i := 0; i < s.cfg.ReadAttempts; i++ {
		var v int
		v, err = s.inputs[side].Read()
		if err == nil {
			return v, true
		}
	}
	s.failureCount[side].Add(1)
	log.Debug().Err(err).Stringer("side", side).Msg("Encoder read failed; skipping sample")
	return 0, false
}

// sample polls one side at time t (seconds since start) and runs the edge
// detector.  It reports whether a tick was detected.
func (s *Sampler) sample(side wheel.Side, t float64) bool {
	raw, ok := s.read(side)
	if !ok {
		return false
	}

	edge := Below
	if raw >= s.cfg.Threshold.Get(side) {
		edge = Above
	}
	prev, seen := s.last[side].Edge, s.seen[side]
	s.last[side] = Sample{T: t, Raw: raw, Edge: edge}
	s.seen[side] = true

	if !seen || prev != Below || edge != Above {
		return false
	}

	dir := s.dirs.Direction(side)
	s.ticks[side] += int64(dir)
	if s.haveTick[side] {
		dt := t - s.lastTick[side]
		// Two ticks at the same instant give no usable rate; keep the last one.
		if dt > 0 {
			s.velocity[side] = float64(dir) / (dt * float64(s.cfg.TicksPerRevolution))
		}
	}
	s.lastTick[side] = t
	s.haveTick[side] = true

	s.tickCount[side].Add(1)
	if dir == 0 {
		// The wheel moved while no direction was commanded (coasting or pushed).
		// Position is left as is.
		s.coastCount[side].Add(1)
	}
	s.out.WriteTick(side, s.ticks[side], s.velocity[side])
	return true
}

// Stats may be called from any goroutine.
func (s *Sampler) Stats() Stats {
	var st Stats
	for _, side := range wheel.Both {
		st.Ticks[side] = s.tickCount[side].Load()
		st.CoastTicks[side] = s.coastCount[side].Load()
		st.ReadFailures[side] = s.failureCount[side].Load()
	}
	return st
}

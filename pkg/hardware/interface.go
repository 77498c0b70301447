package hardware

import "github.com/tigerbot-team/quickbot/pkg/wheel"

// DigitalOut drives a single output pin LOW (false) or HIGH (true).
type DigitalOut interface {
	Out(high bool) error
}

// PWMOut drives a PWM channel.  SetDuty takes a percentage in [0, 100]; a
// channel is running once it has been given a duty and stops on Halt.
type PWMOut interface {
	SetDuty(percent int) error
	Halt() error
}

// AnalogIn reads a raw ADC count.  Reads may fail transiently; callers retry
// or skip the sample.
type AnalogIn interface {
	Read() (int, error)
}

// MotorPins are the three outputs of one H-bridge channel.
type MotorPins struct {
	Dir1 DigitalOut
	Dir2 DigitalOut
	PWM  PWMOut
}

type Interface interface {
	Motor(side wheel.Side) MotorPins
	Encoder(side wheel.Side) AnalogIn
	IR() []AnalogIn
	LED() DigitalOut

	// Close releases every handle.  It is safe to call more than once.
	Close() error
}

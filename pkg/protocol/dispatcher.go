package protocol

import (
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/odometry"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

const (
	CmdCheck  = "CHECK"
	CmdPWM    = "PWM"
	CmdIRVal  = "IRVAL"
	CmdENVal  = "ENVAL"
	CmdENVel  = "ENVEL"
	CmdUpdate = "UPDATE"
	CmdEnd    = "END"
)

type Motors interface {
	SetDuty(left, right int) (int, int)
	Duty() (left, right int)
}

// Sensors exposes the control loop's current view of the robot.
type Sensors interface {
	Odometry() odometry.Snapshot
	IRValues() []int
}

// Replier sends a reply to the base station.
type Replier interface {
	Reply(msg []byte) error
}

// Dispatcher turns received bytes into commands.  It is used only from the
// control loop goroutine.
type Dispatcher struct {
	buf      Buffer
	motors   Motors
	sensors  Sensors
	replier  Replier
	shutdown func()
}

func NewDispatcher(motors Motors, sensors Sensors, replier Replier, shutdown func()) *Dispatcher {
	return &Dispatcher{
		motors:   motors,
		sensors:  sensors,
		replier:  replier,
		shutdown: shutdown,
	}
}

// Pump feeds a datagram into the receive buffer and handles every frame that
// can be extracted.  It returns the number of frames handled.
func (d *Dispatcher) Pump(data []byte) int {
	d.buf.Feed(data)
	n := 0
	for {
		frame, ok := d.buf.Extract()
		if !ok {
			return n
		}
		d.HandleFrame(frame)
		n++
	}
}

func (d *Dispatcher) HandleFrame(frame string) {
	msg, ok := Parse(frame)
	if !ok {
		log.Debug().Str("frame", frame).Msg("Dropping malformed frame")
		return
	}
	log.Debug().Str("frame", frame).Msg("Received")
	d.Dispatch(msg)
}

// Dispatch performs a parsed command.  Unknown commands and forms a command
// does not support are ignored without a reply.
func (d *Dispatcher) Dispatch(msg Message) {
	switch msg.Command {
	case CmdCheck:
		d.send(Greeting)

	case CmdPWM:
		if msg.IsQuery {
			d.send(FormatDuty(d.motors.Duty()))
		} else if msg.IsSet && msg.Args != "" {
			if l, r, ok := ParseDutyPair(msg.Args); ok {
				d.motors.SetDuty(l, r)
			} else {
				log.Debug().Str("args", msg.Args).Msg("Ignoring malformed PWM arguments")
			}
		}

	case CmdIRVal:
		if msg.IsQuery {
			d.send(FormatInts(d.sensors.IRValues()...))
		}

	case CmdENVal:
		if msg.IsQuery {
			d.send(formatTicks(d.sensors.Odometry()))
		}

	case CmdENVel:
		if msg.IsQuery {
			d.send(formatVelocities(d.sensors.Odometry()))
		}

	case CmdUpdate:
		if msg.IsSet && msg.Args != "" {
			if l, r, ok := ParseDutyPair(msg.Args); ok {
				d.motors.SetDuty(l, r)
			}
			snap := d.sensors.Odometry()
			d.send(FormatList(
				strconvTicks(snap, wheel.Left), strconvTicks(snap, wheel.Right),
				FormatFloat(snap.Velocity[wheel.Left]), FormatFloat(snap.Velocity[wheel.Right]),
			))
		}

	case CmdEnd:
		log.Info().Msg("Quitting QuickBot run loop")
		if d.shutdown != nil {
			d.shutdown()
		}

	default:
		log.Debug().Str("cmd", msg.Command).Msg("Ignoring unknown command")
	}
}

func (d *Dispatcher) send(reply string) {
	log.Debug().Str("reply", reply).Msg("Sending")
	if err := d.replier.Reply([]byte(reply)); err != nil {
		log.Warn().Err(err).Msg("Failed to send reply")
	}
}

func strconvTicks(snap odometry.Snapshot, side wheel.Side) string {
	return strconv.FormatInt(snap.Ticks[side], 10)
}

func formatTicks(snap odometry.Snapshot) string {
	return FormatList(strconvTicks(snap, wheel.Left), strconvTicks(snap, wheel.Right))
}

func formatVelocities(snap odometry.Snapshot) string {
	return FormatList(FormatFloat(snap.Velocity[wheel.Left]), FormatFloat(snap.Velocity[wheel.Right]))
}

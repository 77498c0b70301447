// Package link carries protocol datagrams between the robot and the base
// station.  Receiving never blocks: a background reader queues incoming data
// and the control loop polls with TryReceive.
package link

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	KindUDP    = "udp"
	KindSerial = "serial"

	// MaxDatagram is the largest read accepted in one go.
	MaxDatagram = 1024

	queueLen = 16

	readErrorBackoff = 100 * time.Millisecond
)

var ErrClosed = errors.New("link closed")

type Config struct {
	Kind         string `yaml:"kind" env:"KIND"`
	BaseAddr     string `yaml:"base_addr" env:"BASE_ADDR"`
	RobotAddr    string `yaml:"robot_addr" env:"ROBOT_ADDR"`
	SerialDevice string `yaml:"serial_device" env:"SERIAL_DEVICE"`
	Baud         int    `yaml:"baud" env:"BAUD"`
}

func DefaultConfig() Config {
	return Config{
		Kind:         KindUDP,
		BaseAddr:     "192.168.7.1:5005",
		RobotAddr:    "192.168.7.2:5005",
		SerialDevice: "/dev/ttyO1",
		Baud:         115200,
	}
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindUDP:
		if c.BaseAddr == "" || c.RobotAddr == "" {
			return errors.New("udp link needs both base_addr and robot_addr")
		}
	case KindSerial:
		if c.SerialDevice == "" {
			return errors.New("serial link needs serial_device")
		}
		if c.Baud <= 0 {
			return errors.Errorf("invalid baud rate %d", c.Baud)
		}
	default:
		return errors.Errorf("unknown link kind %q", c.Kind)
	}
	return nil
}

type Interface interface {
	// TryReceive returns the next queued datagram, if any, without blocking.
	TryReceive() ([]byte, bool)
	// Reply sends msg to the base station.
	Reply(msg []byte) error
	Close() error
}

func Open(cfg Config) (Interface, error) {
	switch cfg.Kind {
	case KindSerial:
		return OpenSerial(cfg.SerialDevice, cfg.Baud)
	default:
		return OpenUDP(cfg.RobotAddr, cfg.BaseAddr)
	}
}

// receiver is the shared half of each link: a reader goroutine pushing
// copies of what it reads into a bounded queue.
type receiver struct {
	datagrams chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newReceiver() receiver {
	return receiver{
		datagrams: make(chan []byte, queueLen),
		done:      make(chan struct{}),
	}
}

// start runs read in a loop until the receiver is closed.  Zero-length reads
// are not queued.
func (r *receiver) start(name string, read func([]byte) (int, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.datagrams)
		buf := make([]byte, MaxDatagram)
		for {
			n, err := read(buf)
			if r.closed() {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("link", name).Msg("Read failed")
				time.Sleep(readErrorBackoff)
				continue
			}
			if n == 0 {
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case r.datagrams <- data:
			case <-r.done:
				return
			}
		}
	}()
}

func (r *receiver) TryReceive() ([]byte, bool) {
	select {
	case data, ok := <-r.datagrams:
		return data, ok
	default:
		return nil, false
	}
}

func (r *receiver) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// shutdown marks the receiver closed, runs release (which must unblock the
// reader) and waits for the reader to exit.  Only the first call has any
// effect.
func (r *receiver) shutdown(release func() error) (err error) {
	r.closeOnce.Do(func() {
		close(r.done)
		err = release()
		r.wg.Wait()
	})
	return
}

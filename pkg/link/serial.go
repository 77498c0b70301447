package link

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// readTimeout bounds each blocking read so the reader notices Close.
const readTimeout = 100 * time.Millisecond

// Serial carries frames over a serial line, for tethered bench work.  Frames
// may arrive split across reads; the protocol buffer reassembles them.
type Serial struct {
	receiver
	port serial.Port
}

var _ Interface = (*Serial)(nil)

func OpenSerial(device string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", device)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "failed to set serial read timeout")
	}
	log.Info().Str("device", device).Int("baud", baud).Msg("Opened serial link")

	s := &Serial{
		receiver: newReceiver(),
		port:     port,
	}
	s.start("serial", port.Read)
	return s, nil
}

func (s *Serial) Reply(msg []byte) error {
	if s.closed() {
		return ErrClosed
	}
	_, err := s.port.Write(msg)
	return errors.Wrap(err, "serial write failed")
}

func (s *Serial) Close() error {
	return s.shutdown(s.port.Close)
}

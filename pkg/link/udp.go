package link

import (
	"net"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type UDP struct {
	receiver
	conn *net.UDPConn
	base *net.UDPAddr
}

var _ Interface = (*UDP)(nil)

// OpenUDP binds robotAddr and addresses every reply to baseAddr.
func OpenUDP(robotAddr, baseAddr string) (*UDP, error) {
	local, err := net.ResolveUDPAddr("udp", robotAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "bad robot address %q", robotAddr)
	}
	base, err := net.ResolveUDPAddr("udp", baseAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "bad base station address %q", baseAddr)
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind %s", robotAddr)
	}
	log.Info().Str("addr", conn.LocalAddr().String()).Str("base", base.String()).Msg("Listening for base station")

	u := &UDP{
		receiver: newReceiver(),
		conn:     conn,
		base:     base,
	}
	u.start("udp", func(buf []byte) (int, error) {
		n, _, err := conn.ReadFromUDP(buf)
		return n, err
	})
	return u, nil
}

func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDP) Reply(msg []byte) error {
	if u.closed() {
		return ErrClosed
	}
	_, err := u.conn.WriteToUDP(msg, u.base)
	return errors.Wrap(err, "udp send failed")
}

func (u *UDP) Close() error {
	return u.shutdown(u.conn.Close)
}

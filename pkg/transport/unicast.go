package transport

import (
	"fmt"
	"net"
)

// UnicastSender sends single UDP datagrams from a fixed local address.
// Every Send opens its own socket so concurrent callers never share state.
type UnicastSender struct {
	LocalAddr  string
	RemoteAddr string
}

// Send transmits payload as one datagram. Bind and send failures are
// returned to the caller.
func (s UnicastSender) Send(payload []byte) error {
	raddr, err := net.ResolveUDPAddr("udp4", s.RemoteAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve command address %s: %w", s.RemoteAddr, err)
	}

	var laddr *net.UDPAddr
	if s.LocalAddr != "" {
		laddr, err = net.ResolveUDPAddr("udp4", s.LocalAddr)
		if err != nil {
			return fmt.Errorf("failed to resolve local address %s: %w", s.LocalAddr, err)
		}
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.LocalAddr, err)
	}
	defer conn.Close()

	n, err := conn.WriteToUDP(payload, raddr)
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", s.RemoteAddr, err)
	}
	if n != len(payload) {
		return fmt.Errorf("short write to %s: %d of %d bytes", s.RemoteAddr, n, len(payload))
	}
	return nil
}

package transport

import (
	"bytes"
	"fmt"
	"net"
)

// DefaultBufferSize fits any VSSS datagram; FIRASim frames stay well under
// a single Ethernet MTU.
const DefaultBufferSize = 65536

// MulticastChannel receives datagrams from a joined UDP multicast group.
type MulticastChannel struct {
	conn  *net.UDPConn
	group string
	buf   []byte
}

var _ Channel = (*MulticastChannel)(nil)

// ListenMulticast joins group (host:port) on the named interface, or on the
// system default interface when iface is empty.
func ListenMulticast(group, iface string, bufSize int) (*MulticastChannel, error) {
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve multicast group %s: %w", group, err)
	}
	if !addr.IP.IsMulticast() {
		return nil, fmt.Errorf("address %s is not a multicast group", group)
	}

	var ifi *net.Interface
	if iface != "" {
		ifi, err = net.InterfaceByName(iface)
		if err != nil {
			return nil, fmt.Errorf("failed to get interface %s: %w", iface, err)
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", ifi, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to join multicast group %s: %w", group, err)
	}

	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	// Best effort; the kernel may clamp the requested size.
	_ = conn.SetReadBuffer(bufSize)

	return &MulticastChannel{
		conn:  conn,
		group: group,
		buf:   make([]byte, bufSize),
	}, nil
}

// Receive blocks for the next datagram. Not safe for concurrent use; each
// channel has exactly one listener.
func (c *MulticastChannel) Receive() ([]byte, error) {
	n, _, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(c.buf[:n]), nil
}

func (c *MulticastChannel) Close() error {
	return c.conn.Close()
}

func (c *MulticastChannel) Addr() string {
	return c.group
}

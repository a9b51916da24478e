// Package transport provides the datagram sources feeding the listeners and
// the outbound senders used by the command path and the relay.
package transport

import (
	"net"
)

// ErrClosed is returned by Receive once the channel has been closed.
var ErrClosed = net.ErrClosed

// Channel is a blocking source of datagrams. Receive returns one complete
// payload per call. Close unblocks a pending Receive, which then returns an
// error wrapping ErrClosed.
type Channel interface {
	Receive() ([]byte, error)
	Close() error
	Addr() string
}

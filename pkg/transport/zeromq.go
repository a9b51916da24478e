package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fbot-vsss/client/pkg/log"
	"github.com/pebbe/zmq4"
)

// ErrPublisherClosed is returned when publishing on a closed publisher.
var ErrPublisherClosed = errors.New("zeromq publisher is closed")

// pollInterval bounds how long a blocked Receive takes to notice Close.
const pollInterval = 250 * time.Millisecond

// ZeroMQChannel is a SUB socket used as an alternate feed source, e.g. a
// bridge that republishes the vision multicast over TCP. The payload is the
// last frame of each multipart message, so both bare and topic-prefixed
// publishers work.
type ZeroMQChannel struct {
	// mu is held by Receive for the duration of the call. zmq sockets are not
	// thread safe, so whichever side holds mu closes the socket.
	mu       sync.Mutex
	socket   *zmq4.Socket
	closed   atomic.Bool
	endpoint string
}

var _ Channel = (*ZeroMQChannel)(nil)

// DialZeroMQ connects a SUB socket to endpoint and subscribes to topic
// (empty subscribes to everything).
func DialZeroMQ(endpoint, topic string) (*ZeroMQChannel, error) {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.SetRcvtimeo(pollInterval); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", topic, err)
	}
	if err := socket.Connect(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	return &ZeroMQChannel{socket: socket, endpoint: endpoint}, nil
}

func (c *ZeroMQChannel) Receive() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.closed.Load() {
			c.closeSocket()
			return nil, fmt.Errorf("zeromq channel %s: %w", c.endpoint, ErrClosed)
		}

		parts, err := c.socket.RecvMessageBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			return nil, fmt.Errorf("zeromq receive on %s: %w", c.endpoint, err)
		}
		if len(parts) == 0 {
			continue
		}
		return parts[len(parts)-1], nil
	}
}

// Close marks the channel closed. A Receive in progress returns within
// pollInterval and releases the socket.
func (c *ZeroMQChannel) Close() error {
	c.closed.Store(true)
	if c.mu.TryLock() {
		c.closeSocket()
		c.mu.Unlock()
	}
	return nil
}

func (c *ZeroMQChannel) Addr() string {
	return c.endpoint
}

func (c *ZeroMQChannel) closeSocket() {
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
}

// ZeroMQPublisher is a bound PUB socket sending (topic, payload) pairs.
type ZeroMQPublisher struct {
	socket   *zmq4.Socket
	endpoint string
	logger   log.Logger
	running  bool
	mu       sync.Mutex
}

// NewZeroMQPublisher binds a PUB socket on endpoint.
func NewZeroMQPublisher(endpoint string, logger log.Logger) (*ZeroMQPublisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.Bind(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", endpoint, err)
	}

	logger.Infof("ZeroMQ publisher bound on %s", endpoint)

	return &ZeroMQPublisher{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger,
		running:  true,
	}, nil
}

// Name identifies the publisher in relay logs.
func (p *ZeroMQPublisher) Name() string {
	return "zeromq:" + p.endpoint
}

// PublishMessage sends the topic frame followed by the payload frame.
func (p *ZeroMQPublisher) PublishMessage(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPublisherClosed
	}

	if _, err := p.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := p.socket.SendBytes(payload, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (p *ZeroMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	if p.socket != nil {
		err := p.socket.Close()
		p.socket = nil
		return err
	}
	return nil
}

// Package feed runs the receive loop that keeps a snapshot store current
// with the newest decoded datagram of one feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/snapshot"
	"github.com/fbot-vsss/client/pkg/transport"
)

// ErrAlreadyRunning is returned by Run when the listener is already started.
var ErrAlreadyRunning = errors.New("feed listener already running")

// Decoder turns one datagram into a snapshot value.
type Decoder[T any] func([]byte) (T, error)

// Stats are the listener counters.
type Stats struct {
	Feed          string    `json:"feed"`
	Addr          string    `json:"addr"`
	Received      uint64    `json:"received"`
	Updates       uint64    `json:"updates"`
	DecodeErrors  uint64    `json:"decode_errors"`
	ReceiveErrors uint64    `json:"receive_errors"`
	Ignored       uint64    `json:"ignored"`
	LastUpdate    time.Time `json:"last_update"`
}

// Listener receives datagrams from a channel, decodes them and replaces the
// store value with each successfully decoded one. Datagrams that fail to
// decode are dropped; there is no queue and no retry, the next datagram
// simply wins.
type Listener[T any] struct {
	name    string
	channel transport.Channel
	store   *snapshot.Store[T]
	decode  Decoder[T]
	logger  log.Logger
	metrics *metrics

	accept   func(T) bool
	onUpdate func(T)
	backoff  Backoff

	running       atomic.Bool
	received      atomic.Uint64
	updates       atomic.Uint64
	decodeErrors  atomic.Uint64
	receiveErrors atomic.Uint64
	ignored       atomic.Uint64
	lastUpdate    atomic.Int64
}

// NewListener wires a channel to a store. The listener owns the channel and
// closes it when Run returns.
func NewListener[T any](name string, ch transport.Channel, store *snapshot.Store[T], decode Decoder[T], logger log.Logger) (*Listener[T], error) {
	m, err := newMetrics(name)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", name, err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Listener[T]{
		name:    name,
		channel: ch,
		store:   store,
		decode:  decode,
		logger:  logger.WithField("feed", name),
		metrics: m,
		backoff: DefaultBackoff(),
	}, nil
}

// SetAcceptFunc installs a filter run after decoding. Values it rejects are
// counted as ignored and leave the store untouched. Call before Run.
func (l *Listener[T]) SetAcceptFunc(fn func(T) bool) {
	l.accept = fn
}

// SetUpdateHook installs a callback invoked on the listener goroutine after
// every store replacement. The hook must not modify its argument and should
// return quickly. Call before Run.
func (l *Listener[T]) SetUpdateHook(fn func(T)) {
	l.onUpdate = fn
}

// SetBackoff replaces the receive failure retry schedule. Call before Run.
func (l *Listener[T]) SetBackoff(b Backoff) {
	l.backoff = b
}

// Name returns the feed name.
func (l *Listener[T]) Name() string {
	return l.name
}

// Run processes datagrams until ctx is cancelled or the channel is closed
// by someone else. Cancelling ctx closes the channel to unblock a pending
// receive; Run then returns ctx.Err().
func (l *Listener[T]) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	stop := context.AfterFunc(ctx, func() {
		_ = l.channel.Close()
	})
	defer func() {
		stop()
		_ = l.channel.Close()
	}()

	l.logger.Infof("Feed listener started on %s", l.channel.Addr())

	attempt := 0
	for {
		payload, err := l.channel.Receive()
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Infof("Feed listener stopped")
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				l.logger.Warnf("Feed channel closed, listener exiting")
				return fmt.Errorf("feed %s: %w", l.name, err)
			}

			l.receiveErrors.Add(1)
			l.metrics.add(l.metrics.receiveErrors)
			attempt++
			delay := l.backoff.Delay(attempt)
			l.logger.Errorf("Receive failed (attempt %d), retrying in %v: %v", attempt, delay, err)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			continue
		}
		attempt = 0

		l.received.Add(1)
		l.metrics.add(l.metrics.received)

		v, err := l.decode(payload)
		if err != nil {
			l.decodeErrors.Add(1)
			l.metrics.add(l.metrics.decodeErrors)
			l.logger.Debugf("Dropping %d byte datagram: %v", len(payload), err)
			continue
		}

		if l.accept != nil && !l.accept(v) {
			l.ignored.Add(1)
			continue
		}

		l.store.Replace(v)
		l.updates.Add(1)
		l.lastUpdate.Store(time.Now().UnixNano())

		if l.onUpdate != nil {
			l.onUpdate(v)
		}
	}
}

// Stats returns a snapshot of the listener counters.
func (l *Listener[T]) Stats() Stats {
	s := Stats{
		Feed:          l.name,
		Addr:          l.channel.Addr(),
		Received:      l.received.Load(),
		Updates:       l.updates.Load(),
		DecodeErrors:  l.decodeErrors.Load(),
		ReceiveErrors: l.receiveErrors.Load(),
		Ignored:       l.ignored.Load(),
	}
	if ns := l.lastUpdate.Load(); ns != 0 {
		s.LastUpdate = time.Unix(0, ns)
	}
	return s
}

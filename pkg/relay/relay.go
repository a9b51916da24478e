// Package relay republishes fresh feed snapshots to external subscribers.
//
// Each snapshot is encoded (JSON or protobuf), wrapped in a flatbuffers
// Envelope and handed to every configured sink under the feed name as
// topic. Publishing is throttled per feed; snapshots arriving inside the
// throttle interval are skipped, never queued.
//
// Feed listeners hand snapshots over with Offer. A single worker started by
// Start drains a one-slot inbox per feed, so a slow sink never delays a
// store update: the newest snapshot overwrites an unsent one.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	fbrelay "github.com/fbot-vsss/client/pkg/flatbuffers/vsss/relay"
	"github.com/fbot-vsss/client/pkg/log"
)

// Sink is a topic based publisher.
type Sink interface {
	Name() string
	PublishMessage(topic string, payload []byte) error
	Close() error
}

// ErrAlreadyStarted is returned by Start when the worker is already running.
var ErrAlreadyStarted = errors.New("relay already started")

// Stats are the relay counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Throttled   uint64 `json:"throttled"`
	Overwritten uint64 `json:"overwritten"` // offered snapshots replaced before they were sent
	SinkErrors  uint64 `json:"sink_errors"`
}

// Relay fans snapshots out to its sinks.
type Relay struct {
	logger      log.Logger
	sinks       []Sink
	interval    time.Duration
	contentType fbrelay.ContentType
	now         func() time.Time

	mu   sync.Mutex
	last map[string]time.Time

	inboxMu   sync.Mutex
	inboxCond *sync.Cond
	inbox     map[string]any // newest unsent snapshot per feed
	order     []string       // feeds with an unsent snapshot, oldest first
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	published   atomic.Uint64
	throttled   atomic.Uint64
	overwritten atomic.Uint64
	sinkErrors  atomic.Uint64
}

// New creates a relay. throttleHz bounds publishes per feed per second;
// zero disables throttling.
func New(logger log.Logger, throttleHz int, contentType fbrelay.ContentType, sinks ...Sink) *Relay {
	var interval time.Duration
	if throttleHz > 0 {
		interval = time.Second / time.Duration(throttleHz)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Relay{
		logger:      logger.WithField("component", "relay"),
		sinks:       sinks,
		interval:    interval,
		contentType: contentType,
		now:         time.Now,
		last:        make(map[string]time.Time),
		inbox:       make(map[string]any),
	}
	r.inboxCond = sync.NewCond(&r.inboxMu)
	return r
}

// Start launches the worker that publishes offered snapshots. It runs until
// ctx is done or Close is called.
func (r *Relay) Start(ctx context.Context) error {
	r.inboxMu.Lock()
	defer r.inboxMu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	// Wake the loop when ctx ends, whoever cancels it.
	stop := context.AfterFunc(ctx, func() {
		r.inboxMu.Lock()
		r.inboxCond.Broadcast()
		r.inboxMu.Unlock()
	})
	defer stop()

	for {
		r.inboxMu.Lock()
		for len(r.order) == 0 && ctx.Err() == nil {
			r.inboxCond.Wait()
		}
		if ctx.Err() != nil {
			r.inboxMu.Unlock()
			return
		}
		feeds, values := r.order, r.inbox
		r.order, r.inbox = nil, make(map[string]any, len(values))
		r.inboxMu.Unlock()

		for _, feed := range feeds {
			r.send(feed, values[feed])
		}
	}
}

// Offer leaves v in the feed's inbox for the worker and returns at once. A
// snapshot still waiting there is overwritten. It reports false when the
// feed is throttled.
func (r *Relay) Offer(feed string, v any) bool {
	if !r.allow(feed) {
		r.throttled.Add(1)
		return false
	}

	r.inboxMu.Lock()
	defer r.inboxMu.Unlock()

	if _, pending := r.inbox[feed]; pending {
		r.overwritten.Add(1)
	} else {
		r.order = append(r.order, feed)
	}
	r.inbox[feed] = v
	r.inboxCond.Signal()
	return true
}

// ParseContentType maps a config value ("json", "protobuf") to the envelope
// content type. Empty means JSON.
func ParseContentType(s string) (fbrelay.ContentType, error) {
	if s == "" {
		return fbrelay.ContentTypeJSON, nil
	}
	ct, ok := fbrelay.EnumValuesContentType[strings.ToUpper(s)]
	if !ok {
		return 0, fmt.Errorf("unknown relay content type %q", s)
	}
	return ct, nil
}

// Hook adapts the relay to a feed listener update hook. The hook only
// offers the snapshot; the worker started by Start publishes it.
func Hook[T any](r *Relay, feed string) func(T) {
	return func(v T) {
		r.Offer(feed, v)
	}
}

type protoMarshaler interface {
	Marshal() []byte
}

// Publish sends v to every sink on the calling goroutine unless the feed
// published within the throttle interval. It reports whether the snapshot
// was sent.
func (r *Relay) Publish(feed string, v any) bool {
	if !r.allow(feed) {
		r.throttled.Add(1)
		return false
	}
	return r.send(feed, v)
}

// send encodes v and hands it to every sink. Sink failures are logged and
// counted; they never stop the other sinks.
func (r *Relay) send(feed string, v any) bool {
	payload, ct, err := r.encode(v)
	if err != nil {
		r.logger.Errorf("Failed to encode %s snapshot: %v", feed, err)
		return false
	}

	envelope := EncodeEnvelope(Message{
		Feed:        feed,
		Timestamp:   r.now(),
		ContentType: ct,
		Payload:     payload,
	})

	for _, sink := range r.sinks {
		if err := sink.PublishMessage(feed, envelope); err != nil {
			r.sinkErrors.Add(1)
			r.logger.Warnf("Sink %s failed to publish %s: %v", sink.Name(), feed, err)
		}
	}
	r.published.Add(1)
	return true
}

func (r *Relay) allow(feed string) bool {
	if r.interval == 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.last[feed]; ok && now.Sub(last) < r.interval {
		return false
	}
	r.last[feed] = now
	return true
}

func (r *Relay) encode(v any) ([]byte, fbrelay.ContentType, error) {
	if r.contentType == fbrelay.ContentTypePROTOBUF {
		if m, ok := v.(protoMarshaler); ok {
			return m.Marshal(), fbrelay.ContentTypePROTOBUF, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, 0, err
	}
	return b, fbrelay.ContentTypeJSON, nil
}

// Stats returns the relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Published:   r.published.Load(),
		Throttled:   r.throttled.Load(),
		Overwritten: r.overwritten.Load(),
		SinkErrors:  r.sinkErrors.Load(),
	}
}

// Close stops the worker, dropping unsent snapshots, then closes every sink.
func (r *Relay) Close() error {
	r.inboxMu.Lock()
	cancel := r.cancel
	r.inboxMu.Unlock()
	if cancel != nil {
		cancel()
		r.wg.Wait()
	}

	var errs []string
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", sink.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing relay sinks: %s", strings.Join(errs, "; "))
	}
	return nil
}

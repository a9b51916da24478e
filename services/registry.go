package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fbot-vsss/client/domain/referee"
	"github.com/fbot-vsss/client/domain/sslvision"
	"github.com/fbot-vsss/client/domain/vision"
	"github.com/fbot-vsss/client/pkg/config"
	"github.com/fbot-vsss/client/pkg/feed"
	customlog "github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/fbot-vsss/client/pkg/relay"
	"github.com/fbot-vsss/client/pkg/snapshot"
	"github.com/fbot-vsss/client/pkg/transport"
)

// ErrFeedDisabled is returned when a facade is requested for a feed the
// configuration disables.
var ErrFeedDisabled = errors.New("feed is disabled")

// ChannelFactory opens the receive channel described by a feed mapping.
type ChannelFactory func(m config.FeedMapping) (transport.Channel, error)

// DefaultChannelFactory joins the multicast group or dials the ZeroMQ
// endpoint, depending on the mapping source.
func DefaultChannelFactory(m config.FeedMapping) (transport.Channel, error) {
	switch m.Source {
	case config.SourceMulticast, "":
		return transport.ListenMulticast(m.Address, m.Interface, m.BufferSize)
	case config.SourceZeroMQ:
		return transport.DialZeroMQ(m.Address, m.Topic)
	}
	return nil, fmt.Errorf("unknown feed source %q", m.Source)
}

// Option configures a Registry.
type Option func(*Registry)

// WithChannelFactory replaces how feed channels are opened.
func WithChannelFactory(f ChannelFactory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithRelay offers every store update to rl. The caller starts rl.
func WithRelay(rl *relay.Relay) Option {
	return func(r *Registry) { r.relay = rl }
}

// WithCommandSender replaces the unicast command sender of the vision feed.
func WithCommandSender(s vision.Sender) Option {
	return func(r *Registry) { r.sender = s }
}

type lazyFeed[S any] struct {
	once    sync.Once
	service S
	err     error
}

// Registry is the application context owning every feed. Each feed is
// built on first use: its channel is opened, its store and facade created
// and its listener started, exactly once. All listeners stop when the
// registry context is cancelled.
type Registry struct {
	ctx     context.Context
	cfg     *config.Config
	logger  customlog.Logger
	factory ChannelFactory
	relay   *relay.Relay
	sender  vision.Sender

	vision    lazyFeed[*vision.VisionService]
	referee   lazyFeed[*referee.RefereeService]
	sslVision lazyFeed[*sslvision.SSLVisionService]

	mu    sync.Mutex
	stats map[string]func() feed.Stats
	wg    sync.WaitGroup
}

// NewRegistry creates a registry bound to ctx. No feed is started until it
// is first requested or StartAll is called.
func NewRegistry(ctx context.Context, cfg *config.Config, logger customlog.Logger, opts ...Option) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}

	r := &Registry{
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger,
		factory: DefaultChannelFactory,
		stats:   make(map[string]func() feed.Stats),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sender == nil {
		r.sender = transport.UnicastSender{
			LocalAddr:  cfg.Command.LocalAddress,
			RemoteAddr: cfg.Command.Address,
		}
	}
	return r
}

// Vision returns the vision/simulation facade, starting the feed on first call.
func (r *Registry) Vision() (*vision.VisionService, error) {
	r.vision.once.Do(func() {
		store, start, err := buildFeed(r, config.FeedVision,
			protocol.Environment{}, protocol.Environment.Clone, protocol.UnmarshalEnvironment, nil)
		if err != nil {
			r.vision.err = err
			return
		}
		r.vision.service = vision.NewVisionService(store, r.sender, r.logger)
		start()
	})
	return r.vision.service, r.vision.err
}

// Referee returns the referee facade, starting the feed on first call.
func (r *Registry) Referee() (*referee.RefereeService, error) {
	r.referee.once.Do(func() {
		store, start, err := buildFeed(r, config.FeedReferee,
			protocol.RefereeCommand{}, protocol.RefereeCommand.Clone, protocol.UnmarshalRefereeCommand, nil)
		if err != nil {
			r.referee.err = err
			return
		}
		r.referee.service = referee.NewRefereeService(store)
		start()
	})
	return r.referee.service, r.referee.err
}

// SSLVision returns the secondary vision facade, starting the feed on first
// call. Geometry-only packets never replace the stored detection.
func (r *Registry) SSLVision() (*sslvision.SSLVisionService, error) {
	r.sslVision.once.Do(func() {
		store, start, err := buildFeed(r, config.FeedSSLVision,
			protocol.WrapperPacket{}, protocol.WrapperPacket.Clone, protocol.UnmarshalWrapperPacket, sslvision.HasDetection)
		if err != nil {
			r.sslVision.err = err
			return
		}
		r.sslVision.service = sslvision.NewSSLVisionService(store)
		start()
	})
	return r.sslVision.service, r.sslVision.err
}

// StartAll starts every enabled feed and returns the joined startup errors.
func (r *Registry) StartAll() error {
	var errs []error
	for _, m := range r.cfg.EnabledFeeds() {
		var err error
		switch m.Kind {
		case config.FeedVision:
			_, err = r.Vision()
		case config.FeedReferee:
			_, err = r.Referee()
		case config.FeedSSLVision:
			_, err = r.SSLVision()
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the listener counters of every started feed.
func (r *Registry) Stats() []feed.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []feed.Stats
	for _, kind := range []string{config.FeedVision, config.FeedReferee, config.FeedSSLVision} {
		if fn, ok := r.stats[kind]; ok {
			out = append(out, fn())
		}
	}
	return out
}

// Wait blocks until every started listener has returned. Call after
// cancelling the registry context.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// buildFeed opens the channel and creates the store and listener for kind.
// The returned start function launches the listener goroutine.
func buildFeed[T any](r *Registry, kind string, initial T, clone func(T) T, decode feed.Decoder[T], accept func(T) bool) (*snapshot.Store[T], func(), error) {
	m, _ := r.cfg.GetFeedMapping(kind)
	if !m.IsEnabled() {
		return nil, nil, fmt.Errorf("%s: %w", kind, ErrFeedDisabled)
	}

	ch, err := r.factory(m)
	if err != nil {
		return nil, nil, fmt.Errorf("starting %s feed on %s: %w", kind, m.Address, err)
	}

	store := snapshot.New(initial, clone)
	l, err := feed.NewListener(kind, ch, store, decode, r.logger)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	l.SetBackoff(feed.Backoff{
		Initial: r.cfg.ReceiveRetry.Initial(),
		Max:     r.cfg.ReceiveRetry.Max(),
	})
	if accept != nil {
		l.SetAcceptFunc(accept)
	}
	if r.relay != nil {
		l.SetUpdateHook(relay.Hook[T](r.relay, kind))
	}

	r.mu.Lock()
	r.stats[kind] = l.Stats
	r.mu.Unlock()

	start := func() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := l.Run(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Errorf("Feed %s listener exited: %v", kind, err)
			}
		}()
	}
	return store, start, nil
}

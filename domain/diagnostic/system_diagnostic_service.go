package diagnostic

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/fbot-vsss/client/pkg/feed"
	"github.com/fbot-vsss/client/pkg/relay"
	"github.com/gofiber/fiber/v2"
)

// FeedStatsSource reports the counters of every running feed listener.
type FeedStatsSource interface {
	Stats() []feed.Stats
}

// RelayStatsSource reports the snapshot relay counters.
type RelayStatsSource interface {
	Stats() relay.Stats
}

// SystemMetrics represents client diagnostics information
type SystemMetrics struct {
	Timestamp  time.Time    `json:"timestamp"`
	Uptime     string       `json:"uptime"`
	Goroutines int          `json:"goroutines"`
	Feeds      []FeedStatus `json:"feeds"`
	Relay      *relay.Stats `json:"relay,omitempty"`
}

// FeedStatus is the diagnostic view of one feed listener.
type FeedStatus struct {
	feed.Stats
	Status string `json:"status"` // "waiting", "active", "idle"
}

// DiagnosticService collects client diagnostics
type DiagnosticService struct {
	mu      sync.RWMutex
	metrics SystemMetrics

	feeds     FeedStatsSource
	relay     RelayStatsSource
	started   time.Time
	idleAfter time.Duration
	now       func() time.Time
}

// NewDiagnosticService creates a new diagnostic service instance. A feed that
// has not updated for idleAfter is reported as idle.
func NewDiagnosticService(feeds FeedStatsSource, idleAfter time.Duration) *DiagnosticService {
	s := &DiagnosticService{
		feeds:     feeds,
		idleAfter: idleAfter,
		now:       time.Now,
	}
	s.started = s.now()
	s.metrics = SystemMetrics{Timestamp: s.started, Feeds: []FeedStatus{}}
	return s
}

// SetRelay adds relay counters to the collected metrics.
func (s *DiagnosticService) SetRelay(r RelayStatsSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relay = r
}

// GetMetricsHandler handles API requests for client metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

// UpdateMetrics collects fresh metrics from the feed and relay sources.
func (s *DiagnosticService) UpdateMetrics() {
	now := s.now()

	s.mu.RLock()
	rl := s.relay
	s.mu.RUnlock()

	metrics := SystemMetrics{
		Timestamp:  now,
		Uptime:     now.Sub(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Feeds:      []FeedStatus{},
	}
	for _, st := range s.feeds.Stats() {
		metrics.Feeds = append(metrics.Feeds, FeedStatus{Stats: st, Status: s.feedStatus(st, now)})
	}
	if rl != nil {
		rs := rl.Stats()
		metrics.Relay = &rs
	}

	s.mu.Lock()
	s.metrics = metrics
	s.mu.Unlock()
}

func (s *DiagnosticService) feedStatus(st feed.Stats, now time.Time) string {
	switch {
	case st.LastUpdate.IsZero():
		return "waiting"
	case s.idleAfter > 0 && now.Sub(st.LastUpdate) > s.idleAfter:
		return "idle"
	}
	return "active"
}

// GetMetrics returns the last collected metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.metrics
}

// Run refreshes the metrics every interval until ctx is done.
func (s *DiagnosticService) Run(ctx context.Context, interval time.Duration) {
	s.UpdateMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.UpdateMetrics()
		}
	}
}

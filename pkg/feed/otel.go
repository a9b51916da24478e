package feed

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fbot-vsss/client/pkg/feed"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics are the per-listener OTel instruments. The global meter provider
// is a no-op unless the process installs one.
type metrics struct {
	attrs         metric.MeasurementOption
	received      metric.Int64Counter
	decodeErrors  metric.Int64Counter
	receiveErrors metric.Int64Counter
}

func newMetrics(feed string) (*metrics, error) {
	m := meter()
	out := &metrics{
		attrs: metric.WithAttributes(attribute.String("feed", feed)),
	}

	var err error
	out.received, err = m.Int64Counter(
		"feed.datagrams.received",
		metric.WithDescription("Total datagrams received from the feed channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}

	out.decodeErrors, err = m.Int64Counter(
		"feed.decode.errors",
		metric.WithDescription("Total datagrams dropped because they failed to decode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decode error counter: %w", err)
	}

	out.receiveErrors, err = m.Int64Counter(
		"feed.receive.errors",
		metric.WithDescription("Total failed receive calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating receive error counter: %w", err)
	}

	return out, nil
}

func (m *metrics) add(c metric.Int64Counter) {
	c.Add(context.Background(), 1, m.attrs)
}

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	fbrelay "github.com/fbot-vsss/client/pkg/flatbuffers/vsss/relay"
	"github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) PublishMessage(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, published{topic: topic, payload: payload})
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) messages() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.msgs...)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := Message{
		Feed:        "vision",
		Timestamp:   time.Unix(1700000000, 123),
		ContentType: fbrelay.ContentTypePROTOBUF,
		Payload:     []byte{1, 2, 3, 4},
	}

	out, err := DecodeEnvelope(EncodeEnvelope(in))
	require.NoError(t, err)
	assert.Equal(t, in.Feed, out.Feed)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.ContentType, out.ContentType)
	assert.Equal(t, in.Payload, out.Payload)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte{1})
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	_, err = DecodeEnvelope([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestPublishJSON(t *testing.T) {
	sink := &recordingSink{}
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON, sink)

	cmd := protocol.RefereeCommand{Foul: 6, TeamColor: protocol.ColorYellow}
	require.True(t, r.Publish("referee", cmd))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "referee", msgs[0].topic)

	m, err := DecodeEnvelope(msgs[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "referee", m.Feed)
	assert.Equal(t, fbrelay.ContentTypeJSON, m.ContentType)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(m.Payload, &body))
	assert.Equal(t, float64(6), body["foul"])
	assert.Equal(t, "YELLOW", body["teamcolor"])
}

func TestPublishProtobuf(t *testing.T) {
	sink := &recordingSink{}
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypePROTOBUF, sink)

	env := protocol.Environment{Step: 5, Frame: protocol.Frame{Ball: protocol.Ball{X: 0.25}}}
	require.True(t, r.Publish("vision", env))

	m, err := DecodeEnvelope(sink.messages()[0].payload)
	require.NoError(t, err)
	assert.Equal(t, fbrelay.ContentTypePROTOBUF, m.ContentType)

	decoded, err := protocol.UnmarshalEnvironment(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	// Values without a wire encoding fall back to JSON.
	require.True(t, r.Publish("stats", map[string]int{"n": 1}))
	m, err = DecodeEnvelope(sink.messages()[1].payload)
	require.NoError(t, err)
	assert.Equal(t, fbrelay.ContentTypeJSON, m.ContentType)
}

func TestPublishThrottlesPerFeed(t *testing.T) {
	sink := &recordingSink{}
	r := New(log.NewNopLogger(), 10, fbrelay.ContentTypeJSON, sink)

	now := time.Unix(100, 0)
	r.now = func() time.Time { return now }

	assert.True(t, r.Publish("vision", 1))
	assert.False(t, r.Publish("vision", 2))
	// Other feeds have their own window.
	assert.True(t, r.Publish("referee", 1))

	now = now.Add(50 * time.Millisecond)
	assert.False(t, r.Publish("vision", 3))

	now = now.Add(50 * time.Millisecond)
	assert.True(t, r.Publish("vision", 4))

	assert.Len(t, sink.messages(), 3)
	assert.Equal(t, Stats{Published: 3, Throttled: 2}, r.Stats())
}

func TestPublishContinuesPastFailingSink(t *testing.T) {
	bad := &recordingSink{err: errors.New("broker down")}
	good := &recordingSink{}
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON, bad, good)

	assert.True(t, r.Publish("vision", protocol.Environment{}))
	assert.Len(t, good.messages(), 1)
	assert.Equal(t, uint64(1), r.Stats().SinkErrors)
}

func startRelay(t *testing.T, r *Relay) {
	t.Helper()
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
}

func TestHookPublishes(t *testing.T) {
	sink := &recordingSink{}
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON, sink)
	startRelay(t, r)

	hook := Hook[protocol.RefereeCommand](r, "referee")
	hook(protocol.RefereeCommand{})

	require.Eventually(t, func() bool { return len(sink.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "referee", sink.messages()[0].topic)
}

// blockingSink holds every publish until release is closed.
type blockingSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (s *blockingSink) PublishMessage(topic string, payload []byte) error {
	s.entered <- struct{}{}
	<-s.release
	return s.recordingSink.PublishMessage(topic, payload)
}

func TestHookDoesNotWaitForSlowSink(t *testing.T) {
	sink := newBlockingSink()
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON, sink)
	startRelay(t, r)
	hook := Hook[int](r, "vision")

	hook(1)
	<-sink.entered

	// The sink is stuck on the first snapshot; further updates return at once.
	done := make(chan struct{})
	go func() {
		for i := 2; i <= 50; i++ {
			hook(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update hook blocked on a slow sink")
	}

	// Only the newest of the waiting snapshots is sent.
	close(sink.release)
	require.Eventually(t, func() bool { return r.Stats().Published == 2 }, time.Second, time.Millisecond)

	msgs := sink.messages()
	require.Len(t, msgs, 2)
	m, err := DecodeEnvelope(msgs[1].payload)
	require.NoError(t, err)
	assert.Equal(t, "50", string(m.Payload))
	assert.Equal(t, uint64(48), r.Stats().Overwritten)
}

func TestOfferKeepsOneSlotPerFeed(t *testing.T) {
	sink := &recordingSink{}
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON, sink)

	// Nothing is sent before the worker starts.
	assert.True(t, r.Offer("vision", 1))
	assert.True(t, r.Offer("referee", 2))
	assert.True(t, r.Offer("vision", 3))
	assert.Empty(t, sink.messages())

	startRelay(t, r)
	require.Eventually(t, func() bool { return r.Stats().Published == 2 }, time.Second, time.Millisecond)

	msgs := sink.messages()
	assert.Equal(t, "vision", msgs[0].topic)
	assert.Equal(t, "referee", msgs[1].topic)
	m, err := DecodeEnvelope(msgs[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "3", string(m.Payload))
	assert.Equal(t, Stats{Published: 2, Overwritten: 1}, r.Stats())
}

func TestOfferIsThrottled(t *testing.T) {
	r := New(log.NewNopLogger(), 10, fbrelay.ContentTypeJSON)
	now := time.Unix(100, 0)
	r.now = func() time.Time { return now }

	assert.True(t, r.Offer("vision", 1))
	assert.False(t, r.Offer("vision", 2))
	assert.Equal(t, uint64(1), r.Stats().Throttled)
}

func TestRelayStartTwiceAndClose(t *testing.T) {
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON)
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyStarted)

	done := make(chan error, 1)
	go func() { done <- r.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not stop the worker")
	}
}

func TestRelayStopsWhenContextEnds(t *testing.T) {
	r := New(log.NewNopLogger(), 0, fbrelay.ContentTypeJSON)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	stopped := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

func TestParseContentType(t *testing.T) {
	ct, err := ParseContentType("")
	require.NoError(t, err)
	assert.Equal(t, fbrelay.ContentTypeJSON, ct)

	ct, err = ParseContentType("protobuf")
	require.NoError(t, err)
	assert.Equal(t, fbrelay.ContentTypePROTOBUF, ct)

	_, err = ParseContentType("xml")
	assert.Error(t, err)
}

// fakeToken completes immediately with err.
type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t fakeToken) Error() error { return t.err }

// fakeClient records publishes; every other method panics through the
// nil embedded interface.
type fakeClient struct {
	mqtt.Client
	topics []string
	qos    []byte
	err    error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.qos = append(c.qos, qos)
	return fakeToken{err: c.err}
}

func TestMQTTSinkPublish(t *testing.T) {
	client := &fakeClient{}
	sink := &MQTTSink{client: client, broker: "tcp://test:1883", prefix: "vsss", qos: 1, timeout: time.Second, logger: log.NewNopLogger()}

	require.NoError(t, sink.PublishMessage("vision", []byte("x")))
	assert.Equal(t, []string{"vsss/vision"}, client.topics)
	assert.Equal(t, []byte{1}, client.qos)
	assert.Equal(t, "mqtt:tcp://test:1883", sink.Name())

	client.err = errors.New("not connected")
	assert.Error(t, sink.PublishMessage("vision", []byte("x")))
}

package relay

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fbot-vsss/client/pkg/config"
	"github.com/fbot-vsss/client/pkg/log"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish within the sink timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

const defaultPublishTimeout = 250 * time.Millisecond

// MQTTSink publishes envelopes to <topic_prefix>/<feed>.
type MQTTSink struct {
	client  mqtt.Client
	broker  string
	prefix  string
	qos     byte
	timeout time.Duration
	logger  log.Logger
}

// NewMQTTSink connects to the configured broker. Reconnection after the
// initial connect is handled by the client.
func NewMQTTSink(cfg config.MQTTRelayConfig, logger log.Logger) (*MQTTSink, error) {
	s := &MQTTSink{
		broker:  cfg.Broker,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: defaultPublishTimeout,
		logger:  logger.WithField("sink", "mqtt"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(1 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	s.client = client
	return s, nil
}

func (s *MQTTSink) onConnect(mqtt.Client) {
	s.logger.Infof("Connected to MQTT broker %s", s.broker)
}

func (s *MQTTSink) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Warnf("MQTT connection lost, reconnecting: %v", err)
}

func (s *MQTTSink) Name() string {
	return "mqtt:" + s.broker
}

// PublishMessage publishes payload on prefix/topic without retaining it.
func (s *MQTTSink) PublishMessage(topic string, payload []byte) error {
	if s.prefix != "" {
		topic = s.prefix + "/" + topic
	}

	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
		s.logger.Infof("MQTT client disconnected")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Feed kinds.
const (
	FeedVision    = "vision"
	FeedReferee   = "referee"
	FeedSSLVision = "ssl_vision"
)

// Feed sources.
const (
	SourceMulticast = "multicast"
	SourceZeroMQ    = "zeromq"
)

// Built-in endpoints used when the feed configuration leaves them empty.
const (
	DefaultVisionAddress    = "224.0.0.1:10002"
	DefaultRefereeAddress   = "224.5.23.2:10003"
	DefaultSSLVisionAddress = "224.5.23.2:10006"
	DefaultCommandAddress   = "127.0.0.1:20011"

	// Commands leave from this fixed port; set "0.0.0.0:0" for an ephemeral one.
	DefaultCommandLocalAddress = "0.0.0.0:20012"
)

// Config represents the feed configuration (feeds.yaml)
type Config struct {
	Version      string         `yaml:"version" json:"version"`
	ConfigID     string         `yaml:"config_id" json:"config_id"`
	LastUpdated  string         `yaml:"lastUpdated" json:"lastUpdated"`
	Feeds        []FeedMapping  `yaml:"feeds" json:"feeds" validate:"dive"`
	Defaults     DefaultsConfig `yaml:"defaults" json:"defaults"`
	Command      CommandConfig  `yaml:"command" json:"command"`
	ReceiveRetry RetryConfig    `yaml:"receive_retry" json:"receive_retry"`
	Relay        RelayConfig    `yaml:"relay" json:"relay"`
}

// FeedMapping describes where one feed is received from
type FeedMapping struct {
	Kind       string `yaml:"kind" json:"kind" validate:"required,oneof=vision referee ssl_vision"`
	Source     string `yaml:"source" json:"source" validate:"omitempty,oneof=multicast zeromq"`
	Address    string `yaml:"address" json:"address"`
	Interface  string `yaml:"interface,omitempty" json:"interface,omitempty"`
	Topic      string `yaml:"topic,omitempty" json:"topic,omitempty"`
	BufferSize int    `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty" validate:"gte=0"`
	Enabled    *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the feed should be started.
func (m FeedMapping) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// DefaultsConfig holds default values for feed mappings
type DefaultsConfig struct {
	Source     string `yaml:"source" json:"source" validate:"omitempty,oneof=multicast zeromq"`
	Interface  string `yaml:"interface" json:"interface"`
	BufferSize int    `yaml:"buffer_size" json:"buffer_size" validate:"gte=0"`
}

// CommandConfig holds the outbound command endpoint
type CommandConfig struct {
	Address      string `yaml:"address" json:"address"`
	LocalAddress string `yaml:"local_address" json:"local_address"`
}

// RetryConfig holds the receive failure backoff, in milliseconds
type RetryConfig struct {
	InitialMs int `yaml:"initial_ms" json:"initial_ms" validate:"gte=0"`
	MaxMs     int `yaml:"max_ms" json:"max_ms" validate:"gte=0"`
}

// Initial returns the first retry delay.
func (r RetryConfig) Initial() time.Duration {
	return time.Duration(r.InitialMs) * time.Millisecond
}

// Max returns the retry delay cap.
func (r RetryConfig) Max() time.Duration {
	return time.Duration(r.MaxMs) * time.Millisecond
}

// RelayConfig controls republishing of fresh snapshots
type RelayConfig struct {
	ThrottleHz int `yaml:"throttle_hz" json:"throttle_hz" validate:"gte=0"`
	// ContentType selects the envelope payload encoding: json or protobuf.
	ContentType string            `yaml:"content_type" json:"content_type" validate:"omitempty,oneof=json protobuf"`
	ZeroMQ      ZeroMQRelayConfig `yaml:"zeromq" json:"zeromq"`
	MQTT        MQTTRelayConfig   `yaml:"mqtt" json:"mqtt"`
}

// Enabled reports whether any relay sink is configured.
func (r RelayConfig) Enabled() bool {
	return r.ZeroMQ.Enabled || r.MQTT.Enabled
}

// ZeroMQRelayConfig holds the PUB socket settings
type ZeroMQRelayConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	PublishAddress string `yaml:"publish_address" json:"publish_address" validate:"required_if=Enabled true"`
}

// MQTTRelayConfig holds the MQTT sink settings
type MQTTRelayConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker" validate:"required_if=Enabled true"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
	QoS         byte   `yaml:"qos" json:"qos" validate:"lte=2"`
}

// Default returns the configuration used when no feeds file exists: vision
// and referee on their standard groups, secondary vision disabled.
func Default() *Config {
	disabled := false
	cfg := &Config{
		Version: "1.0",
		Feeds: []FeedMapping{
			{Kind: FeedVision},
			{Kind: FeedReferee},
			{Kind: FeedSSLVision, Enabled: &disabled},
		},
	}
	cfg.applyGlobalDefaults()
	return cfg
}

// LoadConfig loads the feed configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.applyGlobalDefaults()
	return &config, nil
}

// Validate checks field constraints and rejects duplicate feed kinds.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid feed config: %w", err)
	}

	seen := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if seen[f.Kind] {
			return fmt.Errorf("invalid feed config: feed %q configured twice", f.Kind)
		}
		seen[f.Kind] = true

		if m := applyDefaults(f, c.Defaults); m.Source == SourceZeroMQ && m.Address == "" {
			return fmt.Errorf("invalid feed config: feed %q uses zeromq without an address", f.Kind)
		}
	}
	return nil
}

func (c *Config) applyGlobalDefaults() {
	if c.Defaults.Source == "" {
		c.Defaults.Source = SourceMulticast
	}
	if c.Command.Address == "" {
		c.Command.Address = DefaultCommandAddress
	}
	if c.Command.LocalAddress == "" {
		c.Command.LocalAddress = DefaultCommandLocalAddress
	}
	if c.ReceiveRetry.InitialMs == 0 {
		c.ReceiveRetry.InitialMs = 100
	}
	if c.ReceiveRetry.MaxMs == 0 {
		c.ReceiveRetry.MaxMs = 5000
	}
	if c.Relay.MQTT.TopicPrefix == "" {
		c.Relay.MQTT.TopicPrefix = "vsss"
	}
	if c.Relay.MQTT.ClientID == "" {
		c.Relay.MQTT.ClientID = "vsss-client"
	}
}

// GetFeedMapping returns the mapping for kind with defaults applied. The
// second result is false when the feed is not listed; the returned mapping
// then carries the built-in defaults, enabled for vision and referee only.
func (c *Config) GetFeedMapping(kind string) (FeedMapping, bool) {
	for _, mapping := range c.Feeds {
		if mapping.Kind == kind {
			return applyDefaults(mapping, c.Defaults), true
		}
	}

	mapping := FeedMapping{Kind: kind}
	if kind == FeedSSLVision {
		disabled := false
		mapping.Enabled = &disabled
	}
	return applyDefaults(mapping, c.Defaults), false
}

// EnabledFeeds returns every configured, enabled feed with defaults applied.
func (c *Config) EnabledFeeds() []FeedMapping {
	var result []FeedMapping
	for _, kind := range []string{FeedVision, FeedReferee, FeedSSLVision} {
		if m, _ := c.GetFeedMapping(kind); m.IsEnabled() {
			result = append(result, m)
		}
	}
	return result
}

// applyDefaults merges default values into a feed mapping where fields are empty
func applyDefaults(mapping FeedMapping, defaults DefaultsConfig) FeedMapping {
	result := mapping

	if result.Source == "" {
		result.Source = defaults.Source
	}
	if result.Interface == "" {
		result.Interface = defaults.Interface
	}
	if result.BufferSize == 0 {
		result.BufferSize = defaults.BufferSize
	}

	if result.Address == "" && result.Source == SourceMulticast {
		switch result.Kind {
		case FeedVision:
			result.Address = DefaultVisionAddress
		case FeedReferee:
			result.Address = DefaultRefereeAddress
		case FeedSSLVision:
			result.Address = DefaultSSLVisionAddress
		}
	}

	return result
}

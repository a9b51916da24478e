package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/fbot-vsss/client/pkg/config"
	customlog "github.com/fbot-vsss/client/pkg/log"
	"gopkg.in/yaml.v3"
)

// ErrNoConfigFile is returned when the running configuration was not
// loaded from a file.
var ErrNoConfigFile = errors.New("feed configuration was not loaded from a file")

// FeedConfigService exposes the feed configuration the process runs with.
// It is read-only: feeds are bound at startup, so changes need a restart.
type FeedConfigService interface {
	GetCurrentConfig() *config.Config
	GetEffectiveConfigYAML() ([]byte, error)
	GetSourceConfigYAML() ([]byte, error)
}

// feedConfigService implements the FeedConfigService interface.
type feedConfigService struct {
	cfg    *config.Config
	path   string
	logger customlog.Logger
}

// NewFeedConfigService creates a new FeedConfigService. path is the file cfg
// was loaded from, empty when the built-in defaults are used.
func NewFeedConfigService(cfg *config.Config, path string, logger customlog.Logger) (FeedConfigService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("feed configuration cannot be nil")
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &feedConfigService{cfg: cfg, path: path, logger: logger}, nil
}

// GetCurrentConfig returns the running configuration. Callers must not
// modify it.
func (s *feedConfigService) GetCurrentConfig() *config.Config {
	return s.cfg
}

// GetEffectiveConfigYAML renders the running configuration with every
// default applied, including feeds the file does not list.
func (s *feedConfigService) GetEffectiveConfigYAML() ([]byte, error) {
	effective := *s.cfg
	effective.Feeds = nil
	for _, kind := range []string{config.FeedVision, config.FeedReferee, config.FeedSSLVision} {
		m, _ := s.cfg.GetFeedMapping(kind)
		enabled := m.IsEnabled()
		m.Enabled = &enabled
		effective.Feeds = append(effective.Feeds, m)
	}

	data, err := yaml.Marshal(&effective)
	if err != nil {
		return nil, fmt.Errorf("error rendering feed configuration: %w", err)
	}
	return data, nil
}

// GetSourceConfigYAML reads the configuration file from disk and returns its
// raw content.
func (s *feedConfigService) GetSourceConfigYAML() ([]byte, error) {
	if s.path == "" {
		return nil, ErrNoConfigFile
	}

	s.logger.Debugf("Reading raw feed configuration YAML from: %s", s.path)
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Errorf("Error reading feed config file '%s': %v", s.path, err)
		return nil, fmt.Errorf("error reading feed config file '%s': %w", s.path, err)
	}
	return data, nil
}

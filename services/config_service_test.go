package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fbot-vsss/client/pkg/config"
	"github.com/fbot-vsss/client/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sourceYAML = `version: "1.0"
feeds:
  - kind: vision
    address: "224.0.0.1:10020"
`

func TestFeedConfigServiceEffectiveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sourceYAML), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	svc, err := NewFeedConfigService(cfg, path, log.NewNopLogger())
	require.NoError(t, err)
	assert.Same(t, cfg, svc.GetCurrentConfig())

	data, err := svc.GetEffectiveConfigYAML()
	require.NoError(t, err)

	var effective config.Config
	require.NoError(t, yaml.Unmarshal(data, &effective))
	require.Len(t, effective.Feeds, 3)

	assert.Equal(t, "224.0.0.1:10020", effective.Feeds[0].Address)
	assert.True(t, effective.Feeds[0].IsEnabled())
	assert.Equal(t, config.DefaultRefereeAddress, effective.Feeds[1].Address)
	assert.True(t, effective.Feeds[1].IsEnabled())
	assert.Equal(t, config.FeedSSLVision, effective.Feeds[2].Kind)
	require.NotNil(t, effective.Feeds[2].Enabled)
	assert.False(t, *effective.Feeds[2].Enabled)

	// Rendering does not touch the running configuration.
	assert.Len(t, cfg.Feeds, 1)
}

func TestFeedConfigServiceSourceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sourceYAML), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	svc, err := NewFeedConfigService(cfg, path, nil)
	require.NoError(t, err)

	data, err := svc.GetSourceConfigYAML()
	require.NoError(t, err)
	assert.Equal(t, sourceYAML, string(data))

	require.NoError(t, os.Remove(path))
	_, err = svc.GetSourceConfigYAML()
	assert.Error(t, err)
}

func TestFeedConfigServiceWithoutFile(t *testing.T) {
	svc, err := NewFeedConfigService(config.Default(), "", nil)
	require.NoError(t, err)

	_, err = svc.GetSourceConfigYAML()
	assert.ErrorIs(t, err, ErrNoConfigFile)

	_, err = NewFeedConfigService(nil, "", nil)
	assert.Error(t, err)
}

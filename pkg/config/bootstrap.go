package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the process configuration read at startup.
const BootstrapFilename = "client_config.yaml"

// EnvPrefix prefixes every environment override, e.g. VSSS_LOGGING_LEVEL.
const EnvPrefix = "vsss"

// BootstrapConfig holds the initial configuration loaded from client_config.yaml
type BootstrapConfig struct {
	Logging LoggingConfig         `yaml:"logging" envconfig:"logging"`
	Server  BootstrapServerConfig `yaml:"server" envconfig:"server"`
	Data    DataConfig            `yaml:"data" envconfig:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogPath string `yaml:"log_path,omitempty" envconfig:"log_path"`
	// StatusIntervalMs enables a periodic ball/foul status line; 0 disables it.
	StatusIntervalMs int `yaml:"status_interval_ms" envconfig:"status_interval_ms" validate:"gte=0"`
}

// BootstrapServerConfig holds the HTTP API settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port" envconfig:"http_port" validate:"gte=1,lte=65535"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory           string `yaml:"directory" envconfig:"directory" validate:"required"`
	FeedsConfigFilename string `yaml:"feeds_config_file" envconfig:"feeds_config_file" validate:"required"`
}

// FeedsConfigPath returns the path of the feed configuration file.
func (b *BootstrapConfig) FeedsConfigPath() string {
	return filepath.Join(b.Data.Directory, b.Data.FeedsConfigFilename)
}

// LoadBootstrapConfig loads configDir/client_config.yaml, applies VSSS_*
// environment overrides (a .env file in the working directory is loaded
// first when present) and validates the result.
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	// Missing .env is not an error; existing variables are never overridden.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	if bootstrapCfg.Logging.Level == "" {
		bootstrapCfg.Logging.Level = "info"
	}

	if err := validator.New().Struct(&bootstrapCfg); err != nil {
		return nil, fmt.Errorf("invalid bootstrap config '%s': %w", bootstrapConfigPath, err)
	}

	return &bootstrapCfg, nil
}

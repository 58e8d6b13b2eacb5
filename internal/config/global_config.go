package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/logger"
	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 1 << 20

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	LogConfig             logger.FileLogConfig  `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	StorageConfig         StorageConfig         `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	FetchConfig           FetchConfig           `json:"fetch_config,omitempty" yaml:"fetch_config,omitempty"`
	HeadlessBrowserConfig HeadlessBrowserConfig `json:"headless_browser_config,omitempty" yaml:"headless_browser_config,omitempty"`
	SchedulerConfig       SchedulerConfig       `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	NotificationConfig    NotificationConfig    `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	CommandConfig         CommandConfig         `json:"command_config,omitempty" yaml:"command_config,omitempty"`
	MetricsConfig         MetricsConfig         `json:"metrics_config,omitempty" yaml:"metrics_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:             logger.NewDefaultFileLogConfig(),
		StorageConfig:         NewDefaultStorageConfig(),
		FetchConfig:           NewDefaultFetchConfig(),
		HeadlessBrowserConfig: NewDefaultHeadlessBrowserConfig(),
		SchedulerConfig:       NewDefaultSchedulerConfig(),
		NotificationConfig:    NewDefaultNotificationConfig(),
		CommandConfig:         NewDefaultCommandConfig(),
		MetricsConfig:         NewDefaultMetricsConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// Missing sections keep their defaults. YAML is used for .yaml/.yml, JSON otherwise.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		if providedPath != "" {
			return nil, errorwrapper.NewValidationError("config_file", providedPath, "config file does not exist")
		}
		return cfg, nil
	}

	data, err := readConfigFile(filePath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	return cfg, nil
}

func readConfigFile(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, errorwrapper.NewValidationError("config_file", filePath, "config file too large")
	}
	return os.ReadFile(filePath)
}

func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	if isYAMLFile(filepath.Ext(filePath)) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errorwrapper.WrapError(err, "failed to unmarshal YAML from '"+filePath+"'")
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errorwrapper.WrapError(err, "failed to unmarshal JSON from '"+filePath+"'")
	}
	return nil
}

func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}

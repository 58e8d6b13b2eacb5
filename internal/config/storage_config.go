package config

// StorageConfig defines configuration for the durable store
type StorageConfig struct {
	SQLitePath              string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" validate:"required"`
	BusyTimeoutMs           int    `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty" validate:"omitempty,min=0"`
	DispatchHistoryKeepDays int    `json:"dispatch_history_keep_days,omitempty" yaml:"dispatch_history_keep_days,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SQLitePath:              DefaultStorageSQLitePath,
		BusyTimeoutMs:           DefaultStorageBusyTimeoutMs,
		DispatchHistoryKeepDays: DefaultDispatchHistoryKeepDays,
	}
}

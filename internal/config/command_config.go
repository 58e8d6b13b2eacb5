package config

// CommandConfig defines the Discord slash command surface
type CommandConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	GuildID           string `json:"guild_id,omitempty" yaml:"guild_id,omitempty"`
	AdminRequired     bool   `json:"admin_required" yaml:"admin_required"`
	CommandsPerMinute int    `json:"commands_per_minute,omitempty" yaml:"commands_per_minute,omitempty" validate:"omitempty,min=1"`
	UnregisterOnExit  bool   `json:"unregister_on_exit" yaml:"unregister_on_exit"`
}

// NewDefaultCommandConfig creates default command configuration
func NewDefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Enabled:           true,
		AdminRequired:     true,
		CommandsPerMinute: DefaultCommandsPerMinute,
	}
}

// MetricsConfig defines the Prometheus listener
type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// NewDefaultMetricsConfig creates default metrics configuration
func NewDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: DefaultMetricsListenAddr,
	}
}

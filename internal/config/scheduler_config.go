package config

import "time"

// SchedulerConfig defines configuration for recurring monitor jobs
type SchedulerConfig struct {
	StopTimeoutSecs int  `json:"stop_timeout_secs,omitempty" yaml:"stop_timeout_secs,omitempty" validate:"omitempty,min=1"`
	TickTimeoutSecs int  `json:"tick_timeout_secs,omitempty" yaml:"tick_timeout_secs,omitempty" validate:"omitempty,min=1"`
	RunOnRegister   bool `json:"run_on_register" yaml:"run_on_register"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		StopTimeoutSecs: DefaultSchedulerStopTimeoutSecs,
		TickTimeoutSecs: DefaultSchedulerTickTimeoutSecs,
		RunOnRegister:   false,
	}
}

// StopTimeout bounds how long shutdown waits for running ticks
func (sc SchedulerConfig) StopTimeout() time.Duration {
	return time.Duration(sc.StopTimeoutSecs) * time.Second
}

// TickTimeout bounds one full tick
func (sc SchedulerConfig) TickTimeout() time.Duration {
	return time.Duration(sc.TickTimeoutSecs) * time.Second
}

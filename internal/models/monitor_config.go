package models

import (
	"fmt"
	"time"
)

const (
	// MinIntervalMillis is the lower bound for a monitor's recurrence period.
	MinIntervalMillis int64 = 60_000
	// MaxIntervalMillis is the upper bound for a monitor's recurrence period (24h).
	MaxIntervalMillis int64 = 86_400_000
	// DefaultIntervalMillis is used when a registration omits the interval.
	DefaultIntervalMillis int64 = 5 * 60_000
)

// MonitorKey identifies a MonitorConfig across all tenants.
type MonitorKey struct {
	TenantID string
	Name     string
}

// String returns the key in "tenant/name" form, used for logging and lock maps.
func (k MonitorKey) String() string {
	return fmt.Sprintf("%s/%s", k.TenantID, k.Name)
}

// MonitorConfig is one monitoring configuration owned by a tenant.
// It never holds live resources; scheduled jobs are owned by the scheduler.
type MonitorConfig struct {
	TenantID        string    `json:"tenant_id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Destination     string    `json:"destination"`
	IntervalMillis  int64     `json:"interval_millis"`
	LastFingerprint *string   `json:"last_fingerprint,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Generation identifies one registration lineage in memory. It is not persisted.
	Generation uint64 `json:"-"`
}

// Key returns the (tenant, name) key of the config.
func (c MonitorConfig) Key() MonitorKey {
	return MonitorKey{TenantID: c.TenantID, Name: c.Name}
}

// Interval returns the recurrence period as a duration.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

// Schedulable reports whether the config has everything a job needs.
func (c MonitorConfig) Schedulable() bool {
	return c.URL != "" && c.Destination != ""
}

// Clone returns a deep copy, so callers never share the fingerprint pointer.
func (c MonitorConfig) Clone() MonitorConfig {
	out := c
	if c.LastFingerprint != nil {
		fp := *c.LastFingerprint
		out.LastFingerprint = &fp
	}
	return out
}

// ClampIntervalMillis applies the default and the [min, max] bounds.
func ClampIntervalMillis(ms int64) int64 {
	switch {
	case ms <= 0:
		return DefaultIntervalMillis
	case ms < MinIntervalMillis:
		return MinIntervalMillis
	case ms > MaxIntervalMillis:
		return MaxIntervalMillis
	default:
		return ms
	}
}

package models

import "context"

// MonitorStore is the durable store for monitor configurations.
// Implementations must give read-your-writes consistency per key.
type MonitorStore interface {
	List(ctx context.Context) ([]MonitorConfig, error)
	Upsert(ctx context.Context, cfg MonitorConfig) error
	Delete(ctx context.Context, tenantID, name string) error
	UpdateFingerprint(ctx context.Context, tenantID, name, fingerprint string) error
}

// DispatchHistoryStore records notification decisions.
type DispatchHistoryStore interface {
	RecordDispatch(ctx context.Context, rec DispatchRecord) error
	RecentDispatches(ctx context.Context, tenantID, name string, limit int) ([]DispatchRecord, error)
}

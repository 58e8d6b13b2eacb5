package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists monitor configurations and dispatch history in one SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

var (
	_ models.MonitorStore         = (*SQLiteStore)(nil)
	_ models.DispatchHistoryStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (creating if needed) the database file and ensures the schema.
func NewSQLiteStore(path string, busyTimeoutMs int, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "SQLiteStore").Logger()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory for %s: %w", path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	// One connection serializes writers and keeps read-your-writes trivial.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized and schema verified")
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		s.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// List returns every persisted monitor ordered by tenant then name.
func (s *SQLiteStore) List(ctx context.Context) ([]models.MonitorConfig, error) {
	const query = `SELECT tenant_id, name, url, destination, interval_ms, last_fingerprint, created_at, updated_at
		FROM monitors ORDER BY tenant_id, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to query monitors")
	}
	defer rows.Close()

	var out []models.MonitorConfig
	for rows.Next() {
		var (
			cfg                  models.MonitorConfig
			fingerprint          sql.NullString
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&cfg.TenantID, &cfg.Name, &cfg.URL, &cfg.Destination, &cfg.IntervalMillis, &fingerprint, &createdAt, &updatedAt); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to scan monitor row")
		}
		if fingerprint.Valid {
			fp := fingerprint.String
			cfg.LastFingerprint = &fp
		}
		cfg.CreatedAt = time.UnixMilli(createdAt).UTC()
		cfg.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to iterate monitor rows")
	}
	return out, nil
}

// Upsert inserts or fully replaces the record for (tenant, name).
func (s *SQLiteStore) Upsert(ctx context.Context, cfg models.MonitorConfig) error {
	const query = `INSERT INTO monitors (tenant_id, name, url, destination, interval_ms, last_fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			url = excluded.url,
			destination = excluded.destination,
			interval_ms = excluded.interval_ms,
			last_fingerprint = excluded.last_fingerprint,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		cfg.TenantID, cfg.Name, cfg.URL, cfg.Destination, cfg.IntervalMillis,
		nullString(cfg.LastFingerprint), cfg.CreatedAt.UnixMilli(), cfg.UpdatedAt.UnixMilli())
	if err != nil {
		s.logger.Error().Err(err).Str("tenant_id", cfg.TenantID).Str("name", cfg.Name).Msg("Failed to upsert monitor")
		return errorwrapper.WrapError(err, "failed to upsert monitor")
	}
	return nil
}

// Delete removes the record for (tenant, name). Deleting a missing record is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM monitors WHERE tenant_id = ? AND name = ?`, tenantID, name); err != nil {
		return errorwrapper.WrapError(err, "failed to delete monitor")
	}
	return nil
}

// UpdateFingerprint sets last_fingerprint. It returns models.ErrNotFound when the record is gone.
func (s *SQLiteStore) UpdateFingerprint(ctx context.Context, tenantID, name, fingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET last_fingerprint = ?, updated_at = ? WHERE tenant_id = ? AND name = ?`,
		fingerprint, time.Now().UnixMilli(), tenantID, name)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to update fingerprint")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errorwrapper.WrapError(err, "failed to read affected rows")
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

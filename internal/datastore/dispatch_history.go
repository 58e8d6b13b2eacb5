package datastore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/models"
)

// RecordDispatch appends one dispatch decision.
func (s *SQLiteStore) RecordDispatch(ctx context.Context, rec models.DispatchRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const query = `INSERT INTO dispatch_history (tenant_id, name, fingerprint, title, link, image, delivered, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.TenantID, rec.Name, rec.Fingerprint, rec.Title, rec.Link,
		sql.NullString{String: rec.Image, Valid: rec.Image != ""},
		rec.Delivered,
		sql.NullString{String: rec.Error, Valid: rec.Error != ""},
		createdAt.UnixMilli())
	if err != nil {
		return errorwrapper.WrapError(err, "failed to record dispatch")
	}
	return nil
}

// RecentDispatches returns up to limit records for one monitor, newest first.
func (s *SQLiteStore) RecentDispatches(ctx context.Context, tenantID, name string, limit int) ([]models.DispatchRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `SELECT id, tenant_id, name, fingerprint, title, link, image, delivered, error, created_at
		FROM dispatch_history WHERE tenant_id = ? AND name = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, tenantID, name, limit)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to query dispatch history")
	}
	defer rows.Close()

	var out []models.DispatchRecord
	for rows.Next() {
		var (
			rec          models.DispatchRecord
			image, errTx sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Name, &rec.Fingerprint, &rec.Title, &rec.Link, &image, &rec.Delivered, &errTx, &createdAt); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to scan dispatch row")
		}
		rec.Image = image.String
		rec.Error = errTx.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneDispatches deletes history older than the cutoff and returns the number removed.
func (s *SQLiteStore) PruneDispatches(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_history WHERE created_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, errorwrapper.WrapError(err, "failed to prune dispatch history")
	}
	return res.RowsAffected()
}

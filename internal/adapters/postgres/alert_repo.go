package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// AlertRepo implements ports.AlertRepository.
type AlertRepo struct {
	db *DB
}

func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// InsertBatch stores alert events using pgx.Batch.
func (r *AlertRepo) InsertBatch(ctx context.Context, events []domain.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO alert_events (id, device_id, point_name, distance_meters, direction, location, created_at)
			VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.DeviceID, e.PointName, e.DistanceMeters, e.Direction.String(),
			e.Location.Lon, e.Location.Lat, e.CreatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// ListRecent returns the newest alerts, optionally for a single device.
func (r *AlertRepo) ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.AlertEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, device_id, point_name, distance_meters, direction,
		       ST_Y(location::geometry), ST_X(location::geometry), created_at
		FROM alert_events
		WHERE $1 = '' OR device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.AlertEvent, 0)
	for rows.Next() {
		var e domain.AlertEvent
		var dir string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.PointName, &e.DistanceMeters, &dir,
			&e.Location.Lat, &e.Location.Lon, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Direction, err = domain.ParseDirection(dir); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

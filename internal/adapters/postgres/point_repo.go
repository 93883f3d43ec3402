package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// PointRepo implements ports.PointRepository with pgx. Rows are returned in
// id order, which is the order points were first inserted.
type PointRepo struct {
	db *DB
}

// NewPointRepo creates a new PointRepo.
func NewPointRepo(db *DB) *PointRepo {
	return &PointRepo{db: db}
}

const selectPoints = `
	SELECT name, label,
	       ST_Y(location::geometry) AS lat,
	       ST_X(location::geometry) AS lon
	FROM points_of_interest`

// List returns every point.
func (r *PointRepo) List(ctx context.Context) ([]domain.PointOfInterest, error) {
	rows, err := r.db.Pool.Query(ctx, selectPoints+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanPoints(rows)
}

// ListWithin returns points inside any of the bounding boxes.
func (r *PointRepo) ListWithin(ctx context.Context, bounds []domain.Bounds) ([]domain.PointOfInterest, error) {
	if len(bounds) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(bounds))
	args := make([]any, 0, 4*len(bounds))
	for i, b := range bounds {
		n := 4 * i
		clauses = append(clauses, fmt.Sprintf("location::geometry && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)", n+1, n+2, n+3, n+4))
		args = append(args, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	rows, err := r.db.Pool.Query(ctx, selectPoints+`
		WHERE `+strings.Join(clauses, " OR ")+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, err
	}
	return scanPoints(rows)
}

// GetByName returns a single point.
func (r *PointRepo) GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	var p domain.PointOfInterest
	err := r.db.Pool.QueryRow(ctx, selectPoints+` WHERE name = $1`, name).
		Scan(&p.Name, &p.Label, &p.Location.Lat, &p.Location.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPointNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or updates a point, keeping its original position in the order.
func (r *PointRepo) Upsert(ctx context.Context, p *domain.PointOfInterest) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO points_of_interest (name, label, location)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		ON CONFLICT (name) DO UPDATE
		SET label = EXCLUDED.label, location = EXCLUDED.location, updated_at = now()
	`, p.Name, p.Label, p.Location.Lon, p.Location.Lat)
	return err
}

// UpsertBatch upserts many points in one round trip.
func (r *PointRepo) UpsertBatch(ctx context.Context, points []domain.PointOfInterest) error {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO points_of_interest (name, label, location)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
			ON CONFLICT (name) DO UPDATE
			SET label = EXCLUDED.label, location = EXCLUDED.location, updated_at = now()
		`, p.Name, p.Label, p.Location.Lon, p.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Delete removes a point by name.
func (r *PointRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM points_of_interest WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPointNotFound, name)
	}
	return nil
}

func scanPoints(rows pgx.Rows) ([]domain.PointOfInterest, error) {
	defer rows.Close()

	var points []domain.PointOfInterest
	for rows.Next() {
		var p domain.PointOfInterest
		if err := rows.Scan(&p.Name, &p.Label, &p.Location.Lat, &p.Location.Lon); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

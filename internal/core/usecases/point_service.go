package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/ports"
	"github.com/samirrijal/schoolmaps/internal/pkg/geospatial"
	"github.com/samirrijal/schoolmaps/internal/pkg/metrics"
)

const pointsCacheKey = "points:all"

// PointService serves the points-of-interest configuration, either from a
// static set loaded at startup or from a repository.
type PointService struct {
	static domain.PointSet
	repo   ports.PointRepository
	cache  ports.CacheService
}

// NewStaticPointService serves a fixed, read-only set.
func NewStaticPointService(set domain.PointSet) *PointService {
	return &PointService{static: set}
}

// NewPointService serves points from repo, cached when cache is non-nil.
func NewPointService(repo ports.PointRepository, cache ports.CacheService) *PointService {
	return &PointService{repo: repo, cache: cache}
}

// ReadOnly reports whether the points come from static configuration.
func (s *PointService) ReadOnly() bool {
	return s.repo == nil
}

// Set returns every point of interest.
func (s *PointService) Set(ctx context.Context) (domain.PointSet, error) {
	if s.repo == nil {
		return s.static, nil
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, pointsCacheKey); err == nil {
			var set domain.PointSet
			if err := json.Unmarshal(data, &set); err == nil {
				metrics.CacheHits.WithLabelValues("points").Inc()
				return set, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("points").Inc()
	}

	points, err := s.repo.List(ctx)
	if err != nil {
		return domain.PointSet{}, fmt.Errorf("list points: %w", err)
	}
	set, err := domain.NewPointSet(points...)
	if err != nil {
		return domain.PointSet{}, err
	}

	// Points change rarely; 1 minute keeps admin edits visible quickly
	if s.cache != nil {
		if data, err := json.Marshal(set); err == nil {
			_ = s.cache.Set(ctx, pointsCacheKey, data, 60)
		}
	}
	return set, nil
}

// Near returns a superset of the points within radiusMeters of center.
// Static sets are returned whole.
func (s *PointService) Near(ctx context.Context, center domain.GeoPoint, radiusMeters float64) (domain.PointSet, error) {
	if s.repo == nil || s.cache != nil {
		return s.Set(ctx)
	}

	boxes := geospatial.BoundingBoxes(center.Lat, center.Lon, radiusMeters)
	bounds := make([]domain.Bounds, 0, len(boxes))
	for _, b := range boxes {
		bounds = append(bounds, domain.Bounds{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: b.MaxLon})
	}
	points, err := s.repo.ListWithin(ctx, bounds)
	if err != nil {
		return domain.PointSet{}, fmt.Errorf("list points within bounds: %w", err)
	}
	return domain.NewPointSet(points...)
}

// Get returns a single point by name.
func (s *PointService) Get(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	if s.repo == nil {
		p, ok := s.static.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrPointNotFound, name)
		}
		return &p, nil
	}

	return s.repo.GetByName(ctx, name)
}

// Upsert creates or replaces a point.
func (s *PointService) Upsert(ctx context.Context, p *domain.PointOfInterest) error {
	if s.repo == nil {
		return domain.ErrReadOnlyPoints
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert point %s: %w", p.Name, err)
	}
	s.invalidate(ctx)
	return nil
}

// Delete removes a point by name.
func (s *PointService) Delete(ctx context.Context, name string) error {
	if s.repo == nil {
		return domain.ErrReadOnlyPoints
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *PointService) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, pointsCacheKey)
	}
}

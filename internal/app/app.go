// Package app wires configuration to adapters and use cases for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkaadapter "github.com/samirrijal/schoolmaps/internal/adapters/kafka"
	"github.com/samirrijal/schoolmaps/internal/adapters/logsink"
	natsadapter "github.com/samirrijal/schoolmaps/internal/adapters/nats"
	"github.com/samirrijal/schoolmaps/internal/adapters/postgres"
	"github.com/samirrijal/schoolmaps/internal/adapters/valkey"
	"github.com/samirrijal/schoolmaps/internal/core/announce"
	"github.com/samirrijal/schoolmaps/internal/core/ports"
	"github.com/samirrijal/schoolmaps/internal/core/usecases"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
	"github.com/samirrijal/schoolmaps/internal/pkg/metrics"
	"github.com/samirrijal/schoolmaps/internal/pkg/telemetry"
)

// App holds the connected infrastructure and the services built on it.
// Optional infrastructure that could not be reached is nil.
type App struct {
	Config    *config.Config
	DB        *postgres.DB
	Cache     *valkey.Cache
	Publisher *natsadapter.Publisher
	Points    *usecases.PointService
	Proximity *usecases.ProximityService

	closers []func()
}

// New connects the infrastructure named by cfg and builds the services.
// The database is required only when points come from it; Valkey is optional.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	// Database
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := postgres.New(dbCtx, cfg.Database.DSN())
	cancel()
	switch {
	case err == nil:
		a.DB = db
		a.closers = append(a.closers, db.Close)
	case cfg.Proximity.Source == config.SourceDatabase:
		a.Close()
		return nil, fmt.Errorf("database: %w", err)
	default:
		slog.Warn("database unavailable, alert history disabled", "error", err)
	}

	// Valkey
	client, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, caching and session latch disabled", "error", err)
	} else {
		a.Cache = valkey.NewCache(client)
		a.closers = append(a.closers, a.Cache.Close)
	}

	// Points of interest
	switch cfg.Proximity.Source {
	case config.SourceDatabase:
		var cache ports.CacheService
		if a.Cache != nil {
			cache = a.Cache
		}
		a.Points = usecases.NewPointService(postgres.NewPointRepo(a.DB), cache)
	default:
		set, err := cfg.PointSet()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("points: %w", err)
		}
		a.Points = usecases.NewStaticPointService(set)
	}

	// Announcement sink
	announcer, err := a.announcer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	renderer, err := announce.NewRenderer(cfg.Proximity.Language, cfg.Proximity.SpeechRate)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := usecases.ProximityDeps{
		Announcer: announcer,
		Sink:      cfg.Proximity.Sink,
	}
	if a.DB != nil {
		deps.Alerts = postgres.NewAlertRepo(a.DB)
	}
	if a.Cache != nil {
		deps.Locations = valkey.NewLocationStore(a.Cache, cfg.Valkey.LocationTTL)
		if cfg.Proximity.AnnounceOnce {
			deps.Latch = valkey.NewSessionLatch(a.Cache, cfg.Valkey.SessionTTL)
		}
	}
	a.Proximity = usecases.NewProximityService(a.Points, renderer, cfg.Proximity.ThresholdMeters, deps)

	return a, nil
}

func (a *App) announcer(cfg *config.Config) (ports.Announcer, error) {
	switch cfg.Proximity.Sink {
	case config.SinkNATS:
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	case config.SinkKafka:
		k := kafkaadapter.NewAnnouncer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, func() {
			if err := k.Close(); err != nil {
				slog.Warn("kafka close failed", "error", err)
			}
		})
		return k, nil
	default:
		return logsink.New(slog.Default()), nil
	}
}

// WatchDBPool updates the pool gauges every interval until ctx is done.
func (a *App) WatchDBPool(ctx context.Context, interval time.Duration) {
	if a.DB == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(a.DB.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

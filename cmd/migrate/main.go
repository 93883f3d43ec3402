package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samirrijal/schoolmaps/internal/adapters/postgres"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|seed|status>")
	}

	cfg, err := config.Load("schoolmaps-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("all migrations applied")
	case "seed":
		seed(ctx, db, cfg)
	case "status":
		names, err := postgres.MigrationFiles()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// seed upserts the configured points of interest, keeping their order.
func seed(ctx context.Context, db *postgres.DB, cfg *config.Config) {
	set, err := cfg.PointSet()
	if err != nil {
		log.Fatalf("points: %v", err)
	}
	if err := postgres.NewPointRepo(db).UpsertBatch(ctx, set.Points()); err != nil {
		log.Fatalf("seed points: %v", err)
	}
	for p := range set.All() {
		fmt.Printf("OK  %s (%s) %.7f,%.7f\n", p.Name, p.Label, p.Location.Lat, p.Location.Lon)
	}
	log.Printf("%d points seeded", set.Len())
}

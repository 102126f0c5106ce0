// Command tilevault-cli runs a foreground bulk download without the web
// server. Useful for cron jobs and for seeding a cache from a shell.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/tilevault/tilevault-go/internal/auth"
	"github.com/tilevault/tilevault-go/internal/config"
	"github.com/tilevault/tilevault-go/internal/db"
	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/migrations"
)

func main() {
	var (
		storeName  = flag.String("store", "default", "name of the tile store")
		minLat     = flag.Float64("min-lat", 0, "southern bound")
		minLon     = flag.Float64("min-lon", 0, "western bound")
		maxLat     = flag.Float64("max-lat", 0, "northern bound")
		maxLon     = flag.Float64("max-lon", 0, "eastern bound")
		minZoom    = flag.Int("min-zoom", 0, "minimum zoom level")
		maxZoom    = flag.Int("max-zoom", 10, "maximum zoom level")
		noRecovery = flag.Bool("no-recovery", false, "disable crash-recovery bookkeeping")
		hashToken  = flag.String("hash-token", "", "print the bcrypt hash of the given admin token and exit")
	)
	flag.Parse()

	if *hashToken != "" {
		hash, err := auth.HashToken(*hashToken)
		if err != nil {
			log.Fatalf("Failed to hash token: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	region := models.Region{
		MinLat: *minLat, MinLon: *minLon,
		MaxLat: *maxLat, MaxLon: *maxLon,
		MinZoom: *minZoom, MaxZoom: *maxZoom,
	}

	eng := engine.New(store.New(database), nil)
	stream, err := eng.Start(region, engine.Options{
		Store:           *storeName,
		URLTemplate:     cfg.Provider.URLTemplate,
		UserAgent:       cfg.Provider.UserAgent,
		Parallelism:     cfg.Provider.Parallelism,
		Delay:           time.Duration(cfg.Provider.DelayMs) * time.Millisecond,
		DisableRecovery: *noRecovery,
	})
	if err != nil {
		log.Fatalf("Failed to start download: %v", err)
	}

	sub := stream.Subscribe()
	for ev := range sub.C {
		if ev.Err != nil {
			continue
		}
		fmt.Printf("\r%d/%d tiles (%.1f%%)", ev.Snapshot.Attempted, ev.Snapshot.Max, ev.Snapshot.Percentage)
	}
	fmt.Println()

	if err := stream.Err(); err != nil {
		log.Fatalf("Download failed: %v", err)
	}
	log.Println("Download complete.")
}

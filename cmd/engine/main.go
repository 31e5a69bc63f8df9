package main

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/credit-engine/internal/api"
	"github.com/rawblock/credit-engine/internal/config"
	"github.com/rawblock/credit-engine/internal/db"
	"github.com/rawblock/credit-engine/internal/metrics"
	"github.com/rawblock/credit-engine/internal/pipeline"
	"github.com/rawblock/credit-engine/internal/scoring"
)

func main() {
	log.Println("Starting RawBlock Credit Scoring Engine (Microservice: defi-credit-analytics)...")
	log.Println("Initializing percentile calibrator and feature extractors...")

	cfg := config.Load()

	// ─── Persistence (optional) ─────────────────────────────────────────
	// Without DATABASE_URL the engine still scores batches; it just does
	// not keep run history. Use a .env file for local development:
	// cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if cfg.HasDatabase() {
		var err error
		dbConn, err = db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting run history. Error: %v", err)
			dbConn = nil
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, run history persistence disabled")
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Fixed seed reproduces identical scores across runs; otherwise each
	// run derives its own seed from the clock.
	newScorer := func() scoring.Scorer {
		if cfg.ScorerSeedSet {
			return scoring.NewReferenceScorer(cfg.ScorerSeed)
		}
		return scoring.NewReferenceScorer(time.Now().UnixNano())
	}
	if cfg.ScorerSeedSet {
		log.Printf("Scorer seed pinned to %d, runs are reproducible", cfg.ScorerSeed)
	}

	runner := pipeline.NewRunner(newScorer, cfg.FeatureWorkers, api.BroadcastProgress(wsHub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if dbConn != nil {
		go metrics.StartPoolStatsCollector(ctx, dbConn.GetPool(), 15*time.Second)
	}

	// Setup the Gin Router
	r := api.SetupRouter(cfg, dbConn, runner, wsHub)

	if cfg.AuthEnabled() {
		log.Println("API auth enabled, scoring endpoints require a bearer token")
	} else {
		log.Println("Warning: API_AUTH_TOKEN not set, scoring endpoints are open")
	}

	// Start the server
	log.Printf("Engine running on :%s (API Node: defi-credit-analytics)\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

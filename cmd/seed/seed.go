package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/store/model"
	"github.com/nulzo/generation-router/internal/store/sqlstore"
)

// seed fills the attempt log with synthetic traffic so the analytics
// endpoints have something to show on a fresh database.
func main() {
	requests := flag.Int("requests", 200, "Number of generation requests to simulate")
	days := flag.Int("days", 7, "Spread requests over this many past days")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	repo, err := sqlstore.Open(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	backends := cfg.EnabledBackends()
	if len(backends) == 0 {
		log.Fatal("no enabled backends configured")
	}

	now := time.Now().UTC()
	logs := make([]model.AttemptLog, 0, *requests*2)
	for i := 0; i < *requests; i++ {
		requestID := uuid.NewString()
		at := now.Add(-time.Duration(rand.Int63n(int64(*days) * int64(24*time.Hour)))).Truncate(time.Second)

		// walk the backends in order until one succeeds
		for n, b := range backends {
			success := rand.Float64() < 0.85 || n == len(backends)-1
			entry := model.AttemptLog{
				ID:        uuid.NewString(),
				RequestID: requestID,
				BackendID: b.ID,
				Model:     b.DefaultModel,
				Attempt:   1,
				Success:   success,
				LatencyMS: 80 + rand.Int63n(900),
				CreatedAt: at,
			}
			if success {
				entry.InputTokens = 50 + rand.Intn(500)
				entry.OutputTokens = 20 + rand.Intn(400)
				entry.Cost = float64(entry.InputTokens+entry.OutputTokens) / 1000 * b.Pricing[b.DefaultModel]
			} else {
				entry.Error = "upstream returned 503"
			}
			logs = append(logs, entry)
			if success {
				break
			}
		}
	}

	if err := repo.Attempts().LogBatch(context.Background(), logs); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seeded %d attempts across %d requests and %d backends\n", len(logs), *requests, len(backends))
}

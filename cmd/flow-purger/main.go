package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	provpostgres "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/persistence/postgres"
	platformpostgres "github.com/mmesim/provisioning-api/internal/platform/postgres"
)

const defaultFlowTTL = 24 * time.Hour

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge flows")
	}

	repo := provpostgres.NewRepository(db)
	cutoff := time.Now().Add(-flowTTLFromEnv())
	reaped, err := repo.DeleteStale(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge flows: %v", err)
	}
	log.Printf("flow purge completed, removed %d stale flows", reaped)
}

func flowTTLFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("FLOW_TTL_HOURS"))
	if raw == "" {
		return defaultFlowTTL
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return defaultFlowTTL
	}
	return time.Duration(hours) * time.Hour
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/logger"
)

func main() {
	var (
		storePath = flag.String("store", "data/portal.db", "Path to the local store file")
		fixtures  = flag.String("fixtures", "", "JSON file with reference data (defaults to the built-in set)")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	slogger := logger.SetupLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seed := domain.DefaultSeedData()
	if *fixtures != "" {
		var err error
		seed, err = loadFixtures(*fixtures)
		if err != nil {
			slogger.Error("failed to load fixtures", slog.String("file", *fixtures), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	cfg := db.DefaultConfig()
	cfg.Path = *storePath
	cfg.EnableQueryLogging = *verbose

	store := db.NewStore(cfg, slogger, db.WithSeedData(seed))
	defer store.Close()

	// Initialize seeds each empty reference collection once; reruns are no-ops
	if err := store.Initialize(ctx); err != nil {
		slogger.Error("failed to initialize store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		slogger.Error("failed to read schema version", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Store: %s (schema v%d)\n\n", *storePath, version)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tRECORDS")
	for _, c := range domain.Collections() {
		n, err := store.Count(ctx, c)
		if err != nil {
			slogger.Error("failed to count collection", slog.String("collection", c.String()), slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Fprintf(w, "%s\t%d\n", c, n)
	}
	w.Flush()
}

// loadFixtures reads and validates a reference data file
func loadFixtures(path string) (domain.SeedData, error) {
	var seed domain.SeedData

	data, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("invalid fixtures file: %w", err)
	}

	for _, c := range domain.ReferenceCollections() {
		for _, r := range seed.Records(c) {
			if err := domain.ValidateRecord(r); err != nil {
				return seed, fmt.Errorf("%s %q: %w", c, r.Key(), err)
			}
		}
	}

	return seed, nil
}

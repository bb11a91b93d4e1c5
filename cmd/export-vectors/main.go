// Command export-vectors pushes the catalog's TF-IDF vectors into a Qdrant
// collection so other services can run nearest-dish queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/engine/semantic"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// vectorStore is the part of semantic.VectorStore the command needs.
type vectorStore interface {
	Collection() string
	Export(ctx context.Context, ix *catalog.Index, recreate bool) (semantic.ExportStats, error)
	Search(ctx context.Context, vector []float32, topK int) ([]semantic.SearchResult, error)
	Close() error
}

var openStore = func(addr, collection string) (vectorStore, error) {
	return semantic.New(addr, collection)
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("export failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("export-vectors", flag.ContinueOnError)
	var (
		catalogPath = fs.String("catalog", envOr("CATALOG_PATH", "menu_items.csv"), "menu catalog CSV")
		qdrantAddr  = fs.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = fs.String("collection", envOr("QDRANT_COLLECTION", "menu_items"), "target collection")
		recreate    = fs.Bool("recreate", false, "drop and recreate the collection when its vector size differs")
		verify      = fs.String("verify", "", "after exporting, print the nearest dishes to this item")
		topK        = fs.Int("k", 5, "number of neighbours printed by -verify")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ix, err := catalog.Load(ctx, catalog.CSVFile{Path: *catalogPath})
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "items", ix.Len(), "vocabulary", len(ix.Vocabulary()))

	store, err := openStore(*qdrantAddr, *collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer store.Close()

	stats, err := store.Export(ctx, ix, *recreate)
	if err != nil {
		return err
	}
	logger.Info("vectors exported",
		"collection", store.Collection(),
		"dims", stats.Dims,
		"points", stats.Points,
		"skipped", stats.Skipped,
	)
	fmt.Fprintf(stdout, "exported %d vectors (%d dims, %d skipped) to %s\n",
		stats.Points, stats.Dims, stats.Skipped, store.Collection())

	if *verify == "" {
		return nil
	}
	return printNeighbours(ctx, stdout, store, ix, *verify, *topK)
}

func printNeighbours(ctx context.Context, w io.Writer, store vectorStore, ix *catalog.Index, item string, k int) error {
	i, ok := ix.Lookup(item)
	if !ok {
		return &domain.ItemNotFoundError{Name: item}
	}
	// The item itself usually comes back first.
	hits, err := store.Search(ctx, ix.Vector(i), k+1)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "nearest to %s:\n", item)
	n := 0
	for _, h := range hits {
		if h.ID == uint64(ix.Item(i).ID) || n == k {
			continue
		}
		n++
		fmt.Fprintf(w, "  %d. %s (%.3f)\n", n, h.RecipeName, h.Score)
	}
	return nil
}

package embedder

import (
	"context"
	"database/sql"
	"time"

	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/logging"
)

// Embedder turns text into a vector blob (for the DB) and its floats.
type Embedder interface {
	EmbedString(ctx context.Context, text string) ([]byte, []float32, error)
}

// Pace is the pause between API calls, roughly 60 RPM for the free tier.
var Pace = 1 * time.Second

// Run finds all catalog products missing embeddings and processes them.
// It returns how many products were embedded.
func Run(ctx context.Context, database *sql.DB, client Embedder) (int, error) {
	logger := logging.From(ctx).With("component", "embedder")

	targets, err := db.GetUnembeddedProducts(database)
	if err != nil {
		return 0, err
	}

	if len(targets) == 0 {
		logger.Info("All active products are already embedded")
		return 0, nil
	}
	logger.Info("Embedding new products", "count", len(targets))

	count := 0
	for key, textToEmbed := range targets {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		logger.Debug("Embedding", "center", key.Center, "product", key.Name)

		blob, _, err := client.EmbedString(ctx, textToEmbed)
		if err != nil {
			logger.Warn("Error embedding product", "product", key.Name, "error", err)
			sleep(ctx, Pace) // Backoff on error
			continue
		}

		if err := db.UpdateEmbedding(database, key, blob); err != nil {
			logger.Warn("Error saving embedding", "product", key.Name, "error", err)
			continue
		}

		count++
		sleep(ctx, Pace)
	}

	logger.Info("Embedding finished", "embedded", count)
	return count, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

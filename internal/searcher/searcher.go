// Package searcher ranks cached catalog products against a free-text query.
package searcher

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/embedder"
	"mspro-labs/office-cart/internal/logging"
)

// DefaultLimit caps how many matches a search returns.
const DefaultLimit = 5

// DefaultMinScore hides matches too weak to be useful.
const DefaultMinScore float32 = 0.2

// ErrNoEmbedder is returned when a query is not cached and no embedder is configured.
var ErrNoEmbedder = errors.New("no embedding client configured")

// Options narrow a search. The zero value searches every center with
// DefaultLimit and no score floor.
type Options struct {
	Center   string
	MinScore float32
	Limit    int
}

// Result holds a single search match.
type Result struct {
	Item  db.ProductVector
	Score float32
}

// Perform embeds query (or reuses its cached vector) and returns the best
// matching products, highest score first.
func Perform(ctx context.Context, database *sql.DB, client embedder.Embedder, query string, opts Options) ([]Result, error) {
	queryVector, err := queryVector(ctx, database, client, query)
	if err != nil {
		return nil, err
	}

	products, err := db.GetProductVectors(database, opts.Center)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	results := make([]Result, 0, len(products))
	for _, p := range products {
		vec, err := ai.BytesToFloats(p.Vector)
		if err != nil {
			logging.From(ctx).Debug("Skipping corrupt embedding", "center", p.Center, "product", p.Name, "error", err)
			continue
		}
		score := ai.CosineSimilarity(queryVector, vec)
		if score < opts.MinScore {
			continue
		}
		results = append(results, Result{Item: p, Score: score})
	}

	// Ties keep a stable, readable order.
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.Name, b.Item.Name)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// queryVector reads the query's vector from the history table, embedding
// and caching it on a miss.
func queryVector(ctx context.Context, database *sql.DB, client embedder.Embedder, text string) ([]float32, error) {
	blob, err := db.GetCachedQuery(database, text)
	switch {
	case err == nil:
		return ai.BytesToFloats(blob)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to read query cache: %w", err)
	}

	logger := logging.From(ctx)
	if client == nil {
		return nil, ErrNoEmbedder
	}
	logger.Info("Query cache miss, embedding", "query", text)
	blob, floats, err := client.EmbedString(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if err := db.SaveCachedQuery(database, text, blob); err != nil {
		logger.Warn("Failed to save query to cache", "error", err)
	}
	return floats, nil
}

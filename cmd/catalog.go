package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/embedder"
	"mspro-labs/office-cart/internal/searcher"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the locally cached product catalog",
}

var catalogFindCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Semantic search over cached products",
	Long: `Uses AI embeddings to find cached products that match the meaning of your query.
Examples:
  office-cart catalog find "suplemento para articulações"
  office-cart catalog find "vitamina para imunidade"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		if err := performFind(ctx, database, strings.Join(args, " ")); err != nil {
			fatal("Search failed", err)
		}
	},
}

var catalogHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List cached search queries",
	Run: func(cmd *cobra.Command, args []string) {
		database := openDB()
		defer database.Close()

		entries, err := db.ListSearchHistory(database)
		if err != nil {
			fatal("Failed to list history", err)
		}
		fmt.Println("Search history (cached queries)")
		fmt.Println("-------------------------------")
		if len(entries) == 0 {
			fmt.Println("No history found.")
			return
		}
		for _, e := range entries {
			fmt.Printf("[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.QueryText)
		}
	},
}

var catalogClearCmd = &cobra.Command{
	Use:   "clear [query|all]",
	Short: "Remove one cached query, or all of them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		database := openDB()
		defer database.Close()

		target := strings.TrimSpace(strings.Join(args, " "))
		var (
			affected int64
			err      error
		)
		if strings.EqualFold(target, "all") {
			affected, err = db.ClearAllSearchHistory(database)
		} else {
			affected, err = db.ClearSearchHistory(database, target)
		}
		if err != nil {
			fatal("Failed to clear history", err)
		}
		fmt.Printf("Done. Removed %d entry(s) from cache.\n", affected)
	},
}

var flagFindCenter string

func init() {
	catalogFindCmd.Flags().StringVarP(&flagFindCenter, "center", "c", "", "only match products of this center")
	catalogCmd.AddCommand(catalogFindCmd, catalogHistoryCmd, catalogClearCmd)
	rootCmd.AddCommand(catalogCmd)
}

func performFind(ctx context.Context, database *sql.DB, query string) error {
	// The AI client is only needed on a query cache miss.
	var client embedder.Embedder
	if os.Getenv("GEMINI_API_KEY") != "" {
		aiClient, err := ai.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to init AI: %w", err)
		}
		defer aiClient.Close()
		client = aiClient.Query()
	}

	results, err := searcher.Perform(ctx, database, client, query, searcher.Options{Center: flagFindCenter})
	if err != nil {
		return err
	}

	fmt.Printf("\nTop matches for: %q\n\n", query)
	if len(results) == 0 {
		fmt.Println("No embedded products yet. Run `office-cart products` and `office-cart embed` first.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("#%d [%.1f%% match] %s (%s) %s\n", i+1, r.Score*100, r.Item.Name, r.Item.Center, r.Item.Price)
		fmt.Printf("   %s\n\n", truncate(r.Item.Description, 150))
	}
	return nil
}

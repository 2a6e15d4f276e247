package cmd

import (
	"github.com/spf13/cobra"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/embedder"
	"mspro-labs/office-cart/internal/logging"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate AI embeddings for new catalog products",
	Long:  `Finds active catalog products that are missing semantic vectors and generates them using the Gemini API.`,
	Run: func(cmd *cobra.Command, args []string) {
		runEmbed()
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed() {
	ctx, cancel := signalContext()
	defer cancel()

	database := openDB()
	defer database.Close()

	aiClient, err := ai.NewClient(ctx)
	if err != nil {
		fatal("Failed to initialize AI client", err)
	}
	defer aiClient.Close()

	n, err := embedder.Run(ctx, database, aiClient)
	if err != nil {
		fatal("Embedding process failed", err)
	}
	logging.L().Info("Embedding finished", "embedded", n)
}

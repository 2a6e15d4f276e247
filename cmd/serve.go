package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/api"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and catalog UI",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() {
	logger := logging.L()
	ctx, cancel := signalContext()
	defer cancel()

	database := openDB()
	defer database.Close()

	srv := &api.Server{Ops: newService(database), DB: database}

	// Semantic catalog search is optional.
	if os.Getenv("GEMINI_API_KEY") != "" {
		aiClient, err := ai.NewClient(ctx)
		if err != nil {
			fatal("Failed to initialize AI", err)
		}
		defer aiClient.Close()
		srv.Embedder = aiClient.Query()
	} else {
		logger.Warn("GEMINI_API_KEY not set, catalog search answers cached queries only")
	}

	metrics.Register()
	handler, err := api.NewRouter(srv)
	if err != nil {
		fatal("Failed to build router", err)
	}

	// Portal calls launch a browser and can take over a minute.
	server := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server started", "addr", appCfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fatal("Server error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}
}

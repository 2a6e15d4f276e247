package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"mspro-labs/office-cart/internal/config"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/workflow"
)

var (
	appCfg   config.AppConfig
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "office-cart",
	Short: "Automates the Ozonteck distributor office: centers, search, cart and checkout",
	Long: `office-cart drives a headless browser through office.grupoozonteck.com.
Every call logs in with the given credentials, performs one task and closes the browser.
The per-user browser profile under DATA_DIR keeps the login between calls.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() {
	var err error
	appCfg, err = config.GetAppConfig()
	if err != nil {
		fatal("Config error", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.File = appCfg.LogFile
	if logCfg.Level, err = logging.ParseLevel(appCfg.LogLevel); err != nil {
		fatal("Invalid LOG_LEVEL", err)
	}
	_, closeFn, err := logging.Setup(logCfg)
	if err != nil {
		fatal("Logging setup failed", err)
	}
	closeLog = closeFn
}

func fatal(msg string, err error) {
	logging.L().Error(msg, "error", err)
	_ = closeLog()
	os.Exit(1)
}

// signalContext is cancelled on Ctrl-C or SIGTERM so a running browser gets closed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openDB() *sql.DB {
	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0755); err != nil {
		fatal("Failed to create database directory", err)
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		fatal("Database error", err)
	}
	return database
}

func newService(database *sql.DB) *workflow.Service {
	siteCfg, err := config.LoadSiteConfig(appCfg.ConfigPath)
	if err != nil {
		fatal("Failed to load site config", err)
	}
	portal := &workflow.BrowserPortal{Site: siteCfg, DataDir: appCfg.DataDir}
	return workflow.New(portal, database)
}

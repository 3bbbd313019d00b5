// campman plans and executes Simons Observatory mapmaking campaigns on a
// batch scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/campman/internal/batch"
	"github.com/me/campman/internal/bookkeeper"
	"github.com/me/campman/internal/config"
	"github.com/me/campman/internal/enactor"
	"github.com/me/campman/internal/estimator"
	"github.com/me/campman/internal/logging"
	"github.com/me/campman/internal/planner"
	"github.com/me/campman/internal/server"
	"github.com/me/campman/internal/store"
	"github.com/me/campman/internal/workflows"
)

const version = "0.3.0"

var settings = config.DefaultSettings()

func main() {
	rootCmd := &cobra.Command{
		Use:     "campman [flags] <campaign-file>",
		Short:   "Campaign manager for observatory data processing",
		Version: version,
		Long: `campman plans a campaign of workflows onto an HPC cluster and executes
it through the batch scheduler, honoring dependencies, QoS walltime limits
and the campaign deadline.

Examples:
  # Execute a campaign
  campman campaign.toml

  # Plan and simulate without submitting anything
  campman --dry-run campaign.toml

  # Execute with a status endpoint on :8080
  campman --listen :8080 campaign.toml
`,
		Args:          cobra.ExactArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().BoolVar(&settings.DryRun, "dry-run", false, "Plan and simulate the campaign without submitting jobs")
	rootCmd.Flags().StringVar(&settings.Listen, "listen", "", "Status server address (empty disables it)")
	rootCmd.Flags().StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&settings.LogFormat, "log-format", settings.LogFormat, "Log format (text, json)")
	rootCmd.Flags().StringVar(&settings.DBPath, "db", settings.DBPath, "Run-record database path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "campman: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings.ConfigPath = args[0]
	logger := logging.New(settings.LogLevel, settings.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := config.Load(settings.ConfigPath, workflows.DefaultRegistry(logger), logger)
	if err != nil {
		return err
	}

	var (
		est   estimator.Estimator = estimator.Declared{}
		enact enactor.Enactor
		st    store.Store
	)
	if settings.DryRun {
		enact = enactor.NewSim(logger)
	} else {
		sqlStore, err := store.NewSQLiteStore(settings.DBPath, logger)
		if err != nil {
			return fmt.Errorf("opening run-record store: %w", err)
		}
		defer sqlStore.Close()
		if err := sqlStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating run-record store: %w", err)
		}
		st = sqlStore
		est = estimator.NewRecorded(sqlStore, logger)

		client := batch.NewSlurmClient(30*time.Second, logger)
		enact = enactor.NewSlurm(client, logger)
	}
	defer enact.Terminate()

	b := bookkeeper.New(doc.Campaign, doc.Resources, planner.DefaultRegistry(logger), est, enact, st, logger)

	shutdownServer := startStatusServer(b, logger)
	defer shutdownServer()

	runErr := b.Run(ctx)
	printReport(b.Report())
	return runErr
}

// startStatusServer serves the campaign status endpoint when --listen is
// set. The returned func shuts it down.
func startStatusServer(b *bookkeeper.Bookkeeper, logger *slog.Logger) func() {
	if settings.Listen == "" {
		return func() {}
	}
	httpServer := &http.Server{
		Addr:    settings.Listen,
		Handler: server.New(b, logger),
	}
	go func() {
		logger.Info("status server starting", "addr", settings.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown", "error", err)
		}
	}
}

// printReport writes the final per-workflow tally to stdout.
func printReport(r bookkeeper.Report) {
	names := make([]string, 0, len(r.States))
	for name := range r.States {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("campaign %s: %s\n", r.SessionID, r.State)
	for _, name := range names {
		fmt.Printf("  %-40s %s\n", name, r.States[name])
	}
	fmt.Printf("completed %d, failed %d, cancelled %d (planned makespan %.0f min)\n",
		r.Completed, r.Failed, r.Cancelled, r.MakespanMinutes)
}

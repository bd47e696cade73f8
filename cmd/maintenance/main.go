// Command maintenance runs the integrity and cleanup passes on demand.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/v1mal/open-scene-engine-sub000/internal/bootstrap"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/jobs"
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	outputFormat string
	failOnDrift  bool
	watch        bool
)

var errDrift = errors.New("integrity drift detected")

var (
	rootCmd = &cobra.Command{
		Use:           "maintenance",
		Short:         "Check and repair community engine data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Report drift in denormalized counters without changing anything",
		RunE:  runReconcile,
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete orphaned rows and deactivate expired bans",
		RunE:  runCleanup,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run cleanup followed by reconcile, once or on the configured interval",
		Long: `Runs both passes the way the server's scheduler does.

With --watch the passes repeat every MAINTENANCE_INTERVAL until the
process receives SIGINT or SIGTERM.`,
		RunE: runBoth,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "output format: json or yaml")
	reconcileCmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when any drift is found")
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "repeat on MAINTENANCE_INTERVAL")
	rootCmd.AddCommand(reconcileCmd, cleanupCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openRuntime() (*bootstrap.Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Reports go to stdout; keep logs out of the way.
	middleware.ConfigureLogger(cfg.Env, os.Stderr)
	middleware.InitMiddleware(cfg)
	// Drift checks must see committed writes, so they skip the replica.
	return bootstrap.InitRuntime(cfg, bootstrap.Options{SkipReplica: true})
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	report, err := rt.Services.Maintenance.ReconcileAggregates(cmd.Context())
	if err != nil {
		return err
	}
	if err := render(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if failOnDrift && !report.Clean() {
		return fmt.Errorf("%w: %d findings", errDrift, report.Total())
	}
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	report, err := rt.Services.Maintenance.CleanupOrphans(cmd.Context())
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), report)
}

func runBoth(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if !watch {
		cleanup, err := rt.Services.Maintenance.CleanupOrphans(cmd.Context())
		if err != nil {
			return err
		}
		reconcile, err := rt.Services.Maintenance.ReconcileAggregates(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]any{"cleanup": cleanup, "reconcile": reconcile})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := jobs.NewScheduler(rt.Services.Maintenance, rt.Config.MaintenanceInterval, middleware.Logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func render(w io.Writer, v any) error {
	switch outputFormat {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q", outputFormat)
	}
}

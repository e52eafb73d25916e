package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/deusflow/dailybrief/internal/app"
	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
)

// Set by -ldflags at build time.
var version = "dev"

// errLocked means another process holds the run lock for the output root.
var errLocked = errors.New("another run holds the lock")

var (
	configPath string
	lockPath   string
)

var rootCmd = &cobra.Command{
	Use:           "dailybrief",
	Short:         "Daily AI news brief: fetch, summarize, translate, deliver and render",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $DAILYBRIEF_CONFIG, ./config.yaml, then the XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&lockPath, "lockfile", "", "run lock file (default: <output root>/.dailybrief.lock)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errLocked) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			res, err := runLocked(cmd.Context(), cfg, app.RunOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(map[string]any{"status": "ok", "output": res})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write artifacts but skip email and telegram delivery")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dailybrief", version)
		},
	}
}

// loadConfig reads, validates and applies the log level.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Path != "" {
		logger.Debug("config loaded", "path", cfg.Path)
	}
	return cfg, nil
}

// runLocked builds a pipeline and runs it while holding the file lock for the
// output root.
func runLocked(ctx context.Context, cfg *config.Config, opts app.RunOptions) (app.Result, error) {
	path := lockPath
	if path == "" {
		path = filepath.Join(cfg.Output.RootDir, ".dailybrief.lock")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return app.Result{}, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return app.Result{}, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return app.Result{}, fmt.Errorf("%w: %s", errLocked, path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release lock failed", "path", path, "error", err)
		}
	}()

	p, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return app.Result{}, err
	}
	defer p.Close()
	return p.Run(ctx, opts)
}

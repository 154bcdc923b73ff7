// Package cli implements the tillsync command line interface.
//
// Each invocation opens the local database, performs its work, and exits;
// the drain lock in the store coordinates with any long-running `serve`
// process touching the same database.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/config"
	"github.com/roach88/tillsync/internal/engine"
	"github.com/roach88/tillsync/internal/gateway"
	"github.com/roach88/tillsync/internal/store"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides the configured db path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tillsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tillsync",
		Short: "Offline-first sync engine for retail registers",
		Long: `tillsync keeps a register selling when the network is down.

Batches, orders, and refunds commit to a local SQLite database immediately
and are synchronized to the POS backend in the background, in a safe order,
with retries.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "tillsync.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewCloseCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewRefundCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setup loads configuration, configures logging, opens the store, and wires
// the engine against the configured backend. The returned cleanup closes the
// database.
func setup(opts *RootOptions) (*engine.Engine, *config.Config, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	configureLogging(opts, cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	cleanup := func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}

	gw := gateway.NewRemote(cfg.Backend.BaseURL, cfg.Backend.APIKey,
		gateway.WithTimeout(cfg.BackendTimeout()))

	eng := engine.New(st, gw,
		engine.WithMaxAttempts(cfg.Sync.MaxAttempts),
		engine.WithBackoff(engine.Backoff{Base: cfg.BackoffBase(), Max: cfg.BackoffMax()}),
		engine.WithLockStaleAfter(cfg.LockStaleAfter()),
		engine.WithSyncInterval(cfg.SyncInterval()),
		engine.WithProbe(gateway.NewPingProbe(cfg.Backend.BaseURL)),
	)
	return eng, cfg, cleanup, nil
}

func configureLogging(opts *RootOptions, cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

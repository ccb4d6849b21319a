package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strandlight/sacnd/internal/config"
	"github.com/strandlight/sacnd/internal/output"
	"github.com/strandlight/sacnd/internal/receiver"
	"github.com/strandlight/sacnd/internal/store"
	"github.com/strandlight/sacnd/internal/timer"
	"github.com/strandlight/sacnd/internal/universe"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
	DryRun bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Receive E1.31 data and drive the LED string",
		Long: `Start the sacnd receiver.

The receiver joins the multicast group for the configured universe,
arbitrates among transmitting sources by priority, and renders the
winning channel data onto the configured APA102 string.

Example:
  sacnd run --config /etc/sacnd/sacnd.yaml
  sacnd run --config ./sacnd.yaml --dry-run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceiver(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration file (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log channel updates instead of driving hardware")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runReceiver(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	slog.Info("config loaded",
		"universe", cfg.Universe,
		"max_sources", cfg.MaxSources,
		"ignore_preview", cfg.IgnorePreview,
		"data_loss_timeout", time.Duration(cfg.DataLossTimeout),
	)

	var history *store.Store
	if cfg.HistoryDB != "" {
		history, err = store.Open(cfg.HistoryDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				slog.Error("error closing history database", "error", closeErr)
			}
		}()
	}

	sink, err := buildSink(cfg, opts.DryRun)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output device", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Error("error closing output device", "error", closeErr)
		}
	}()

	sched := timer.New()
	defer sched.Close()

	uni := universe.New(universe.Config{
		Universe:        cfg.Universe,
		MaxSources:      cfg.MaxSources,
		IgnorePreview:   cfg.IgnorePreview,
		DefaultPriority: cfg.DefaultPriority,
		Timeout:         time.Duration(cfg.DataLossTimeout),
	}, sched)

	recv := receiver.New(cfg, uni, sched, sink, history)
	if err := recv.Listen(); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind E1.31 socket", err)
	}

	// Signal handling for graceful shutdown.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("receiver starting", "universe", cfg.Universe, "dry_run", opts.DryRun)
	fmt.Fprintln(cmd.OutOrStdout(), "Receiver started. Press Ctrl-C to stop.")

	if err := recv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "receiver error", err)
	}

	slog.Info("receiver stopped gracefully")
	return nil
}

// buildSink opens the hardware sink, or the log sink for dry runs and
// deviceless configurations.
func buildSink(cfg *config.Config, dryRun bool) (output.Sink, error) {
	if dryRun || cfg.Output.Device == "" {
		return output.NewLog(cfg.Output.LEDs, cfg.Output.ChannelOffset), nil
	}
	dev, err := os.OpenFile(cfg.Output.Device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Output.Device, err)
	}
	return output.NewAPA102(dev, cfg.Output.LEDs, cfg.Output.Brightness, cfg.Output.ChannelOffset), nil
}

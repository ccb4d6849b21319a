package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strandlight/sacnd/internal/config"
)

// NewCheckConfigCommand creates the checkconfig command.
func NewCheckConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkconfig <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file and print the effective settings,
including defaults for fields the file leaves unset.

Example:
  sacnd checkconfig /etc/sacnd/sacnd.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

// effectiveConfig is the JSON shape of the validated settings.
type effectiveConfig struct {
	Universe        uint16 `json:"universe"`
	Interface       string `json:"interface,omitempty"`
	MaxSources      int    `json:"max_sources"`
	IgnorePreview   bool   `json:"ignore_preview"`
	DefaultPriority uint8  `json:"default_priority"`
	DataLossTimeout string `json:"data_loss_timeout"`
	HistoryDB       string `json:"history_db,omitempty"`
	Device          string `json:"device,omitempty"`
	LEDs            int    `json:"leds"`
	Brightness      uint8  `json:"brightness"`
	ChannelOffset   int    `json:"channel_offset"`
}

func checkConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "config validation failed", err)
	}

	if opts.Format == "json" {
		f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(effectiveConfig{
			Universe:        cfg.Universe,
			Interface:       cfg.Interface,
			MaxSources:      cfg.MaxSources,
			IgnorePreview:   cfg.IgnorePreview,
			DefaultPriority: cfg.DefaultPriority,
			DataLossTimeout: time.Duration(cfg.DataLossTimeout).String(),
			HistoryDB:       cfg.HistoryDB,
			Device:          cfg.Output.Device,
			LEDs:            cfg.Output.LEDs,
			Brightness:      cfg.Output.Brightness,
			ChannelOffset:   cfg.Output.ChannelOffset,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK: %s\n", path)
	fmt.Fprintf(out, "E1.31 settings:\n")
	fmt.Fprintf(out, "\tUniverse: %d\n", cfg.Universe)
	if cfg.Interface != "" {
		fmt.Fprintf(out, "\tInterface: %s\n", cfg.Interface)
	}
	fmt.Fprintf(out, "\tMax sources: %d\n", cfg.MaxSources)
	fmt.Fprintf(out, "\tPreview flag ignored: %t\n", cfg.IgnorePreview)
	fmt.Fprintf(out, "\tDefault priority: %d\n", cfg.DefaultPriority)
	fmt.Fprintf(out, "\tData loss timeout: %s\n", time.Duration(cfg.DataLossTimeout))
	fmt.Fprintf(out, "Output settings:\n")
	fmt.Fprintf(out, "\tDevice: %s\n", deviceLabel(cfg.Output.Device))
	fmt.Fprintf(out, "\tLEDs: %d\n", cfg.Output.LEDs)
	fmt.Fprintf(out, "\tBrightness: %d\n", cfg.Output.Brightness)
	fmt.Fprintf(out, "\tChannel offset: %d\n", cfg.Output.ChannelOffset)
	if cfg.HistoryDB != "" {
		fmt.Fprintf(out, "History database: %s\n", cfg.HistoryDB)
	}
	return nil
}

func deviceLabel(device string) string {
	if device == "" {
		return "(log only)"
	}
	return device
}

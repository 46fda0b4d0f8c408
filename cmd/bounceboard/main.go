// bounceboard: clipboard sync between machines through a relay.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/bounceboard/internal/keys"
	"go.klb.dev/bounceboard/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bounceboard",
		Short: "Clipboard sync through a relay",
		Long: `bounceboard keeps the clipboards of several machines in sync.

Run "bounceboard server" on one machine. It prints one URL per network
interface; run "bounceboard client <url>" on every other machine. Text, HTML,
RTF, PNG and (on Linux and macOS) copied files are synchronized.

Config file search order (first found wins):
  /etc/bounceboard/bounceboard.toml
  $HOME/.config/bounceboard/bounceboard.toml
  path supplied via --config

All flags can be set via BOUNCEBOARD_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServerCmd(),
		newClientCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newKeygenCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bounceboard %s\n", Version)
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh access key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := keys.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(verbose bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if verbose {
		level = logging.ParseLevel("debug")
	}
	logging.Setup(format, level)
}

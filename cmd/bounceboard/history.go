package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/bounceboard/internal/history"
	"go.klb.dev/bounceboard/internal/logging"
	"go.klb.dev/bounceboard/internal/snapshot"
)

func newHistoryCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List clipboard history recorded with --history-db",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(v, func(b *history.Bolt) error {
				entries, err := b.List(v.GetInt("limit"))
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				printHistory(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	f := cmd.PersistentFlags()
	f.String("history-db", "", "bbolt history database")
	f.String("config", "", "path to config file (overrides auto-discovery)")
	cmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)")
	cmd.Flags().Bool("json", false, "output JSON")

	cmd.AddCommand(newHistoryCatCmd())
	return cmd
}

func newHistoryCatCmd() *cobra.Command {
	v := viper.New()
	return &cobra.Command{
		Use:   "cat <hash>",
		Short: "Write a recorded payload to stdout",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := snapshot.ParseHash(args[0])
			if err != nil {
				return err
			}
			return withHistory(v, func(b *history.Bolt) error {
				payload, err := b.Payload(h)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			})
		},
	}
}

func withHistory(v *viper.Viper, fn func(*history.Bolt) error) error {
	path := v.GetString("history-db")
	if path == "" {
		return fmt.Errorf("--history-db is required")
	}
	b, err := history.OpenBolt(path)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "WHEN\tTYPE\tSIZE\tHASH\tCONTENT\n")
	for _, e := range entries {
		content := e.FileName
		if content == "" {
			content = e.AltText
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(e.At()), e.MIMEType, humanize.IBytes(e.SizeBytes),
			e.ContentHash[:min(12, len(e.ContentHash))], logging.Preview(strings.Join(strings.Fields(content), " ")))
	}
	_ = tw.Flush()
}

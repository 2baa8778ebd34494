package main

import (
	"encoding/json"
	"io"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/stats"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics computed from the decision log (as JSON with --json)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return invokeQuiet(func(logger *zap.Logger, log core.DecisionLog) error {
			defer logger.Sync()
			entries, err := log.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStats(out io.Writer, entries []core.LogEntry) error {
	summary := stats.Compute(entries)
	if !jsonLog {
		return stats.WriteText(out, summary)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(summary)
}

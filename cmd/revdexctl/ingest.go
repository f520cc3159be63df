package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIngestCmd(g *globalFlags) *cobra.Command {
	var skipIndex bool
	cmd := &cobra.Command{
		Use:   "ingest <reviews.jsonl>",
		Short: "Embed and store a JSON Lines review corpus",
		Long: `Load a corpus of {"id", "text", "metadata", "embedding"} lines.

Reviews without an embedding are embedded with the configured provider.
The store index (Valkey/Redis FT index or the Postgres table) is created first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			if !skipIndex {
				if err := c.EnsureIndex(cmd.Context()); err != nil {
					return err //nolint:wrapcheck // revdex errors are already prefixed
				}
			}

			start := time.Now()
			stats, err := c.IngestFile(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // revdex errors are already prefixed
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ingested %d reviews (%d embedded, %d tokens) in %s\n",
				stats.Total, stats.Embedded, stats.Tokens, time.Since(start).Round(time.Millisecond))
			return err //nolint:wrapcheck // plain writer error
		},
	}
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "do not create the store index")
	return cmd
}

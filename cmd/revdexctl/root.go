package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex"
	"github.com/kailas-cloud/revdex/internal/config"
	logpkg "github.com/kailas-cloud/revdex/internal/logger"
	"github.com/kailas-cloud/revdex/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "revdexctl",
		Short: "Query and load a revdex review index",
		Long: `revdexctl runs the revdex retrieval cascade against the configured store.

Example usage:
  revdexctl ingest reviews.jsonl              # Embed and store a JSONL corpus
  revdexctl query "does it smell good"        # Dense -> BM25 -> hybrid
  revdexctl query "향이 좋나요" -f channel=naver --summary
  revdexctl query "battery life" --budgets 200,50,10 --alpha 0.7 --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", version.Version, version.Commit),
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "",
		"config file (default is config/$ENV.yaml, ENV defaults to local)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log pipeline stages to stderr")

	root.AddCommand(newQueryCmd(g), newIngestCmd(g))
	return root
}

// openClient loads the config and wires a client; the caller closes it.
func (g *globalFlags) openClient() (*revdex.Client, error) {
	path := g.configPath
	if path == "" {
		path = fmt.Sprintf("config/%s.yaml", config.GetEnv())
	}

	logger := zap.NewNop()
	if g.verbose {
		l, err := logpkg.NewLogger("local", "debug")
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}

	c, err := revdex.New(revdex.WithConfigFile(path), revdex.WithLogger(logger))
	if err != nil {
		return nil, err //nolint:wrapcheck // revdex errors are already prefixed
	}
	return c, nil
}

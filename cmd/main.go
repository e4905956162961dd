package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/modelrank/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

// newRootCmd builds the modelrank command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "modelrank",
		Short: "Registry and ranking ledger for machine-learning models",
		Long: `modelrank registers models against a stake, records reputation-weighted
evaluations and keeps a top-ten leaderboard for every category.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newTokenCmd(), newLoadgenCmd())
	return root
}

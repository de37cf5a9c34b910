package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

// newRootCmd builds the command tree. Commands share no package state so
// tests can build a fresh tree per case.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rankctl",
		Short:         "Feed ranking CLI",
		Long:          "Rank feed items from a file with the same scorers the API uses, and inspect cached feeds.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log ranking diagnostics to stderr")

	cmd.AddCommand(
		newRankCmd(opts),
		newScorersCmd(),
		newCacheCmd(opts),
	)
	return cmd
}

// logger returns a stderr logger when verbose, otherwise one that drops everything.
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// ABOUTME: Entry point for the ergo chat bot
// ABOUTME: Cobra root command with serve (default), commands and init subcommands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _ __ __ _  ___
 / _ \ '__/ _' |/ _ \
|  __/ | | (_| | (_) |
 \___|_|  \__, |\___/
          |___/
`

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var listCommands bool
	serve := &serveOptions{}

	root := &cobra.Command{
		Use:     "ergo",
		Short:   "Anarchy Online chat bot",
		Version: version,
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listCommands {
				return runCommands(cmd.OutOrStdout(), flags)
			}
			return runServe(cmd.Context(), cmd.OutOrStdout(), flags, serve)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "C", "", "use specified configuration file")
	root.PersistentFlags().BoolVarP(&flags.debug, "debug", "D", false, "force debug logging")
	root.Flags().BoolVarP(&listCommands, "commands", "L", false, "list all commands and exit")
	serve.bind(root)

	root.AddCommand(
		newServeCmd(flags),
		newCommandsCmd(flags),
		newInitCmd(flags),
	)
	return root
}

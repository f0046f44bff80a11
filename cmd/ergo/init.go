// ABOUTME: The init subcommand: writes the built-in defaults as a starter config file
// ABOUTME: Refuses to overwrite an existing file unless --force is given

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/2389/ergo/internal/config"
)

// errConfigExists is returned by init when the target file already exists.
var errConfigExists = errors.New("config file already exists (use --force to overwrite)")

func newInitCmd(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), config.Path(flags.configPath), force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func runInit(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, errConfigExists)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, config.DefaultYAML(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(out, "Wrote %s\n", path)
	fmt.Fprintln(out, "Set ERGO_PASSWORD (or edit ao.accounts) before running 'ergo serve'.")
	return nil
}

// ABOUTME: The commands subcommand: lists the commands the configured bot answers
// ABOUTME: Renders name and description as a table

package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/2389/ergo/internal/builtins"
	"github.com/2389/ergo/internal/command"
)

func newCommandsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommands(cmd.OutOrStdout(), flags)
		},
	}
}

func runCommands(out io.Writer, flags *globalFlags) error {
	cfg, _, err := loadConfig(flags)
	if err != nil {
		return err
	}

	reg := command.NewRegistry(nil)
	if err := builtins.Register(reg, cfg.CommandNames()); err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}

	writeCommandTable(out, reg)
	return nil
}

func writeCommandTable(out io.Writer, reg *command.Registry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Command", "Description"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, desc := range reg.All() {
		table.Append([]string{desc.Name, desc.Description})
	}
	table.Render()
}

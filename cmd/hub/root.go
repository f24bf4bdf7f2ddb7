package main

import (
	"fmt"
	"io"

	"github.com/jrsteele09/go-spawn-hub/internal/version"
	"github.com/spf13/cobra"
)

// newRootCmd builds the hub command tree.
func newRootCmd() *cobra.Command {
	var helpAll bool

	root := &cobra.Command{
		Use:   "hub",
		Short: version.ProductName + ": a multi-user gateway to per-user servers",
		Long: version.ProductName + ` authenticates users, spawns a server for each of them on demand
and proxies /user/<name>/ to it. Other users reach a server only through
the hub's OAuth consent flow and explicit access grants.`,
		Version: version.Version,
		// SilenceUsage keeps runtime errors from printing the usage text.
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if helpAll {
				return printAllHelp(cmd.OutOrStdout(), cmd.Root())
			}
			return cmd.Help()
		},
	}
	root.SetVersionTemplate(`{{printf "hub version %s\n" .Version}}`)
	root.Flags().BoolVar(&helpAll, "help-all", false, "show the help of every command")

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hub",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hub version %s\n", version.Version)
		},
	}
}

// printAllHelp writes the description and usage of cmd and of every command
// below it.
func printAllHelp(w io.Writer, cmd *cobra.Command) error {
	description := cmd.Long
	if description == "" {
		description = cmd.Short
	}
	if _, err := fmt.Fprintf(w, "# %s\n\n%s\n\n%s\n", cmd.CommandPath(), description, cmd.UsageString()); err != nil {
		return err
	}
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		if err := printAllHelp(w, sub); err != nil {
			return err
		}
	}
	return nil
}

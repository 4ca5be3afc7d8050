package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFormatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "format <drive>",
		Short: "Format a drive for the host Windows version",
		Long: `Format reformats one drive. On Windows before Vista it formats FAT32
and converts to NTFS; otherwise it formats NTFS directly.

The exit status is the failing step's exit code (1 if it never ran).`,
		Example: `  usbprep format E:
  usbprep format --os-major 5 --timeout 10m E:`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.startOrchestrator(cmd)
			if err != nil {
				return err
			}

			if err := o.Format(cmd.Context(), args[0]); err != nil {
				return a.finish(o, stepExitError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s formatted (%s)\n", args[0], o.Strategy())
			return a.finish(o, nil)
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newActivateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <drive>",
		Short: "Mark a drive's first partition active",
		Long: `Activate sets the boot indicator on the first partition of a drive.
A partition that is already active is left untouched.`,
		Example: `  usbprep activate E:
  usbprep activate /dev/sdb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.startOrchestrator(cmd)
			if err != nil {
				return err
			}

			if err := o.Activate(cmd.Context(), args[0]); err != nil {
				return a.finish(o, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: first partition is active\n", args[0])
			return a.finish(o, nil)
		},
	}
}

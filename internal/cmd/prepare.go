package cmd

import (
	"github.com/spf13/cobra"
)

func newPrepareCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <drive>...",
		Short: "Format, activate, and install a boot sector on drives",
		Long: `Prepare runs the full workflow on each drive in turn:

  1. format the drive (NTFS, or FAT32 then convert on Windows before Vista)
  2. mark the first partition active
  3. run bootsect /nt60 <drive> /force /mbr, if bootsect can be found

A drive that fails does not stop the others. Ctrl+C kills the running
command and stops the run.`,
		Example: `  usbprep prepare E:
  usbprep prepare --tui --metrics-addr 127.0.0.1:17091 E: F:
  usbprep prepare --skip-format --bootsect D:\boot\bootsect.exe E:`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.startOrchestrator(cmd)
			if err != nil {
				return err
			}

			err = o.Prepare(cmd.Context(), args)
			o.PrintExitSummary()
			if err != nil {
				return a.finish(o, &ExitCodeError{Code: 1, Err: err})
			}
			return a.finish(o, nil)
		},
	}
}

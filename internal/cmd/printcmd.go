package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPrintCmdCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print-cmd <drive>",
		Short: "Print the commands format would run",
		Long: `Print-cmd shows the format strategy selected for the host and the command
lines it would run against a drive, with their scripted answers. Nothing is
executed. Use --os-major to see another Windows version's commands.`,
		Example: `  usbprep print-cmd E:
  usbprep print-cmd --os-major 5 E:`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.newOrchestrator(a.cfg, a.logger, orchestratorOptions(cmd))
			if err != nil {
				return err
			}
			invs, err := o.Commands(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "# host %s, strategy %s\n", o.Host(), o.Strategy())
			for _, inv := range invs {
				fmt.Fprintln(w, inv.String())
				if len(inv.Input) > 0 {
					fmt.Fprintf(w, "#   input %s after %s, timeout %s, killed exit code %d\n",
						strconv.Quote(string(inv.Input)), inv.GracePeriod, inv.Timeout, inv.DefaultExitCode)
				}
			}
			return nil
		},
	}
}

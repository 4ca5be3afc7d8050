package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "usbprep %s (%s/%s, %s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())

			o, err := a.newOrchestrator(a.cfg, a.logger, orchestratorOptions(cmd))
			if err != nil {
				fmt.Fprintf(w, "host: unknown (%v)\n", err)
				return nil
			}
			fmt.Fprintf(w, "host: %s, format strategy: %s\n", o.Host(), o.Strategy())
			return nil
		},
	}
}

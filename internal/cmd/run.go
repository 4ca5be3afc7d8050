package cmd

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/usbprep/internal/process"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		input string
		step  string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run any command under supervision",
		Long: `Run starts a command the way format steps are started: its output is
captured, --input is written to its stdin after the grace period, and it is
killed with --default-exit-code if it outlives --timeout.

--input understands Go escapes, so "Y\nN\n" answers two prompts.
The exit status is the command's exit code.`,
		Example: `  usbprep run --input 'Y\n' --grace 2s -- cmd.exe /C format E: /FS:NTFS /Q
  usbprep run --timeout 5s -- sh -c 'sleep 60'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := decodeInput(input)
			if err != nil {
				return err
			}
			path, err := exec.LookPath(args[0])
			if err != nil {
				return fmt.Errorf("find %s: %w", args[0], err)
			}

			o, err := a.startOrchestrator(cmd)
			if err != nil {
				return err
			}

			out, err := o.Exec(cmd.Context(), process.Invocation{
				Step:  step,
				Path:  path,
				Args:  args,
				Input: answers,
			})
			printOutcome(cmd, out)
			if err != nil {
				return a.finish(o, err)
			}
			if !out.Success() {
				return a.finish(o, NewExitCodeError(exitStatus(out.ExitCode)))
			}
			return a.finish(o, nil)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Scripted answers written to stdin after the grace period")
	cmd.Flags().StringVar(&step, "step", "run", "Step name used in logs and metrics")
	return cmd
}

// decodeInput interprets Go string escapes in s.
func decodeInput(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	decoded, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return nil, fmt.Errorf("invalid --input %q: %w", s, err)
	}
	return []byte(decoded), nil
}

// exitStatus folds a child exit code into the range a process can exit with.
func exitStatus(code int) int {
	if code <= 0 || code > 255 {
		return 1
	}
	return code
}

func printOutcome(cmd *cobra.Command, out process.Outcome) {
	w := cmd.OutOrStdout()
	for _, line := range out.Output {
		fmt.Fprintf(w, "  | %s\n", line)
	}
	fmt.Fprintln(w, out.String())
	if out.InputErr != nil {
		fmt.Fprintf(w, "scripted input not delivered: %v\n", out.InputErr)
	}
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"adwise/src/core/distribution"
	"adwise/src/core/job"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute [poster|email|social-publish|messaging]...",
	Short: "Distribute the completed job's artifact",
	Long: `Distribute runs the given actions against the completed job. Without
arguments every action runs. Actions are independent: each one reports its own
result and a failed action can simply be retried.`,
	RunE: runDistribute,
}

func init() {
	rootCmd.AddCommand(distributeCmd)
}

func runDistribute(cmd *cobra.Command, args []string) error {
	kinds := make([]distribution.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := distribution.ParseKind(arg)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	rt, err := newRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := commandContext(cmd)
	defer stop()

	j, err := rt.resumeCompleted(ctx, cmd)
	if err != nil {
		return err
	}
	if j.State != job.StateCompleted {
		printJob(cmd, j)
	}

	outcomes := rt.dispatcher.FanOut(ctx, kinds...)

	out := cmd.OutOrStdout()
	failed := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			line := fmt.Sprintf("%-15s ok", o.Kind)
			if len(o.PosterRefs) > 0 {
				line += " " + strings.Join(o.PosterRefs, ", ")
			}
			fmt.Fprintln(out, line)
			continue
		}
		failed++
		fmt.Fprintf(out, "%-15s %s: %s\n", o.Kind, o.Err.Kind, o.Err.Reason())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d distribution actions failed", failed, len(outcomes))
	}
	return nil
}

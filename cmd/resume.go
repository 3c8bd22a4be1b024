package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"adwise/src/core/job"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume tracking the persisted job",
	Long: `Resume reads the persisted job id and polls the generation service until the
job completes or fails. It never resubmits. Run it again after a polling error to retry.`,
	RunE: runResume,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the persisted job",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.coordinator.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "job reset")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(resetCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
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
	if j.State == job.StateIdle {
		fmt.Fprintln(cmd.OutOrStdout(), "no active job")
		return nil
	}

	printJob(cmd, j)
	if j.Failure != nil {
		return j.Failure
	}
	return nil
}

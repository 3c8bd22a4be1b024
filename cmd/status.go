package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"adwise/src/storage/kvstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted job and its remote status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	stored, err := rt.store.Get(kvstore.ActiveJobIDKey)
	if err != nil {
		return err
	}
	jobID, ok := stored.Get()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no active job")
		return nil
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	report, err := rt.generation.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch status of %s: %w", jobID, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job: %s\n", jobID)
	fmt.Fprintf(out, "status: %s\n", report.Status)
	if report.ArtifactID != "" {
		fmt.Fprintf(out, "artifact: %s\n", report.ArtifactID)
	}
	return nil
}

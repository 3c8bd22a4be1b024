package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"adwise/src/core/job"
	"adwise/src/storage/minioctrl"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy the completed job's artifact into MinIO",
	RunE:  runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(runtimeOptions{withArchive: true})
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

	archived, err := rt.archiver.Archive(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archived %s (%s, %d bytes) to %s\n",
		archived.Artifact.ID,
		archived.ContentType,
		archived.Size,
		minioctrl.ObjectLocation(archived.Bucket, archived.Object))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"adwise/src/core/job"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit a document or text for generation",
	Long: `Submit a document (--file) or free text (--text) to the generation service.
The job id is persisted so "adwise resume" can pick it up later. With --wait the
command tracks the job until it completes or fails.`,
	Example: `  adwise generate --file deck.pdf --language Hindi --preference branding --wait
  adwise generate --text "Diwali sale on all sarees" --preference lead-generation`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("file", "", "document to upload (.pdf .doc .docx .pptx .jpg .jpeg .png)")
	generateCmd.Flags().String("text", "", "text to generate from")
	generateCmd.Flags().String("language", "English", "output language")
	generateCmd.Flags().String("preference", "concise", "content preference (concise, elaborate, branding, lead-generation)")
	generateCmd.Flags().Bool("wait", false, "wait until the job completes or fails")
	generateCmd.MarkFlagsMutuallyExclusive("file", "text")
	generateCmd.MarkFlagsOneRequired("file", "text")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	payload, err := payloadFromFlags(cmd)
	if err != nil {
		return err
	}

	rt, err := newRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := commandContext(cmd)
	defer stop()

	if err := rt.coordinator.Submit(ctx, payload); err != nil {
		return err
	}

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		printJob(cmd, rt.coordinator.Job())
		return nil
	}

	j, err := waitForJob(ctx, cmd, rt.coordinator)
	printJob(cmd, j)
	if err != nil {
		return err
	}
	if j.Failure != nil {
		return j.Failure
	}
	return nil
}

func payloadFromFlags(cmd *cobra.Command) (job.Payload, error) {
	languageFlag, _ := cmd.Flags().GetString("language")
	preferenceFlag, _ := cmd.Flags().GetString("preference")

	language, err := job.ParseLanguage(languageFlag)
	if err != nil {
		return job.Payload{}, err
	}
	preference, err := job.ParseContentPreference(preferenceFlag)
	if err != nil {
		return job.Payload{}, err
	}

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		text, _ := cmd.Flags().GetString("text")
		return job.NewTextPayload(text, language, preference)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return job.Payload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return job.NewFilePayload(job.FileSource{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, language, preference)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

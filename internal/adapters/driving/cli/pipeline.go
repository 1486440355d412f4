package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
)

var (
	captionOverwrite bool
	embedOverwrite   bool
	embedAll         bool
)

var structureCmd = &cobra.Command{
	Use:   "structure [doc-id]",
	Short: "Extract and structure the document's text blocks",
	Args:  cobra.ExactArgs(1),
	RunE:  runStructure,
}

var captionCmd = &cobra.Command{
	Use:   "caption [doc-id]",
	Short: "Caption the document's tables and figures",
	Long: `Generates descriptions for extracted tables and figures. Only pending
assets are captioned unless --overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runCaption,
}

var embedCmd = &cobra.Command{
	Use:   "embed [doc-id]",
	Short: "Chunk and embed a document",
	Long: `Splits the document's structured blocks into chunks, embeds them and
stores the result. An already-chunked document is a no-op unless --overwrite
is given. With --all, every eligible document is processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEmbed,
}

func init() {
	captionCmd.Flags().BoolVar(&captionOverwrite, "overwrite", false, "re-caption completed assets too")
	embedCmd.Flags().BoolVar(&embedOverwrite, "overwrite", false, "replace existing chunks")
	embedCmd.Flags().BoolVar(&embedAll, "all", false, "process every eligible document")

	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(captionCmd)
	rootCmd.AddCommand(embedCmd)
}

func runStructure(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	report, err := pipelineService.RunStructuring(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("structuring failed: %w", err)
	}
	printReport(cmd, report, "blocks")
	return nil
}

func runCaption(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	report, err := pipelineService.RunCaptioning(context.Background(), args[0], captionOverwrite)
	if err != nil {
		return fmt.Errorf("captioning failed: %w", err)
	}
	printReport(cmd, report, "assets")
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	ctx := context.Background()

	if embedAll {
		if len(args) > 0 {
			return errors.New("--all cannot be combined with a document ID")
		}
		reports, err := pipelineService.RunChunkAndEmbedAll(ctx, embedOverwrite)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		var failed int
		for i := range reports {
			printReport(cmd, &reports[i], "chunks")
			if reports[i].Err != nil {
				failed++
			}
		}
		cmd.Printf("Processed %d documents, %d failed\n", len(reports), failed)
		return nil
	}

	if len(args) == 0 {
		return errors.New("a document ID or --all is required")
	}

	report, err := pipelineService.RunChunkAndEmbed(ctx, args[0], embedOverwrite)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	printReport(cmd, report, "chunks")
	return nil
}

// printReport prints one stage outcome line.
func printReport(cmd *cobra.Command, report *driving.StageReport, unit string) {
	switch {
	case report.Err != nil:
		cmd.Printf("%s: FAILED: %v\n", report.DocumentID, report.Err)
	case report.Skipped:
		cmd.Printf("%s: skipped (already processed)\n", report.DocumentID)
	default:
		cmd.Printf("%s: %d %s written\n", report.DocumentID, report.ItemsWritten, unit)
	}
}

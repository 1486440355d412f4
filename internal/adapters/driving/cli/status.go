package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show a document's pipeline state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	doc, err := pipelineService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename:   %s\n", doc.Filename)
	if doc.Title != "" {
		cmd.Printf("  Title:      %s\n", doc.Title)
	}
	cmd.Printf("  Status:     %s\n", doc.Status)
	cmd.Printf("  Pages:      %d\n", doc.PageCount)
	cmd.Printf("  Size:       %d bytes\n", doc.SizeBytes)
	cmd.Printf("  SHA256:     %s\n", doc.SHA256)
	cmd.Printf("  Registered: %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.ProcessedAt != nil {
		cmd.Printf("  Processed:  %s\n", doc.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.ErrorMessage != "" {
		cmd.Printf("\n  Last error: %s\n", doc.ErrorMessage)
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	docs, err := pipelineService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents registered.")
		return nil
	}

	rows := make([][]string, 0, len(docs))
	for i := range docs {
		title := docs[i].Title
		if title == "" {
			title = docs[i].Filename
		}
		errMark := ""
		if docs[i].ErrorMessage != "" {
			errMark = "!"
		}
		rows = append(rows, []string{
			docs[i].ID,
			title,
			string(docs[i].Status) + errMark,
			fmt.Sprintf("%d", docs[i].PageCount),
			docs[i].CreatedAt.Format("2006-01-02"),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("ID", "Title", "Status", "Pages", "Registered").
		Rows(rows...)

	cmd.Println(t)
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

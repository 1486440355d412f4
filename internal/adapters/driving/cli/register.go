package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
)

var (
	registerTitle     string
	registerSourceURL string
	registerPDFURL    string
	registerPublished string
)

var registerCmd = &cobra.Command{
	Use:   "register [pdf-path]",
	Short: "Register a PDF into the pipeline",
	Long: `Stores the PDF, computes its integrity hash and creates a pending
document. Registering the same content twice returns the existing document.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and everything derived from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	registerCmd.Flags().StringVar(&registerTitle, "title", "", "document title")
	registerCmd.Flags().StringVar(&registerSourceURL, "source-url", "", "page the document was discovered on")
	registerCmd.Flags().StringVar(&registerPDFURL, "pdf-url", "", "direct download location")
	registerCmd.Flags().StringVar(&registerPublished, "published", "", "publication date (yyyy-mm-dd)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	if registerService == nil {
		return errors.New("register service not configured")
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	id, err := registerService.Register(context.Background(), filepath.Base(path), data, driving.RegisterMetadata{
		Title:       registerTitle,
		SourceURL:   registerSourceURL,
		PDFURL:      registerPDFURL,
		PublishedAt: registerPublished,
	})
	if err != nil {
		return fmt.Errorf("failed to register document: %w", err)
	}

	cmd.Printf("Registered: %s\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if registerService == nil {
		return errors.New("register service not configured")
	}

	docID := args[0]
	if err := registerService.Delete(context.Background(), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted: %s\n", docID)
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

var (
	askTopK     int
	askDocument string
	askJSON     bool

	// askDefaultTopK is the fallback when --top-k is not given, set from
	// the retrieval config by SetServices.
	askDefaultTopK = 5
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed corpus",
	Long: `Embeds the question, retrieves the closest chunks by cosine distance
and generates a cited answer. Without a completion service configured, the
ranked chunks are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "n", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().StringVar(&askDocument, "document", "", "restrict retrieval to one document ID")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}

	topK := askTopK
	if topK <= 0 {
		topK = askDefaultTopK
	}

	answer, err := askService.Ask(context.Background(), args[0], topK, askDocument)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if answer.Text != "" {
		cmd.Println(answer.Text)
		cmd.Println()
	}

	printSources(cmd, answer.Sources)
	return nil
}

func printSources(cmd *cobra.Command, sources []domain.RetrievedChunk) {
	if len(sources) == 0 {
		cmd.Println("No matching chunks found.")
		return
	}

	cmd.Println("Sources:")
	for i := range sources {
		title := sources[i].Document.Title
		if title == "" {
			title = sources[i].Document.Filename
		}
		cmd.Printf("  [%d] %s p.%d (distance %.4f)\n",
			i+1, title, sources[i].Chunk.Page, sources[i].Distance)

		snippet := sources[i].Chunk.Text
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		cmd.Printf("      %s\n\n", snippet)
	}
}

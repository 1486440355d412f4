// Package cli implements the tvrag command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/watcher"
)

// version is set from main at build time.
var version = "dev"

// Services configured by main before Execute.
var (
	registerService driving.RegisterService
	pipelineService driving.PipelineService
	askService      driving.AskService
	inboxWatcher    *watcher.Watcher
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "tvrag",
	Short: "Financial research PDF pipeline and question answering",
	Long: `tvrag ingests financial research PDFs, structures and chunks their
content, embeds the chunks, and answers questions over the indexed corpus
with page-level citations.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the commands need.
type Services struct {
	Register driving.RegisterService
	Pipeline driving.PipelineService
	Ask      driving.AskService
	Watcher  *watcher.Watcher

	// AskTopK is the configured default chunk count for ask; the --top-k
	// flag still overrides it.
	AskTopK int
}

// SetServices wires the application services into the commands.
func SetServices(s Services) {
	registerService = s.Register
	pipelineService = s.Pipeline
	askService = s.Ask
	inboxWatcher = s.Watcher
	if s.AskTopK > 0 {
		askDefaultTopK = s.AskTopK
	}
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

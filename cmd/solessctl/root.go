package main

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/soless-ai/soless/internal/app"
	"github.com/soless-ai/soless/internal/config"
	"github.com/soless-ai/soless/internal/logging"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)
)

type rootOptions struct {
	envFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "solessctl",
		Short: "Inspect and chat with the SOLess knowledge assistant",
		Long: `solessctl works directly against the configured document, persona and
conversation stores, so operators can check what the assistant knows
without going through the HTTP API.

Quick Start:
  solessctl documents                 # List ingested documents
  solessctl knowledge                 # Print the assembled knowledge base
  solessctl prompt "What is SOLess?"  # Show the prompt a message would produce
  solessctl chat                      # Talk to the assistant`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "dotenv file to load before the environment")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level to stderr")

	cmd.AddCommand(
		newDocumentsCmd(opts),
		newKnowledgeCmd(opts),
		newPromptCmd(opts),
		newChatCmd(opts),
	)
	return cmd
}

// open loads config and wires the core for one command invocation.
func (o *rootOptions) open(cmd *cobra.Command, appOpts app.Options) (*app.Core, error) {
	cfg, err := config.LoadFile(o.envFile)
	if err != nil {
		return nil, err
	}

	cfg.Log.Level = "warn"
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	slog.SetDefault(logging.NewWriter(cmd.ErrOrStderr(), cfg.Log))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.Build(ctx, cfg, appOpts)
}

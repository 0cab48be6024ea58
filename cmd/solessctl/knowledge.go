package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soless-ai/soless/internal/app"
)

func newKnowledgeCmd(opts *rootOptions) *cobra.Command {
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Print the assembled knowledge base",
		Long:  `Builds the knowledge base exactly as the next prompt would embed it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := opts.open(cmd, app.Options{InMemoryConversations: true})
			if err != nil {
				return err
			}
			defer core.Close()

			blob := core.Knowledge.Build(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("%d characters", len(blob))))
			if !statsOnly {
				fmt.Fprintln(out, blob)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statsOnly, "stats", false, "Only print the size of the knowledge base")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soless-ai/soless/internal/app"
)

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List the documents the knowledge base is built from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := opts.open(cmd, app.Options{InMemoryConversations: true})
			if err != nil {
				return err
			}
			defer core.Close()

			infos, err := core.Documents.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing documents: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d document(s)", len(infos))))
			for _, info := range infos {
				fmt.Fprintf(out, "  %-40s %-9s %s\n",
					info.Filename, info.Format,
					metaStyle.Render(fmt.Sprintf("%d bytes, %s", info.Size, info.ModifiedAt.Format("2006-01-02 15:04"))))
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soless-ai/soless/internal/app"
	"github.com/soless-ai/soless/internal/prompt"
)

func newPromptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <message>",
		Short: "Show the prompt a first message would send to the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := opts.open(cmd, app.Options{InMemoryConversations: true})
			if err != nil {
				return err
			}
			defer core.Close()

			ctx := cmd.Context()
			p := prompt.Build(strings.Join(args, " "), nil, core.Personas.Get(ctx), core.Knowledge.Build(ctx))
			fmt.Fprint(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/soless-ai/soless/internal/app"
	"github.com/soless-ai/soless/internal/chat"
	"github.com/soless-ai/soless/internal/completion"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		conversationID string
		raw            bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Starts (or with --conversation, resumes) a conversation and reads one
message per line from stdin. Replies are rendered as Markdown.
Type /quit or send EOF to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := opts.open(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer core.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if conversationID == "" {
				if conversationID, err = core.Chat.CreateConversation(ctx); err != nil {
					return err
				}
			} else if _, err := core.Chat.GetConversation(ctx, conversationID); err != nil {
				return err
			}

			render := func(s string) string { return s + "\n" }
			if !raw {
				r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
				if err != nil {
					return fmt.Errorf("creating markdown renderer: %w", err)
				}
				render = func(s string) string {
					rendered, err := r.Render(s)
					if err != nil {
						return s + "\n"
					}
					return rendered
				}
			}

			name := core.Personas.Get(ctx).Name
			fmt.Fprintln(out, headerStyle.Render(name))
			meta := "conversation " + conversationID
			if core.Gateway.Mode() == completion.ModeDemo {
				meta += " (demo mode)"
			}
			fmt.Fprintln(out, metaStyle.Render(meta))

			return chatLoop(cmd.InOrStdin(), out, replier(ctx, core.Chat, conversationID), name, render)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Resume an existing conversation id")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print replies without Markdown rendering")
	return cmd
}

type turnSender interface {
	SendMessage(ctx context.Context, id, text string) (string, error)
}

// replier answers one terminal line. Failures are logged in full and shown
// as the apology, like the other channels.
func replier(ctx context.Context, svc turnSender, conversationID string) func(string) string {
	return func(text string) string {
		reply, err := svc.SendMessage(ctx, conversationID, text)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				return ""
			}
			slog.Error("processing terminal message", "error", err, "conversation_id", conversationID)
			return chat.ApologyText
		}
		return reply
	}
}

func chatLoop(in io.Reader, out io.Writer, send func(string) string, name string, render func(string) string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, userStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return nil
		}

		reply := send(text)
		if reply == "" {
			continue
		}
		fmt.Fprintln(out, assistantStyle.Render(name+">"))
		fmt.Fprint(out, render(reply))
	}
}

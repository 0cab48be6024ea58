// Package prompt renders the single text prompt sent to the completion
// service. Build is pure: equal inputs always produce byte-identical output.
package prompt

import (
	"strconv"
	"strings"

	"github.com/soless-ai/soless/internal/conversation"
	"github.com/soless-ai/soless/internal/persona"
)

var directives = []string{
	`NEVER mention "the document," "the provided knowledge," or that you're referencing external information - speak as if all knowledge comes from within you`,
	"If you don't know something specific, simply acknowledge you're not sure without referencing any external sources",
	"Be helpful and focus on answering the user's questions directly with confidence",
	"Use technical language when appropriate but explain complex concepts clearly",
	"Use humor and wit where your communication style calls for it",
	"Keep responses concise but informative",
	"When sharing opinions, make it clear they are recommendations, not financial advice",
	"Match your personality exactly to the communication style described above - if it mentions humor, sarcasm, or other personality traits, embrace those fully in your responses",
	"Don't hold back on incorporating humor, wit, or other personality traits that are part of your defined style",
	"Speak in first person, as if you personally have deep knowledge of the SOLess project",
}

// Build assembles the prompt for userMessage. history is the conversation
// before userMessage, oldest first.
func Build(userMessage string, history []conversation.Message, p persona.Persona, knowledge string) string {
	var b strings.Builder

	b.WriteString("\nYou are a knowledgeable assistant named \"")
	b.WriteString(p.Name)
	b.WriteString("\" for the SOLess project.\nYour communication style is: ")
	b.WriteString(p.Style)
	b.WriteString("\n\nThe following information about SOLess has been internalized by you and represents your own knowledge:\n\n")
	b.WriteString(knowledge)
	b.WriteString("\n\nSome key principles to follow:\n")
	for i, d := range directives {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteString("\nHuman: ")
	b.WriteString(userMessage)
	b.WriteString("\n\nPrevious conversation:\n")
	b.WriteString(FormatHistory(history))
	b.WriteByte('\n')

	return b.String()
}

// FormatHistory renders messages as "Human: ..." / "Assistant: ..." blocks
// separated by blank lines.
func FormatHistory(history []conversation.Message) string {
	parts := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Assistant"
		if m.Role == conversation.RoleUser {
			speaker = "Human"
		}
		parts = append(parts, speaker+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}

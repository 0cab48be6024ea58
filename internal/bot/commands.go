package bot

import (
	"strings"

	"github.com/soless-ai/soless/internal/chat"
)

// Fixed replies.
const (
	WelcomeText = `*Welcome to the SOLess Project Bot!*

I'm here to answer your questions about the SOLess project on Solana.

How can I help you today?`

	HelpText = `*SOLess Project Bot Help*

I can answer your questions about the SOLess project on Solana.

Commands:
/start - Start our conversation
/help - Show this help message
/about - Learn about the SOLess project

Just ask me anything about SOLess!`

	AboutText = `*About SOLess Project*

SOLess is a project built on Solana. Ask me about its features, tokenomics or roadmap and I'll answer from the project documentation.`

	// ApologyText is sent whenever a turn fails.
	ApologyText = chat.ApologyText

	// ConnectFailedText is sent when no conversation could be created.
	ConnectFailedText = "Sorry, I'm having trouble connecting. Please try again later."
)

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdHelp
	cmdAbout
	cmdUnknown
)

// parseCommand recognizes "/name" and "/name@bot" forms at the start of text.
func parseCommand(text string) command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return cmdNone
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(name) {
	case "start":
		return cmdStart
	case "help":
		return cmdHelp
	case "about":
		return cmdAbout
	default:
		return cmdUnknown
	}
}

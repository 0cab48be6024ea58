// Package knowledge builds the knowledge blob embedded in every prompt from
// the document store and the persona background.
package knowledge

import (
	"strings"
)

// Preamble opens every knowledge blob.
const Preamble = `# SOLess Project

## Core Concept
SOLess is a project built on the Solana blockchain. The sections below describe its design, token, and ecosystem.`

// NoDocuments stands in for the document sections when none have text.
const NoDocuments = "No documents found."

// Section is one normalized document.
type Section struct {
	Filename string
	Text     string
}

// Assemble merges the preamble, the persona background and the document
// sections, in that order. Sections with blank text are left out.
func Assemble(background string, sections []Section) string {
	var b strings.Builder
	b.WriteString(Preamble)

	if strings.TrimSpace(background) != "" {
		b.WriteString("\n\n## Background\n")
		b.WriteString(background)
	}

	written := 0
	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		b.WriteString("\n\n# Document: ")
		b.WriteString(s.Filename)
		b.WriteByte('\n')
		b.WriteString(s.Text)
		written++
	}
	if written == 0 {
		b.WriteString("\n\n")
		b.WriteString(NoDocuments)
	}

	return b.String()
}

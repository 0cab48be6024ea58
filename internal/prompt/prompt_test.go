package prompt

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soless-ai/soless/internal/conversation"
	"github.com/soless-ai/soless/internal/persona"
)

func history() []conversation.Message {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []conversation.Message{
		{Role: conversation.RoleUser, Content: "gm", Timestamp: ts},
		{Role: conversation.RoleAssistant, Content: "gm! How can I help?", Timestamp: ts},
	}
}

func TestBuild_Deterministic(t *testing.T) {
	p := persona.Defaults()
	a := Build("What is SOLess?", history(), p, "KNOWLEDGE")
	b := Build("What is SOLess?", history(), p, "KNOWLEDGE")

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("prompt not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuild_SectionOrder(t *testing.T) {
	p := persona.Persona{Name: "Sol", Style: "Dry wit", Background: "bg"}
	out := Build("What is SOLess?", history(), p, "KNOWLEDGE-BLOB")

	order := []string{
		`named "Sol"`,
		"Your communication style is: Dry wit",
		"KNOWLEDGE-BLOB",
		"Some key principles to follow:",
		"1. NEVER mention",
		"10. Speak in first person",
		"Human: What is SOLess?",
		"Previous conversation:",
		"Human: gm\n\nAssistant: gm! How can I help?",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		require.NotEqual(t, -1, idx, "missing %q", marker)
		assert.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
}

func TestBuild_KnowledgeVerbatim(t *testing.T) {
	knowledge := "# SOLess Project\n\n  indented\tand tabbed  \n\n# Document: a.md\ntext"
	out := Build("hi", nil, persona.Defaults(), knowledge)
	assert.Contains(t, out, knowledge)
}

func TestBuild_EmptyHistory(t *testing.T) {
	out := Build("hi", nil, persona.Defaults(), "K")
	assert.True(t, strings.HasSuffix(out, "Previous conversation:\n\n"))
}

func TestBuild_DirectivesNumbered(t *testing.T) {
	out := Build("hi", nil, persona.Defaults(), "K")
	for i, d := range directives {
		assert.Contains(t, out, "\n"+strconv.Itoa(i+1)+". "+d+"\n")
	}
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory(history())
	want := "Human: gm\n\nAssistant: gm! How can I help?"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, FormatHistory(nil))
}

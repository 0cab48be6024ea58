package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"github.com/soless-ai/soless/internal/metrics"
)

// Normalizer turns raw document bytes into plain text. It is safe for
// concurrent use.
type Normalizer struct {
	md goldmark.Markdown
}

func NewNormalizer() *Normalizer {
	return &Normalizer{md: goldmark.New()}
}

// Normalize extracts plain text from doc. On failure it returns "" and an
// *IngestionError; callers treat that as an empty document.
func (n *Normalizer) Normalize(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch doc.Format {
	case FormatPDF:
		text, err = extractPDF(doc.Content)
	case FormatMarkdown:
		text, err = n.markdownText(doc.Content)
	case FormatText:
		text = strings.ToValidUTF8(string(doc.Content), "�")
	default:
		err = ErrUnsupportedFormat
	}

	if err != nil {
		metrics.IngestionFailuresTotal.WithLabelValues(string(doc.Format)).Inc()
		return "", &IngestionError{Filename: doc.Filename, Format: doc.Format, Err: err}
	}
	return text, nil
}

// extractPDF recovers from reader panics, which malformed files can trigger.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	if len(data) == 0 {
		return "", fmt.Errorf("empty pdf")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(out), nil
}

// markdownText renders to HTML, drops every tag and collapses whitespace.
func (n *Normalizer) markdownText(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := n.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	var sb strings.Builder
	z := html.NewTokenizer(&buf)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("tokenizing html: %w", err)
			}
			return strings.Join(strings.Fields(sb.String()), " "), nil
		case html.TextToken:
			sb.Write(z.Text())
		default:
			sb.WriteByte(' ')
		}
	}
}

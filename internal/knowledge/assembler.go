package knowledge

import (
	"context"
	"log/slog"

	"github.com/soless-ai/soless/internal/documents"
	"github.com/soless-ai/soless/internal/metrics"
	"github.com/soless-ai/soless/internal/persona"
)

// Builder produces the current knowledge blob. Build never fails; problems
// with individual documents are logged and the document is left out.
type Builder interface {
	Build(ctx context.Context) string
}

type source struct {
	store      documents.Store
	normalizer *documents.Normalizer
	persona    persona.Store
}

// snapshot reads every listed document. Unreadable documents are skipped.
func (s source) snapshot(ctx context.Context) []documents.Document {
	infos, err := s.store.List(ctx)
	if err != nil {
		slog.Error("listing documents for knowledge base", "error", err)
		return nil
	}

	docs := make([]documents.Document, 0, len(infos))
	for _, info := range infos {
		data, err := s.store.Read(ctx, info.Filename)
		if err != nil {
			slog.Warn("skipping unreadable document", "filename", info.Filename, "error", err)
			continue
		}
		docs = append(docs, documents.Document{Filename: info.Filename, Format: info.Format, Content: data})
	}
	return docs
}

func (s source) normalize(ctx context.Context, doc documents.Document) string {
	text, err := s.normalizer.Normalize(ctx, doc)
	if err != nil {
		slog.Warn("document produced no text", "filename", doc.Filename, "error", err)
		return ""
	}
	return text
}

// Assembler rebuilds the blob from scratch on every call.
type Assembler struct {
	src source
}

func NewAssembler(store documents.Store, normalizer *documents.Normalizer, personas persona.Store) *Assembler {
	return &Assembler{src: source{store: store, normalizer: normalizer, persona: personas}}
}

func (a *Assembler) Build(ctx context.Context) string {
	docs := a.src.snapshot(ctx)

	sections := make([]Section, 0, len(docs))
	for _, doc := range docs {
		sections = append(sections, Section{Filename: doc.Filename, Text: a.src.normalize(ctx, doc)})
	}

	metrics.KnowledgeBuildsTotal.WithLabelValues("uncached").Inc()
	return Assemble(a.src.persona.Get(ctx).Background, sections)
}

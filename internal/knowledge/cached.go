package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/soless-ai/soless/internal/documents"
	"github.com/soless-ai/soless/internal/metrics"
	"github.com/soless-ai/soless/internal/persona"
)

// CachedAssembler memoizes blobs by a fingerprint of the background and every
// document's name and bytes, so any content change yields a fresh blob.
// Normalized text is memoized per document content, so adding one file only
// normalizes that file.
type CachedAssembler struct {
	src   source
	blobs *cache.Cache
	texts *cache.Cache
	group singleflight.Group
}

func NewCachedAssembler(store documents.Store, normalizer *documents.Normalizer, personas persona.Store, ttl time.Duration) *CachedAssembler {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CachedAssembler{
		src:   source{store: store, normalizer: normalizer, persona: personas},
		blobs: cache.New(ttl, 0),
		texts: cache.New(ttl, 0),
	}
}

type fingerprinted struct {
	doc  documents.Document
	hash string
}

func (c *CachedAssembler) Build(ctx context.Context) string {
	docs := c.src.snapshot(ctx)
	background := c.src.persona.Get(ctx).Background

	fps := make([]fingerprinted, len(docs))
	for i, d := range docs {
		fps[i] = fingerprinted{doc: d, hash: contentHash(d)}
	}
	key := fingerprint(background, fps)

	if blob, ok := c.blobs.Get(key); ok {
		metrics.KnowledgeBuildsTotal.WithLabelValues("hit").Inc()
		return blob.(string)
	}

	// Detached so one caller's cancellation cannot poison the shared result
	buildCtx := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do(key, func() (any, error) {
		sections := make([]Section, 0, len(fps))
		for _, f := range fps {
			sections = append(sections, Section{Filename: f.doc.Filename, Text: c.text(buildCtx, f)})
		}
		blob := Assemble(background, sections)

		c.blobs.DeleteExpired()
		c.blobs.SetDefault(key, blob)
		metrics.KnowledgeBuildsTotal.WithLabelValues("miss").Inc()
		return blob, nil
	})
	return v.(string)
}

// Warm rebuilds the blob for the current snapshot.
func (c *CachedAssembler) Warm(ctx context.Context) {
	c.Build(ctx)
}

func (c *CachedAssembler) text(ctx context.Context, f fingerprinted) string {
	if t, ok := c.texts.Get(f.hash); ok {
		c.texts.SetDefault(f.hash, t)
		return t.(string)
	}
	text := c.src.normalize(ctx, f.doc)
	c.texts.DeleteExpired()
	c.texts.SetDefault(f.hash, text)
	return text
}

func contentHash(d documents.Document) string {
	h := sha256.New()
	writeField(h, []byte(d.Format))
	writeField(h, d.Content)
	return hex.EncodeToString(h.Sum(nil))
}

func fingerprint(background string, docs []fingerprinted) string {
	h := sha256.New()
	writeField(h, []byte(background))
	for _, d := range docs {
		writeField(h, []byte(d.doc.Filename))
		writeField(h, []byte(d.hash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes b so adjacent fields cannot run together.
func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

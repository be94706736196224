package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/models"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrMixedSources      = errors.New("units come from more than one document")
	ErrIndexClosed       = errors.New("index has been closed")
)

const (
	collectionName = "document_pages"
	metaPageIndex  = "page_index"
	metaOrdinal    = "ordinal"
)

// Index is an immutable in-memory vector index over one document's pages.
// It is safe for concurrent Search calls.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	units      []models.TextUnit
	source     string
	dimension  int
	closed     atomic.Bool
}

// Build embeds units and stores them in a fresh chromem collection.
// An empty unit list fails with models.ErrEmptyCorpus.
func Build(ctx context.Context, embedder embeddings.Embedder, units []models.TextUnit) (*Index, error) {
	if len(units) == 0 {
		return nil, models.ErrEmptyCorpus
	}

	source := units[0].SourceName
	texts := make([]string, len(units))
	for i, u := range units {
		if u.SourceName != source {
			return nil, fmt.Errorf("%w: %q and %q", ErrMixedSources, source, u.SourceName)
		}
		texts[i] = u.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed units: %w", err)
	}
	if len(vectors) != len(units) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d units", len(vectors), len(units))
	}

	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	docs := make([]chromem.Document, len(units))
	for i, u := range units {
		if len(vectors[i]) != dimension {
			return nil, fmt.Errorf("%w: unit %d has %d, expected %d", ErrDimensionMismatch, i, len(vectors[i]), dimension)
		}
		docs[i] = chromem.Document{
			ID:      strconv.Itoa(i),
			Content: u.Content,
			Metadata: map[string]string{
				metaPageIndex: strconv.Itoa(u.PageIndex),
				metaOrdinal:   strconv.Itoa(i),
			},
			Embedding: vectors[i],
		}
	}

	db := chromem.NewDB()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	c, err := db.CreateCollection(collectionName, map[string]string{"source": source}, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Debug().Str("source", source).Int("units", len(units)).Int("dimension", dimension).Msg("Built index")

	stored := make([]models.TextUnit, len(units))
	copy(stored, units)
	return &Index{
		db:         db,
		collection: c,
		embedder:   embedder,
		units:      stored,
		source:     source,
		dimension:  dimension,
	}, nil
}

// Search returns up to k units closest to query in ascending distance order.
// Equal distances keep ingestion order.
func (i *Index) Search(ctx context.Context, query string, k int) ([]models.ScoredUnit, error) {
	if i.closed.Load() {
		return nil, ErrIndexClosed
	}
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(queryVec) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(queryVec), i.dimension)
	}

	// rank the whole collection so tie-breaking does not depend on chromem's heap order
	results, err := i.collection.QueryEmbedding(ctx, queryVec, i.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	type hit struct {
		ordinal    int
		similarity float32
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		ordinal, err := strconv.Atoi(r.Metadata[metaOrdinal])
		if err != nil || ordinal < 0 || ordinal >= len(i.units) {
			return nil, fmt.Errorf("corrupt ordinal %q in result %s", r.Metadata[metaOrdinal], r.ID)
		}
		hits = append(hits, hit{ordinal: ordinal, similarity: r.Similarity})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].similarity != hits[b].similarity {
			return hits[a].similarity > hits[b].similarity
		}
		return hits[a].ordinal < hits[b].ordinal
	})

	if k > len(hits) {
		k = len(hits)
	}
	out := make([]models.ScoredUnit, k)
	for j := 0; j < k; j++ {
		out[j] = models.ScoredUnit{
			Unit:     i.units[hits[j].ordinal],
			Distance: 1 - hits[j].similarity,
		}
	}
	return out, nil
}

// Close drops the collection. Later searches fail with ErrIndexClosed.
func (i *Index) Close() error {
	if i.closed.Swap(true) {
		return nil
	}
	if err := i.db.DeleteCollection(i.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (i *Index) Len() int { return len(i.units) }

func (i *Index) Source() string { return i.source }

func (i *Index) Dimension() int { return i.dimension }

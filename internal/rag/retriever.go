package rag

import (
	"context"

	"document-qa/internal/models"
)

// Searcher is any similarity search over page units.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.ScoredUnit, error)
}

// RangeRetriever restricts a Searcher's top-k results to a page range.
type RangeRetriever struct {
	searcher Searcher
}

func NewRangeRetriever(searcher Searcher) *RangeRetriever {
	return &RangeRetriever{searcher: searcher}
}

// Retrieve asks for the top k units and keeps those inside pr, in ranking order.
// An empty result is not an error.
func (r *RangeRetriever) Retrieve(ctx context.Context, query string, k int, pr models.PageRange) ([]models.TextUnit, error) {
	hits, err := r.searcher.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return FilterByRange(hits, pr), nil
}

// FilterByRange keeps hits whose page index lies in pr without re-ranking.
func FilterByRange(hits []models.ScoredUnit, pr models.PageRange) []models.TextUnit {
	units := make([]models.TextUnit, 0, len(hits))
	for _, h := range hits {
		if pr.Contains(h.Unit.PageIndex) {
			units = append(units, h.Unit)
		}
	}
	return units
}

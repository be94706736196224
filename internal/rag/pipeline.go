package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/metrics"
	"document-qa/internal/models"
)

// Pipeline answers one query at a time against a caller-supplied index and range.
// It keeps no state between calls.
type Pipeline struct {
	composer *Composer
	topK     int
	metrics  *metrics.Metrics
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(composer *Composer, topK int, opts ...Option) *Pipeline {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	p := &Pipeline{composer: composer, topK: topK}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer short-circuits greetings, otherwise retrieves within pr and composes.
func (p *Pipeline) Answer(ctx context.Context, query string, index Searcher, pr models.PageRange) (models.Answer, error) {
	normalized := NormalizeQuery(query)
	if IsGreeting(normalized) {
		p.metrics.RecordQuery(metrics.OutcomeGreeting)
		return models.Answer{Text: models.GreetingResponse, CitedPages: []int{}, Greeting: true}, nil
	}
	if normalized == "" {
		return models.Answer{}, models.ErrEmptyQuery
	}
	query = strings.TrimSpace(query)

	start := time.Now()
	units, err := NewRangeRetriever(index).Retrieve(ctx, query, p.topK, pr)
	p.metrics.ObserveStage(metrics.StageRetrieve, time.Since(start))
	if err != nil {
		p.metrics.RecordQuery(metrics.OutcomeError)
		return models.Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}
	p.metrics.ObserveRetrieved(len(units))
	log.Debug().Str("query", query).Int("top_k", p.topK).Int("in_range", len(units)).
		Int("range_start", pr.Start).Int("range_end", pr.End).Msg("Retrieved context")

	start = time.Now()
	comp, err := p.composer.Compose(ctx, query, units)
	p.metrics.ObserveStage(metrics.StageCompose, time.Since(start))
	if err != nil {
		p.metrics.RecordQuery(metrics.OutcomeError)
		return models.Answer{}, err
	}

	if comp.Refused {
		p.metrics.RecordQuery(metrics.OutcomeRefused)
	} else {
		p.metrics.RecordQuery(metrics.OutcomeAnswered)
	}
	return models.Answer{Text: comp.Answer, CitedPages: comp.CitedPages, Refused: comp.Refused}, nil
}

// NormalizeQuery lowercases, trims and strips trailing "!?." characters.
func NormalizeQuery(query string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(query)), "!?.")
}

func IsGreeting(normalized string) bool {
	for _, g := range models.Greetings {
		if normalized == g {
			return true
		}
	}
	return false
}

// FormatMessage renders the answer followed by its citation footer.
func FormatMessage(a models.Answer) string {
	if a.Greeting {
		return a.Text
	}
	return a.Text + "\n\nSources: Page " + FormatPages(a.CitedPages)
}

// FormatPages joins page numbers with ", " or returns "N/A".
func FormatPages(pages []int) string {
	if len(pages) == 0 {
		return "N/A"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

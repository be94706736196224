package rag

import (
	"context"
	"sync"

	"document-qa/internal/models"
)

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type stubSearcher struct {
	hits  []models.ScoredUnit
	err   error
	calls int
	lastK int
}

func (s *stubSearcher) Search(_ context.Context, _ string, k int) ([]models.ScoredUnit, error) {
	s.calls++
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func hitsOnPages(pages ...int) []models.ScoredUnit {
	hits := make([]models.ScoredUnit, len(pages))
	for i, p := range pages {
		hits[i] = models.ScoredUnit{
			Unit:     models.TextUnit{Content: "page text", PageIndex: p, SourceName: "doc.pdf"},
			Distance: float32(i) * 0.1,
		}
	}
	return hits
}

func unitsOnPages(pages ...int) []models.TextUnit {
	var units []models.TextUnit
	for _, h := range hitsOnPages(pages...) {
		units = append(units, h.Unit)
	}
	return units
}

func pageIndexes(units []models.TextUnit) []int {
	out := make([]int, len(units))
	for i, u := range units {
		out[i] = u.PageIndex
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package rag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// Composition is the composer's result. CitedPages are 1-based and ascending.
type Composition struct {
	Answer     string
	CitedPages []int
	Refused    bool
}

// Composer turns a query and its retrieved context into a grounded answer.
type Composer struct {
	generator llmservice.Generator
	provider  string
}

func NewComposer(generator llmservice.Generator) *Composer {
	c := &Composer{generator: generator}
	if n, ok := generator.(llmservice.Named); ok {
		c.provider = n.Name()
	}
	return c
}

// Compose makes exactly one model call. Failures come back as *models.LanguageModelError.
func (c *Composer) Compose(ctx context.Context, query string, units []models.TextUnit) (Composition, error) {
	prompt := BuildPrompt(query, units)

	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return Composition{}, &models.LanguageModelError{Provider: c.provider, Err: err}
	}
	// refusal is judged on the raw output, reasoning blocks included
	if IsRefusal(raw) {
		log.Debug().Str("query", query).Int("context_units", len(units)).Msg("Model answer normalized to refusal")
		return Composition{Answer: models.RefusalResponse, CitedPages: []int{}, Refused: true}, nil
	}
	answer := strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))
	return Composition{Answer: answer, CitedPages: CitedPages(units)}, nil
}

// BuildPrompt joins the units' content in retrieval order into the grounded template.
func BuildPrompt(query string, units []models.TextUnit) string {
	var context strings.Builder
	for i, u := range units {
		if i > 0 {
			context.WriteString(models.ContextSeparator)
		}
		context.WriteString(u.Content)
	}
	return fmt.Sprintf(models.GroundedPromptTemplate, context.String(), query)
}

// IsRefusal reports whether answer contains any not-found phrase, ignoring case.
func IsRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range models.NotFoundPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// CitedPages returns the distinct 1-based page numbers of units, ascending.
func CitedPages(units []models.TextUnit) []int {
	seen := make(map[int]struct{}, len(units))
	pages := make([]int, 0, len(units))
	for _, u := range units {
		n := u.PageNumber()
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}

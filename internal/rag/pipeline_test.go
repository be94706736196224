package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"document-qa/internal/chromemdb"
	"document-qa/internal/embedding"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	pdffixture "document-qa/internal/testutil"
)

func TestNormalizeQuery(t *testing.T) {
	tests := map[string]string{
		"  Hello!  ":          "hello",
		"GOOD MORNING?!.":     "good morning",
		"what is the budget?": "what is the budget",
		"hello !":             "hello ",
		"":                    "",
	}
	for in, want := range tests {
		if got := NormalizeQuery(in); got != want {
			t.Fatalf("NormalizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGreetingShortCircuit(t *testing.T) {
	g := &stubGenerator{reply: "unused"}
	s := &stubSearcher{hits: hitsOnPages(0)}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := NewPipeline(NewComposer(g), 7, WithMetrics(m))

	for _, q := range []string{"Hello!", "hi", "  Good Evening. ", "HEY?"} {
		ans, err := p.Answer(context.Background(), q, s, models.PageRange{Start: 0, End: 0})
		if err != nil {
			t.Fatalf("Answer(%q): %v", q, err)
		}
		if !ans.Greeting || ans.Text != models.GreetingResponse || len(ans.CitedPages) != 0 {
			t.Fatalf("Answer(%q) = %+v, want greeting", q, ans)
		}
	}
	if s.calls != 0 || g.calls() != 0 {
		t.Fatalf("greeting must not retrieve or compose: search=%d generate=%d", s.calls, g.calls())
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeGreeting)); got != 4 {
		t.Fatalf("expected 4 greetings recorded, got %v", got)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	p := NewPipeline(NewComposer(&stubGenerator{}), 0)
	if _, err := p.Answer(context.Background(), " ?! ", &stubSearcher{}, models.PageRange{}); !errors.Is(err, models.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestAnswerOutOfRangeIsRefusal(t *testing.T) {
	g := &stubGenerator{reply: "The answer is not found in the provided pages."}
	s := &stubSearcher{hits: hitsOnPages(0, 1)}
	p := NewPipeline(NewComposer(g), 7)

	ans, err := p.Answer(context.Background(), "what is the budget?", s, models.PageRange{Start: 5, End: 6})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !ans.Refused || ans.Text != models.RefusalResponse || len(ans.CitedPages) != 0 {
		t.Fatalf("expected refusal, got %+v", ans)
	}
	if strings.Contains(g.prompts[0], "page text") {
		t.Fatalf("out of range units leaked into prompt:\n%s", g.prompts[0])
	}
}

func TestAnswerPropagatesModelError(t *testing.T) {
	g := &stubGenerator{err: errors.New("network down")}
	p := NewPipeline(NewComposer(g), 7)

	_, err := p.Answer(context.Background(), "q", &stubSearcher{hits: hitsOnPages(0)}, models.PageRange{Start: 0, End: 0})
	var lmErr *models.LanguageModelError
	if !errors.As(err, &lmErr) {
		t.Fatalf("expected LanguageModelError, got %v", err)
	}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		ans  models.Answer
		want string
	}{
		{models.Answer{Text: "Ten.", CitedPages: []int{3, 5}}, "Ten.\n\nSources: Page 3, 5"},
		{models.Answer{Text: models.RefusalResponse, CitedPages: []int{}, Refused: true}, models.RefusalResponse + "\n\nSources: Page N/A"},
		{models.Answer{Text: models.GreetingResponse, Greeting: true}, models.GreetingResponse},
	}
	for _, tt := range tests {
		if got := FormatMessage(tt.ans); got != tt.want {
			t.Fatalf("FormatMessage(%+v) = %q, want %q", tt.ans, got, tt.want)
		}
	}
}

func TestBudgetDocumentEndToEnd(t *testing.T) {
	raw := pdffixture.BuildPDF([]string{
		"The annual budget for headquarters is 40k.",
		"",
		"The marketing budget doubled this year.",
		"",
		"The travel budget was cut to 5k.",
	})
	units := parser.SegmentPDF(raw, "plan.pdf")
	if !equalInts(pageIndexes(units), []int{0, 2, 4}) {
		t.Fatalf("expected units on pages [0 2 4], got %v", pageIndexes(units))
	}

	idx, err := chromemdb.Build(context.Background(), embedding.NewHashEmbedder(256), units)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer idx.Close()

	g := &stubGenerator{reply: "Marketing doubled and travel was cut to 5k."}
	p := NewPipeline(NewComposer(g), models.DefaultTopK)

	ans, err := p.Answer(context.Background(), "what is the budget?", idx, models.PageRange{Start: 2, End: 4})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !equalInts(ans.CitedPages, []int{3, 5}) {
		t.Fatalf("expected cited pages [3 5], got %v", ans.CitedPages)
	}
	prompt := g.prompts[0]
	if !strings.Contains(prompt, "marketing budget") || !strings.Contains(prompt, "travel budget") {
		t.Fatalf("in-range pages missing from prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "headquarters") {
		t.Fatalf("page 0 must be excluded by the range:\n%s", prompt)
	}
	if got := FormatMessage(ans); !strings.HasSuffix(got, "Sources: Page 3, 5") {
		t.Fatalf("unexpected message %q", got)
	}
}

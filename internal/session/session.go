// Package session holds one user's document, page range and chat history.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
)

var (
	ErrNoDocument = errors.New("no document has been ingested")
	ErrEmptyName  = errors.New("name is required")
)

// Info describes the ingested document.
type Info struct {
	Filename  string           `json:"filename"`
	Pages     int              `json:"pages"`
	Units     int              `json:"units"`
	Range     models.PageRange `json:"range"`
	FullRange bool             `json:"full_range"`
}

// Session answers questions about one document at a time.
//
// mu gates the index: Ask holds it shared for the whole query and Ingest holds it
// exclusively only while swapping. state guards history and range and is always
// taken after mu.
type Session struct {
	mu       sync.RWMutex
	index    *chromemdb.Index
	filename string

	state      sync.Mutex
	totalPages int
	pageRange  models.PageRange
	fullRange  bool
	history    []models.ChatTurn

	cfg      config.RAGConfig
	embedder embeddings.Embedder
	pipeline *rag.Pipeline
	metrics  *metrics.Metrics
}

func New(cfg config.RAGConfig, embedder embeddings.Embedder, pipeline *rag.Pipeline, m *metrics.Metrics) *Session {
	return &Session{
		cfg:       cfg,
		embedder:  embedder,
		pipeline:  pipeline,
		metrics:   m,
		fullRange: true,
	}
}

// PageCount reports the number of pages in raw without touching session state.
func (s *Session) PageCount(raw []byte, filename string) int {
	return parser.CountPages(raw, filename)
}

// Ingest replaces the session's document. History is cleared and the range reset
// to the full document. On failure the session is left without a document.
func (s *Session) Ingest(ctx context.Context, raw []byte, filename string) error {
	name := filepath.Base(filename)

	start := time.Now()
	total := parser.CountPages(raw, filename)
	units := parser.Segment(raw, filename)
	s.metrics.ObserveStage(metrics.StageSegment, time.Since(start))

	if total == 0 {
		s.metrics.RecordIngest(metrics.StatusError, 0)
		s.drop()
		// an unreadable file yields no units either
		return fmt.Errorf("%s: %w: %w", name, models.ErrEmptyCorpus, models.ErrExtractionFailure)
	}
	if len(units) == 0 {
		s.metrics.RecordIngest(metrics.StatusEmptyCorpus, total)
		s.drop()
		return fmt.Errorf("%s: %w", name, models.ErrEmptyCorpus)
	}

	buildCtx, cancel := withTimeout(ctx, s.cfg.IngestTimeout())
	defer cancel()

	start = time.Now()
	idx, err := chromemdb.Build(buildCtx, s.embedder, units)
	s.metrics.ObserveStage(metrics.StageBuild, time.Since(start))
	if err != nil {
		s.metrics.RecordIngest(metrics.StatusError, total)
		s.drop()
		return fmt.Errorf("failed to build index for %s: %w", name, err)
	}

	s.mu.Lock()
	old := s.index
	s.index = idx
	s.filename = name
	s.state.Lock()
	s.totalPages = total
	s.pageRange = models.FullRange(total)
	s.fullRange = true
	s.history = nil
	s.state.Unlock()
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close previous index")
		}
	}

	s.metrics.RecordIngest(metrics.StatusOK, len(units))
	log.Info().Str("file", name).Int("pages", total).Int("units", len(units)).Msg("Document ingested")
	return nil
}

// Ask answers query against the current document and range, recording both turns.
// A failed answer is recorded as an "Error: ..." assistant turn and returned.
func (s *Session) Ask(ctx context.Context, query string) (models.Answer, error) {
	if rag.NormalizeQuery(query) == "" {
		return models.Answer{}, models.ErrEmptyQuery
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return models.Answer{}, ErrNoDocument
	}

	pr, err := s.scope()
	if err != nil {
		return models.Answer{}, err
	}
	s.appendTurn(models.RoleUser, query)

	ctx, cancel := withTimeout(ctx, s.cfg.AnswerTimeout())
	defer cancel()

	ans, err := s.answerWithRetry(ctx, query, pr)
	if err != nil {
		log.Error().Err(err).Str("file", s.filename).Msg("Failed to answer query")
		s.appendTurn(models.RoleAssistant, "Error: "+err.Error())
		return models.Answer{}, err
	}
	s.appendTurn(models.RoleAssistant, rag.FormatMessage(ans))
	return ans, nil
}

func (s *Session) answerWithRetry(ctx context.Context, query string, pr models.PageRange) (models.Answer, error) {
	retries := s.cfg.LLMRetries
	backoff := s.cfg.RetryBackoff()

	for attempt := 0; ; attempt++ {
		ans, err := s.pipeline.Answer(ctx, query, s.index, pr)
		if err == nil {
			return ans, nil
		}
		var lmErr *models.LanguageModelError
		if !errors.As(err, &lmErr) || attempt >= retries {
			return models.Answer{}, err
		}

		s.metrics.RecordRetry()
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying language model call")
		select {
		case <-ctx.Done():
			return models.Answer{}, fmt.Errorf("%w (gave up retrying: %v)", err, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// SetRange1Based selects pages start..end as shown to users (1-based, inclusive).
func (s *Session) SetRange1Based(start, end int) error {
	s.state.Lock()
	defer s.state.Unlock()
	if s.totalPages == 0 {
		return ErrNoDocument
	}
	pr, err := models.NewPageRange1Based(start, end, s.totalPages)
	if err != nil {
		return err
	}
	s.pageRange = pr
	s.fullRange = false
	return nil
}

func (s *Session) SetFullRange() {
	s.state.Lock()
	defer s.state.Unlock()
	s.pageRange = models.FullRange(s.totalPages)
	s.fullRange = true
}

// Range returns the active 0-based page range.
func (s *Session) Range() models.PageRange {
	s.state.Lock()
	defer s.state.Unlock()
	return s.pageRange
}

// scope snapshots the range and checks it still fits the document.
func (s *Session) scope() (models.PageRange, error) {
	s.state.Lock()
	defer s.state.Unlock()
	if err := s.pageRange.Validate(s.totalPages - 1); err != nil {
		return models.PageRange{}, err
	}
	return s.pageRange, nil
}

// Info returns the current document description, or ErrNoDocument.
func (s *Session) Info() (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return Info{}, ErrNoDocument
	}
	s.state.Lock()
	defer s.state.Unlock()
	return Info{
		Filename:  s.filename,
		Pages:     s.totalPages,
		Units:     s.index.Len(),
		Range:     s.pageRange,
		FullRange: s.fullRange,
	}, nil
}

// History returns a copy of the chat turns in order.
func (s *Session) History() []models.ChatTurn {
	s.state.Lock()
	defer s.state.Unlock()
	out := make([]models.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the chat history and keeps the document.
func (s *Session) Reset() {
	s.state.Lock()
	defer s.state.Unlock()
	s.history = nil
}

// Welcome greets name, describes the document and range, and records the greeting.
func (s *Session) Welcome(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	info, err := s.Info()
	if err != nil {
		return "", err
	}

	scope := "the entire document"
	if !info.FullRange {
		scope = info.Range.String()
	}
	msg := fmt.Sprintf(models.WelcomeTemplate, name, info.Filename, scope)
	s.appendTurn(models.RoleAssistant, msg)
	return msg, nil
}

// Close releases the index. The session can ingest again afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closeLocked(); err != nil {
		log.Warn().Err(err).Msg("Failed to close previous index")
	}
}

func (s *Session) closeLocked() error {
	idx := s.index
	s.index = nil
	s.filename = ""
	s.state.Lock()
	s.totalPages = 0
	s.pageRange = models.PageRange{}
	s.fullRange = true
	s.history = nil
	s.state.Unlock()
	if idx == nil {
		return nil
	}
	return idx.Close()
}

func (s *Session) appendTurn(role, content string) {
	s.state.Lock()
	defer s.state.Unlock()
	s.history = append(s.history, models.ChatTurn{Role: role, Content: content})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/metrics"
	"document-qa/internal/rag"
	"document-qa/internal/session"
)

// app holds the components shared by every session.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	embedder embeddings.Embedder
	pipeline *rag.Pipeline
}

func newApp(cfg *config.Config) (*app, error) {
	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	generator, err := llmservice.New(&cfg.InferenceLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	return &app{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		embedder: embedder,
		pipeline: rag.NewPipeline(rag.NewComposer(generator), cfg.RAG.TopK, rag.WithMetrics(m)),
	}, nil
}

func (a *app) newSession() *session.Session {
	return session.New(a.cfg.RAG, a.embedder, a.pipeline, a.metrics)
}

// openDocument reads path and ingests it into a fresh session.
func (a *app) openDocument(ctx context.Context, path string) (*session.Session, error) {
	raw, name, err := helper.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	sess := a.newSession()
	if err := sess.Ingest(ctx, raw, name); err != nil {
		return nil, err
	}
	return sess, nil
}

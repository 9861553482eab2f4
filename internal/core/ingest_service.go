package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/store"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

// Outcome of an ingestion. Duplicate is a successful no-op.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
)

// TaskStore is the slice of the relational store the pipeline needs.
type TaskStore interface {
	SourceExists(ctx context.Context, contentHash string) (bool, error)
	InsertSourceWithTasks(ctx context.Context, sourceName, contentHash string, tl tasks.TaskList) (*store.SourceDocument, []store.ActionItem, error)
}

// ContextIndex is the slice of the vector index the pipeline needs.
type ContextIndex interface {
	Add(ctx context.Context, text string) (int, bool)
}

type IngestOption func(*ingestOptions)

type ingestOptions struct {
	skipIndex bool
}

// SkipIndex keeps the source text out of the vector index, for content that
// is not useful as retrieval context (AI breakdowns, imports).
func SkipIndex() IngestOption {
	return func(o *ingestOptions) { o.skipIndex = true }
}

// IngestResult carries the outcome plus what was written.
type IngestResult struct {
	Outcome  Outcome
	Source   *store.SourceDocument
	Items    []store.ActionItem
	Indexed  bool
	VectorID int
}

// Pipeline persists validated tasks together with their source document and
// indexes the source text. Calls are serialized.
type Pipeline struct {
	mu     sync.Mutex
	store  TaskStore
	index  ContextIndex
	logger *zap.Logger
}

// NewPipeline builds a pipeline. index may be nil to disable indexing.
func NewPipeline(st TaskStore, index ContextIndex, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: st, index: index, logger: logger}
}

// Ingest stores tl under a new source document unless content was already
// ingested, in which case it returns OutcomeDuplicate and writes nothing.
// Task lists failing tasks.Check are rejected before anything is written.
// Relational failures are returned; indexing failures are only logged.
func (p *Pipeline) Ingest(ctx context.Context, sourceName, content string, tl tasks.TaskList, opts ...IngestOption) (IngestResult, error) {
	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := tasks.Check(tl); err != nil {
		return IngestResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	normalized := NormalizeText(content)
	hash := ContentHash(normalized)
	log := p.logger.With(zap.String("source", sourceName), zap.String("hash", hash[:12]))

	exists, err := p.store.SourceExists(ctx, hash)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to check for duplicate source: %w", err)
	}
	if exists {
		log.Info("source already ingested")
		return IngestResult{Outcome: OutcomeDuplicate}, nil
	}

	doc, items, err := p.store.InsertSourceWithTasks(ctx, sourceName, hash, tl)
	if errors.Is(err, store.ErrDuplicateSource) {
		log.Info("source ingested concurrently")
		return IngestResult{Outcome: OutcomeDuplicate}, nil
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to persist tasks: %w", err)
	}
	log.Info("source ingested", zap.Int64("source_id", doc.ID), zap.Int("tasks", len(items)))

	res := IngestResult{Outcome: OutcomeSuccess, Source: doc, Items: items, VectorID: -1}
	if o.skipIndex || p.index == nil {
		return res, nil
	}
	if id, ok := p.index.Add(ctx, normalized); ok {
		res.Indexed, res.VectorID = true, id
	} else {
		log.Warn("source text not indexed; tasks were saved")
	}
	return res, nil
}

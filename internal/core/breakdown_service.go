package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/extract"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

const (
	NumRelevantChunks = 3  // Number of past notes fed into a breakdown
	breakdownTitleLen = 30 // Goal prefix used in the source name
)

// ErrIndexUnavailable is returned when text could not be added to the index.
var ErrIndexUnavailable = errors.New("context could not be indexed")

// ContextStore is the retrieval side of the vector index.
type ContextStore interface {
	Add(ctx context.Context, text string) (int, bool)
	Search(ctx context.Context, query string, k int) []string
	Len() int
	Reset() error
}

type BreakdownResult struct {
	Goal     string         `json:"goal"`
	Tasks    tasks.TaskList `json:"tasks"`
	Context  []string       `json:"context,omitempty"`
	Degraded string         `json:"degraded,omitempty"`
}

// BreakdownService splits goals into sub-tasks, optionally grounded on past
// notes, and manages the notes kept as retrieval context.
type BreakdownService struct {
	extractor *extract.Extractor
	index     ContextStore
	pipeline  *Pipeline
	rules     *tasks.Rules
	logger    *zap.Logger
}

func NewBreakdownService(extractor *extract.Extractor, index ContextStore, pipeline *Pipeline, rules *tasks.Rules, logger *zap.Logger) *BreakdownService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakdownService{
		extractor: extractor,
		index:     index,
		pipeline:  pipeline,
		rules:     rules,
		logger:    logger,
	}
}

// Breakdown proposes sub-tasks for goal. Nothing is stored; see SaveBreakdown.
func (s *BreakdownService) Breakdown(ctx context.Context, goal string, useContext bool) (*BreakdownResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyContent
	}

	var related []string
	if useContext {
		related = s.index.Search(ctx, goal, NumRelevantChunks)
		if len(related) == 0 {
			s.logger.Info("no relevant context found for goal", zap.String("goal", goal))
		} else {
			s.logger.Info("retrieved context for goal", zap.Int("chunks", len(related)))
		}
	}

	res, err := s.extractor.ExtractWithPrompt(ctx, extract.BreakdownPrompt(related), "User's goal: "+goal)
	if err != nil {
		return nil, err
	}

	out := &BreakdownResult{Goal: goal, Tasks: s.rules.Apply(res.Tasks), Context: related}
	if out.Tasks == nil {
		out.Tasks = tasks.TaskList{}
	}
	if res.Degraded != nil {
		out.Degraded = res.Degraded.Error()
	}
	return out, nil
}

// SaveBreakdown stores reviewed sub-tasks. The serialized task list is the
// source content, so saving the same plan twice is a duplicate. Breakdowns
// are not indexed as context.
func (s *BreakdownService) SaveBreakdown(ctx context.Context, goal string, tl tasks.TaskList) (IngestResult, error) {
	if len(tl) == 0 {
		return IngestResult{}, fmt.Errorf("%w: no tasks to save", ErrEmptyContent)
	}
	content, err := json.Marshal(tl)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return s.pipeline.Ingest(ctx, "AI Breakdown: "+truncate(strings.TrimSpace(goal), breakdownTitleLen), string(content), tl, SkipIndex())
}

// AddContext adds a note to the retrieval index without creating tasks.
func (s *BreakdownService) AddContext(ctx context.Context, name, content string) (int, error) {
	normalized := NormalizeText(content)
	if normalized == "" {
		return -1, ErrEmptyContent
	}
	id, ok := s.index.Add(ctx, normalized)
	if !ok {
		return -1, ErrIndexUnavailable
	}
	s.logger.Info("context added", zap.String("source", name), zap.Int("vector_id", id))
	return id, nil
}

func (s *BreakdownService) SearchContext(ctx context.Context, query string, k int) []string {
	return s.index.Search(ctx, query, k)
}

func (s *BreakdownService) ContextSize() int {
	return s.index.Len()
}

func (s *BreakdownService) ResetContext() error {
	return s.index.Reset()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

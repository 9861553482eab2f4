package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/extract"
	"github.com/taskmaster-ai/taskmaster/internal/store"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

// ErrEmptyContent is returned when there is no text to work on.
var ErrEmptyContent = errors.New("content is empty")

// ExtractStatus is the user-facing result of ExtractAndSave.
type ExtractStatus string

const (
	StatusSaved         ExtractStatus = "saved"
	StatusDuplicate     ExtractStatus = "duplicate"
	StatusNoActionItems ExtractStatus = "no_action_items"
)

type ExtractResult struct {
	Status  ExtractStatus      `json:"status"`
	Message string             `json:"message"`
	Items   []store.ActionItem `json:"items,omitempty"`
	Dropped int                `json:"dropped,omitempty"`
	Indexed bool               `json:"indexed"`
}

type TaskService struct {
	db        *store.SQLiteStore
	extractor *extract.Extractor
	pipeline  *Pipeline
	model     agent.Model
	rules     *tasks.Rules
	logger    *zap.Logger
}

func NewTaskService(db *store.SQLiteStore, extractor *extract.Extractor, pipeline *Pipeline, model agent.Model, rules *tasks.Rules, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		db:        db,
		extractor: extractor,
		pipeline:  pipeline,
		model:     model,
		rules:     rules,
		logger:    logger,
	}
}

// ExtractAndSave asks the model for the action items in content and stores
// them. Content that was already ingested is reported as a duplicate without
// calling the model. Zero surviving tasks store nothing.
func (s *TaskService) ExtractAndSave(ctx context.Context, sourceName, content string) (*ExtractResult, error) {
	normalized := NormalizeText(content)
	if normalized == "" {
		return nil, ErrEmptyContent
	}

	exists, err := s.db.SourceExists(ctx, ContentHash(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate source: %w", err)
	}
	if exists {
		return duplicateResult(sourceName), nil
	}

	res, err := s.extractor.Extract(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(res.Tasks) == 0 {
		s.logger.Info("no action items found", zap.String("source", sourceName), zap.NamedError("degraded", res.Degraded))
		return &ExtractResult{
			Status:  StatusNoActionItems,
			Message: "No action items found.",
			Dropped: len(res.Dropped),
		}, nil
	}

	ing, err := s.pipeline.Ingest(ctx, sourceName, normalized, s.rules.Apply(res.Tasks))
	if err != nil {
		return nil, err
	}
	if ing.Outcome == OutcomeDuplicate {
		return duplicateResult(sourceName), nil
	}
	return &ExtractResult{
		Status:  StatusSaved,
		Message: fmt.Sprintf("Saved %d action items.", len(ing.Items)),
		Items:   ing.Items,
		Dropped: len(res.Dropped),
		Indexed: ing.Indexed,
	}, nil
}

// SaveTasks stores already validated tasks, for imports. skipIndex keeps the
// content out of the vector index.
func (s *TaskService) SaveTasks(ctx context.Context, sourceName, content string, tl tasks.TaskList, skipIndex bool) (*ExtractResult, error) {
	if NormalizeText(content) == "" {
		return nil, ErrEmptyContent
	}
	var opts []IngestOption
	if skipIndex {
		opts = append(opts, SkipIndex())
	}
	ing, err := s.pipeline.Ingest(ctx, sourceName, content, s.rules.Apply(tasks.DedupeTasks(tl)), opts...)
	if err != nil {
		return nil, err
	}
	if ing.Outcome == OutcomeDuplicate {
		return duplicateResult(sourceName), nil
	}
	return &ExtractResult{
		Status:  StatusSaved,
		Message: fmt.Sprintf("Saved %d action items.", len(ing.Items)),
		Items:   ing.Items,
		Indexed: ing.Indexed,
	}, nil
}

func duplicateResult(sourceName string) *ExtractResult {
	return &ExtractResult{
		Status:  StatusDuplicate,
		Message: fmt.Sprintf("Content from %q has already been processed. No new tasks were added.", sourceName),
	}
}

type prioritizedTask struct {
	ID int64 `json:"id"`
	tasks.Task
}

// Prioritize asks the model which open tasks to tackle first.
func (s *TaskService) Prioritize(ctx context.Context) (string, error) {
	items, err := s.db.ListActionItems(ctx)
	if err != nil {
		return "", err
	}
	var open []prioritizedTask
	for _, item := range items {
		if item.Task.Status != tasks.StatusDone {
			open = append(open, prioritizedTask{ID: item.ID, Task: item.Task})
		}
	}
	if len(open) == 0 {
		return "No open tasks to prioritize.", nil
	}

	payload, err := json.MarshalIndent(open, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tasks: %w", err)
	}
	resp, err := s.model.Complete(ctx, []agent.Message{
		agent.SystemMessage(extract.PrioritizationPrompt),
		agent.UserMessage(string(payload)),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get prioritization: %w", err)
	}
	return resp.Content, nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]store.ActionItem, error) {
	return s.db.ListActionItems(ctx)
}

// GetTask returns store.ErrNotFound when no task has the given id.
func (s *TaskService) GetTask(ctx context.Context, id int64) (*store.ActionItem, error) {
	item, err := s.db.GetActionItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	return item, nil
}

// ListSources returns every ingested source document, newest first.
func (s *TaskService) ListSources(ctx context.Context) ([]store.SourceDocument, error) {
	return s.db.ListSourceDocuments(ctx)
}

// Stats counts what has been stored so far.
type Stats struct {
	Sources int `json:"sources"`
	Tasks   int `json:"tasks"`
}

func (s *TaskService) Stats(ctx context.Context) (Stats, error) {
	sources, items, err := s.db.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Sources: sources, Tasks: items}, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id int64, upd store.TaskUpdate) (*store.ActionItem, error) {
	return s.db.UpdateActionItem(ctx, id, upd)
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	return s.db.DeleteActionItem(ctx, id)
}

// Reset drops every stored task and source document.
func (s *TaskService) Reset(ctx context.Context) error {
	s.logger.Warn("dropping all tasks and source documents")
	return s.db.DropAll(ctx)
}

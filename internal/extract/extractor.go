// Package extract turns model output into validated task lists.
package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

// Runner is the conversation loop. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, initial []agent.Message) (agent.Message, error)
}

// Result is the outcome of one extraction. A model answer that held no
// usable JSON is not an error: Tasks is empty and Degraded explains why.
type Result struct {
	Tasks   tasks.TaskList
	Dropped []tasks.FieldError
	Raw     string

	// Degraded is set when the answer could not be recovered or had the
	// wrong shape.
	Degraded error
}

type Extractor struct {
	runner Runner
	now    func() time.Time
	logger *zap.Logger
}

func NewExtractor(runner Runner, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{runner: runner, now: time.Now, logger: logger}
}

// Extract asks the model for the action items in content.
func (e *Extractor) Extract(ctx context.Context, content string) (Result, error) {
	return e.ExtractWithPrompt(ctx, ExtractionPrompt(e.now()), content)
}

// ExtractWithPrompt runs content through the agent under systemPrompt and
// recovers, validates and dedupes the answer. Only agent failures (model
// transport, iteration cap) are returned as errors.
func (e *Extractor) ExtractWithPrompt(ctx context.Context, systemPrompt, content string) (Result, error) {
	final, err := e.runner.Run(ctx, []agent.Message{
		agent.SystemMessage(systemPrompt),
		agent.UserMessage(content),
	})
	if err != nil {
		return Result{}, fmt.Errorf("agent run failed: %w", err)
	}
	return e.Parse(final.Content), nil
}

// Parse applies recovery, validation and dedup to raw model text.
func (e *Extractor) Parse(raw string) Result {
	res := Result{Raw: raw}

	payload, err := RecoverJSON(raw)
	if err != nil {
		e.logger.Warn("no usable JSON in model output", zap.Error(err), zap.Int("raw_len", len(raw)))
		res.Degraded = err
		return res
	}

	list, dropped, err := tasks.Validate(payload)
	if err != nil {
		e.logger.Warn("model output has an unsupported shape", zap.Error(err))
		res.Degraded = err
		return res
	}
	for _, d := range dropped {
		e.logger.Info("dropped invalid task record", zap.Int("index", d.Index), zap.String("field", d.Field), zap.String("reason", d.Reason))
	}

	deduped := tasks.DedupeTasks(list)
	if n := len(list) - len(deduped); n > 0 {
		e.logger.Debug("removed duplicate tasks", zap.Int("count", n))
	}

	res.Tasks = deduped
	res.Dropped = dropped
	return res
}

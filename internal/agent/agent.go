// Package agent drives a chat model through tool calls until it produces a
// final answer.
//
// The loop is an explicit state machine:
//
//	AWAIT_MODEL --tool calls--> EXECUTE_TOOLS --> AWAIT_MODEL
//	AWAIT_MODEL --no tool calls--> DONE
//
// Every model call is one round; more than MaxRounds rounds fails the run
// with ErrIterationCapExceeded.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/tools"
)

// DefaultMaxRounds bounds the number of model calls per Run.
const DefaultMaxRounds = 8

// Model is a chat backend that may answer with tool calls.
type Model interface {
	Complete(ctx context.Context, msgs []Message, specs []tools.Spec) (Message, error)
}

// ToolSet resolves tool names. *tools.Registry implements it.
type ToolSet interface {
	Lookup(name string) (*tools.Tool, bool)
	Specs() []tools.Spec
}

// State is a node of the agent loop.
type State int

const (
	StateAwaitModel State = iota
	StateExecuteTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitModel:
		return "AWAIT_MODEL"
	case StateExecuteTools:
		return "EXECUTE_TOOLS"
	case StateDone:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Agent runs conversations. It holds no per-run state and may be shared.
type Agent struct {
	model        Model
	tools        ToolSet
	systemPrompt string
	maxRounds    int
	logger       *zap.Logger
}

type Option func(*Agent)

// WithSystemPrompt prefixes every run with a fixed system message, unless the
// run already starts with one.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithMaxRounds sets the iteration cap. Values below 1 keep the default.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an agent. toolSet may be nil, in which case every tool call
// the model makes is answered with a not-found error.
func New(model Model, toolSet ToolSet, opts ...Option) *Agent {
	a := &Agent{
		model:     model,
		tools:     toolSet,
		maxRounds: DefaultMaxRounds,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxRounds reports the configured iteration cap.
func (a *Agent) MaxRounds() int { return a.maxRounds }

// Run drives the conversation to a final assistant message. The initial
// slice is not modified.
func (a *Agent) Run(ctx context.Context, initial []Message) (Message, error) {
	if len(initial) == 0 {
		return Message{}, ErrNoMessages
	}

	msgs := a.seed(initial)
	var specs []tools.Spec
	if a.tools != nil {
		specs = a.tools.Specs()
	}

	state := StateAwaitModel
	rounds := 0
	var last Message

	for {
		switch state {
		case StateAwaitModel:
			if rounds >= a.maxRounds {
				a.logger.Warn("agent iteration cap exceeded", zap.Int("rounds", rounds))
				return Message{}, fmt.Errorf("%w after %d rounds", ErrIterationCapExceeded, rounds)
			}
			if err := ctx.Err(); err != nil {
				return Message{}, err
			}
			rounds++

			resp, err := a.model.Complete(ctx, msgs, specs)
			if err != nil {
				return Message{}, fmt.Errorf("model call failed in round %d: %w", rounds, err)
			}
			last = normalizeResponse(resp)
			msgs = append(msgs, last)

			next := StateDone
			if len(last.ToolCalls) > 0 {
				next = StateExecuteTools
			}
			a.logger.Debug("agent transition",
				zap.Stringer("from", state),
				zap.Stringer("to", next),
				zap.Int("round", rounds),
				zap.Int("tool_calls", len(last.ToolCalls)))
			state = next

		case StateExecuteTools:
			for _, call := range last.ToolCalls {
				msgs = append(msgs, ToolResult(call, a.execute(ctx, call)))
			}
			a.logger.Debug("agent transition",
				zap.Stringer("from", state),
				zap.Stringer("to", StateAwaitModel),
				zap.Int("round", rounds))
			state = StateAwaitModel

		case StateDone:
			return last, nil
		}
	}
}

func (a *Agent) seed(initial []Message) []Message {
	msgs := make([]Message, 0, len(initial)+1+2*a.maxRounds)
	if a.systemPrompt != "" && initial[0].Role != RoleSystem {
		msgs = append(msgs, SystemMessage(a.systemPrompt))
	}
	return append(msgs, initial...)
}

// normalizeResponse forces the assistant role and gives every tool call an
// id so results can be correlated.
func normalizeResponse(resp Message) Message {
	resp.Role = RoleAssistant
	if len(resp.ToolCalls) == 0 {
		return resp
	}
	calls := make([]ToolCall, len(resp.ToolCalls))
	copy(calls, resp.ToolCalls)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = uuid.NewString()
		}
	}
	resp.ToolCalls = calls
	return resp
}

// execute runs one call and renders the outcome as tool-result text. Errors
// go back to the model instead of aborting the run.
func (a *Agent) execute(ctx context.Context, call ToolCall) string {
	var tool *tools.Tool
	ok := false
	if a.tools != nil {
		tool, ok = a.tools.Lookup(call.Name)
	}
	if !ok {
		err := fmt.Errorf("%w: %s", tools.ErrToolNotFound, call.Name)
		a.logger.Warn("model requested unknown tool", zap.String("tool", call.Name), zap.String("call_id", call.ID))
		return "error: " + err.Error()
	}

	out, err := tool.Call(ctx, call.Args)
	if err != nil {
		a.logger.Warn("tool failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Error(err))
		return "error: " + err.Error()
	}
	a.logger.Debug("tool succeeded", zap.String("tool", call.Name), zap.String("call_id", call.ID))
	return out
}

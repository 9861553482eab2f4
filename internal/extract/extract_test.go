package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

func TestRecoverJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced with prose", "Sure! Here you go:\n```json\n[{\"task\":\"x\"}]\n```", `[{"task":"x"}]`},
		{"bare array", `[1, 2]`, `[1, 2]`},
		{"trailing commentary", "[{\"a\":1}] hope that helps", `[{"a":1}]`},
		{"wrapped object", "```\n{\"tasks\": []}\n```", `[]`},
		{"fence with tag and plus", "```c++\n[]\n```", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecoverJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestRecoverJSONFailures(t *testing.T) {
	_, err := RecoverJSON("no structured data here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = RecoverJSON("] backwards [")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = RecoverJSON(`[{"task": "x",}]`)
	assert.ErrorIs(t, err, ErrMalformedJSON)

	_, err = RecoverJSON(`Sure, here is one: {"task_description": "x"}`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

type fakeRunner struct {
	answer string
	err    error
	got    []agent.Message
}

func (f *fakeRunner) Run(_ context.Context, msgs []agent.Message) (agent.Message, error) {
	f.got = msgs
	if f.err != nil {
		return agent.Message{}, f.err
	}
	return agent.AssistantMessage(f.answer), nil
}

func TestExtractPipeline(t *testing.T) {
	runner := &fakeRunner{answer: "```json\n[" +
		`{"task":"Review Q3 budget","project":"Finance"},` +
		`{"task":"review q3 budget "},` +
		`{"project":"orphan"},` +
		`{"task":"Call Ana","due_date":"2025-07-29","status":"done"}` +
		"]\n```"}
	ex := NewExtractor(runner, nil)
	ex.now = func() time.Time { return time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC) }

	res, err := ex.Extract(context.Background(), "notes")
	require.NoError(t, err)
	require.NoError(t, res.Degraded)

	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "Review Q3 budget", res.Tasks[0].Description)
	assert.Equal(t, "Call Ana", res.Tasks[1].Description)
	assert.Equal(t, tasks.StatusDone, res.Tasks[1].Status)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 2, res.Dropped[0].Index)

	require.Len(t, runner.got, 2)
	assert.Equal(t, agent.RoleSystem, runner.got[0].Role)
	assert.Contains(t, runner.got[0].Content, "Monday, 2025-07-28")
	assert.Equal(t, agent.UserMessage("notes"), runner.got[1])
}

func TestExtractDegradesOnBadOutput(t *testing.T) {
	ex := NewExtractor(&fakeRunner{answer: "I could not find anything."}, nil)
	res, err := ex.Extract(context.Background(), "notes")
	require.NoError(t, err)
	assert.Empty(t, res.Tasks)
	assert.ErrorIs(t, res.Degraded, ErrNoJSON)

	res = ex.Parse(`{"task_description": "Call Ana"}`)
	assert.Empty(t, res.Tasks)
	assert.ErrorIs(t, res.Degraded, ErrNoJSON)
}

func TestExtractReturnsAgentErrors(t *testing.T) {
	ex := NewExtractor(&fakeRunner{err: agent.ErrIterationCapExceeded}, nil)
	_, err := ex.Extract(context.Background(), "notes")
	assert.True(t, errors.Is(err, agent.ErrIterationCapExceeded))
}

func TestBreakdownPrompt(t *testing.T) {
	assert.Equal(t, breakdownPrompt, BreakdownPrompt(nil))
	p := BreakdownPrompt([]string{"note one", "note two"})
	assert.Contains(t, p, "note one\n\n---\n\nnote two")
}

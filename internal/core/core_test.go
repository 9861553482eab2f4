package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/extract"
	"github.com/taskmaster-ai/taskmaster/internal/store"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
	"github.com/taskmaster-ai/taskmaster/internal/tools"
)

// memIndex is an in-memory ContextStore with substring search.
type memIndex struct {
	docs []string
	fail bool
}

func (m *memIndex) Add(_ context.Context, text string) (int, bool) {
	if m.fail {
		return -1, false
	}
	m.docs = append(m.docs, text)
	return len(m.docs) - 1, true
}

func (m *memIndex) Search(_ context.Context, query string, k int) []string {
	var out []string
	for _, d := range m.docs {
		if len(out) < k && strings.Contains(d, query) {
			out = append(out, d)
		}
	}
	return out
}

func (m *memIndex) Len() int     { return len(m.docs) }
func (m *memIndex) Reset() error { m.docs = nil; return nil }

type fakeRunner struct {
	answer string
	err    error
	calls  int
	last   []agent.Message
}

func (f *fakeRunner) Run(_ context.Context, msgs []agent.Message) (agent.Message, error) {
	f.calls++
	f.last = msgs
	if f.err != nil {
		return agent.Message{}, f.err
	}
	return agent.AssistantMessage(f.answer), nil
}

type fakeModel struct {
	answer string
	got    []agent.Message
}

func (f *fakeModel) Complete(_ context.Context, msgs []agent.Message, _ []tools.Spec) (agent.Message, error) {
	f.got = msgs
	return agent.AssistantMessage(f.answer), nil
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNormalizeAndHash(t *testing.T) {
	assert.Equal(t, "a\nb", NormalizeText("  a\r\nb \n"))
	assert.Equal(t, ContentHash("a\nb"), ContentHash("\r\na\r\nb  "))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
	assert.Len(t, ContentHash("x"), 64)
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	idx := &memIndex{}
	p := NewPipeline(db, idx, nil)
	tl := tasks.TaskList{{Description: "Write report", Status: tasks.StatusToDo}}

	first, err := p.Ingest(ctx, "notes", "Meeting notes\r\n", tl)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, first.Outcome)
	assert.True(t, first.Indexed)
	assert.Equal(t, 0, first.VectorID)
	require.Len(t, first.Items, 1)

	second, err := p.Ingest(ctx, "notes again", "Meeting notes", tl)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	sources, items, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sources)
	assert.Equal(t, 1, items)
	assert.Equal(t, []string{"Meeting notes"}, idx.docs)
}

func TestIngestIndexFailureKeepsTasks(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	p := NewPipeline(db, &memIndex{fail: true}, nil)

	res, err := p.Ingest(ctx, "notes", "content", tasks.TaskList{{Description: "x", Status: tasks.StatusToDo}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.False(t, res.Indexed)

	_, items, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, items)
}

func TestIngestSkipIndex(t *testing.T) {
	idx := &memIndex{}
	p := NewPipeline(newStore(t), idx, nil)
	res, err := p.Ingest(context.Background(), "import", "rows", nil, SkipIndex())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, idx.docs)
}

type failingStore struct{ TaskStore }

func (failingStore) SourceExists(context.Context, string) (bool, error) { return false, nil }
func (failingStore) InsertSourceWithTasks(context.Context, string, string, tasks.TaskList) (*store.SourceDocument, []store.ActionItem, error) {
	return nil, nil, errors.New("disk full")
}

func TestIngestReturnsPersistenceErrors(t *testing.T) {
	idx := &memIndex{}
	p := NewPipeline(failingStore{}, idx, nil)
	_, err := p.Ingest(context.Background(), "n", "c", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, idx.docs)
}

func newTaskService(t *testing.T, runner *fakeRunner, model agent.Model, rules *tasks.Rules) (*TaskService, *store.SQLiteStore, *memIndex) {
	t.Helper()
	db := newStore(t)
	idx := &memIndex{}
	p := NewPipeline(db, idx, nil)
	return NewTaskService(db, extract.NewExtractor(runner, nil), p, model, rules, nil), db, idx
}

func TestExtractAndSave(t *testing.T) {
	ctx := context.Background()
	rules, err := tasks.ParseRules([]byte("priority_rules:\n  - priority: High\n    keywords: [urgent]\n"))
	require.NoError(t, err)
	runner := &fakeRunner{answer: "Here:\n```json\n[{\"task\":\"Urgent: fix login\"},{\"task\":\"Plan offsite\",\"project\":\"HR\"}]\n```"}
	svc, db, idx := newTaskService(t, runner, nil, rules)

	res, err := svc.ExtractAndSave(ctx, "pasted_text", "notes about login\r\n")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "High", res.Items[0].Task.Priority)
	assert.Equal(t, tasks.DefaultPriority, res.Items[1].Task.Priority)
	assert.True(t, res.Indexed)
	assert.Equal(t, []string{"notes about login"}, idx.docs)
	assert.Equal(t, "notes about login", runner.last[1].Content)

	again, err := svc.ExtractAndSave(ctx, "pasted_text", "notes about login")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, again.Status)
	assert.Equal(t, 1, runner.calls, "duplicates must not reach the model")

	listed, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	_, items, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, items)
}

func TestExtractAndSaveNoActionItems(t *testing.T) {
	ctx := context.Background()
	for _, answer := range []string{"[]", "Nothing to do here."} {
		svc, db, _ := newTaskService(t, &fakeRunner{answer: answer}, nil, nil)
		res, err := svc.ExtractAndSave(ctx, "n", "just chatting")
		require.NoError(t, err)
		assert.Equal(t, StatusNoActionItems, res.Status)
		assert.Equal(t, "No action items found.", res.Message)

		sources, _, err := db.Counts(ctx)
		require.NoError(t, err)
		assert.Zero(t, sources)
	}
}

func TestExtractAndSaveErrors(t *testing.T) {
	svc, _, _ := newTaskService(t, &fakeRunner{err: agent.ErrIterationCapExceeded}, nil, nil)
	_, err := svc.ExtractAndSave(context.Background(), "n", "text")
	assert.ErrorIs(t, err, agent.ErrIterationCapExceeded)

	_, err = svc.ExtractAndSave(context.Background(), "n", " \r\n ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSaveTasksAndCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _, idx := newTaskService(t, &fakeRunner{}, nil, nil)

	tl := tasks.TaskList{
		{Description: "Fix bug 12", Status: tasks.StatusInProgress},
		{Description: "fix bug 12", Status: tasks.StatusToDo},
	}
	res, err := svc.SaveTasks(ctx, "Jira Import", "KEY-1,Fix bug 12", tl, true)
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)
	require.Len(t, res.Items, 1)
	assert.Empty(t, idx.docs)

	done := tasks.StatusDone
	updated, err := svc.UpdateTask(ctx, res.Items[0].ID, store.TaskUpdate{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, updated.Task.Status)

	got, err := svc.GetTask(ctx, res.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix bug 12", got.Task.Description)

	sources, err := svc.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Jira Import", sources[0].SourceName)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sources: 1, Tasks: 1}, stats)

	require.NoError(t, svc.DeleteTask(ctx, res.Items[0].ID))
	assert.ErrorIs(t, svc.DeleteTask(ctx, res.Items[0].ID), store.ErrNotFound)
	_, err = svc.GetTask(ctx, res.Items[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.Reset(ctx))
}

func TestPrioritize(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{answer: "Do the report first."}
	svc, _, _ := newTaskService(t, &fakeRunner{}, model, nil)

	summary, err := svc.Prioritize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No open tasks to prioritize.", summary)
	assert.Nil(t, model.got)

	_, err = svc.SaveTasks(ctx, "n", "c", tasks.TaskList{
		{Description: "Write report", Status: tasks.StatusToDo},
		{Description: "Old thing", Status: tasks.StatusDone},
	}, false)
	require.NoError(t, err)

	summary, err = svc.Prioritize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Do the report first.", summary)
	require.Len(t, model.got, 2)
	assert.Equal(t, extract.PrioritizationPrompt, model.got[0].Content)
	assert.Contains(t, model.got[1].Content, "Write report")
	assert.NotContains(t, model.got[1].Content, "Old thing")
}

func TestBreakdown(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	idx := &memIndex{docs: []string{"launch plan: beta in May"}}
	runner := &fakeRunner{answer: `[{"task":"Draft launch email","project":"launch"},{"task":"Book venue"}]`}
	p := NewPipeline(db, idx, nil)
	svc := NewBreakdownService(extract.NewExtractor(runner, nil), idx, p, nil, nil)

	res, err := svc.Breakdown(ctx, "launch", true)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, []string{"launch plan: beta in May"}, res.Context)
	assert.Contains(t, runner.last[0].Content, "launch plan: beta in May")
	assert.Equal(t, "User's goal: launch", runner.last[1].Content)

	res, err = svc.Breakdown(ctx, "launch", false)
	require.NoError(t, err)
	assert.Empty(t, res.Context)
	assert.NotContains(t, runner.last[0].Content, "beta in May")

	saved, err := svc.SaveBreakdown(ctx, "launch the new product line before summer", res.Tasks)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, saved.Outcome)
	assert.Equal(t, "AI Breakdown: launch the new product line be...", saved.Source.SourceName)
	assert.Len(t, idx.docs, 1, "breakdowns are not indexed")

	dup, err := svc.SaveBreakdown(ctx, "launch", res.Tasks)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, dup.Outcome)

	_, err = svc.Breakdown(ctx, "  ", false)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSaveBreakdownRejectsInvalidTasks(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	svc := NewBreakdownService(extract.NewExtractor(&fakeRunner{}, nil), &memIndex{}, NewPipeline(db, &memIndex{}, nil), nil, nil)

	cases := map[string]tasks.TaskList{
		"missing status": {{Description: "write plan"}},
		"unknown status": {{Description: "write plan", Status: "Bogus"}},
		"blank":          {{Description: "  ", Status: tasks.StatusToDo}},
	}
	for name, tl := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SaveBreakdown(ctx, "plan", tl)
			require.ErrorIs(t, err, tasks.ErrInvalidTask)
			var fe tasks.FieldError
			assert.True(t, errors.As(err, &fe))
			assert.Equal(t, 0, fe.Index)
		})
	}

	sources, items, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, sources)
	assert.Zero(t, items)
}

func TestContextManager(t *testing.T) {
	ctx := context.Background()
	idx := &memIndex{}
	svc := NewBreakdownService(nil, idx, nil, nil, nil)

	id, err := svc.AddContext(ctx, "report.pdf", "Quarterly report\r\n")
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, svc.ContextSize())
	assert.Equal(t, []string{"Quarterly report"}, svc.SearchContext(ctx, "Quarterly", 5))

	_, err = svc.AddContext(ctx, "empty", "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	idx.fail = true
	_, err = svc.AddContext(ctx, "x", "more")
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	require.NoError(t, svc.ResetContext())
	assert.Zero(t, svc.ContextSize())
}

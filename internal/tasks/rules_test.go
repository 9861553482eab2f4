package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
priority_rules:
  - priority: High
    keywords: [Urgent, asap]
  - priority: Low
    keywords: [someday, "nice to have"]
`

func TestRulesFirstMatchWins(t *testing.T) {
	r, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	in := TaskList{
		{Description: "URGENT: fix login, nice to have dark mode"},
		{Description: "Someday clean the garage"},
		{Description: "Write weekly report"},
	}
	out := r.Apply(in)
	require.Len(t, out, 3)
	assert.Equal(t, "High", out[0].Priority)
	assert.Equal(t, "Low", out[1].Priority)
	assert.Equal(t, DefaultPriority, out[2].Priority)

	// the input is left untouched
	assert.Empty(t, in[0].Priority)
}

func TestRulesCustomDefault(t *testing.T) {
	r, err := ParseRules([]byte("default_priority: Medium\n" + sampleRules))
	require.NoError(t, err)
	out := r.Apply(TaskList{{Description: "plain"}})
	assert.Equal(t, "Medium", out[0].Priority)
}

func TestRulesEmptyLeavesTasksAlone(t *testing.T) {
	var r *Rules
	in := TaskList{{Description: "urgent", Priority: "keep"}}
	assert.Equal(t, in, r.Apply(in))
	assert.Equal(t, in, (&Rules{}).Apply(in))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, r.PriorityRules, 2)
	assert.Equal(t, []string{"urgent", "asap"}, r.PriorityRules[0].Keywords)

	missing, err := LoadRules(filepath.Join(dir, "nope.yaml"))
	assert.ErrorIs(t, err, ErrRulesNotFound)
	require.NotNil(t, missing)
	assert.Empty(t, missing.PriorityRules)

	require.NoError(t, os.WriteFile(path, []byte("priority_rules: [oops"), 0o644))
	_, err = LoadRules(path)
	assert.Error(t, err)
}

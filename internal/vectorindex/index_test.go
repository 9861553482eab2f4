package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedder counts each latin letter, giving a 26-dim vector.
type letterEmbedder struct {
	dim  int
	fail bool
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	dim := e.dim
	if dim == 0 {
		dim = 26
	}
	v := make([]float32, dim)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' && int(r-'a') < dim {
			v[r-'a']++
		}
	}
	return v, nil
}

func openIndex(t *testing.T, dir string, emb Embedder) *Index {
	t.Helper()
	ix, err := Open(dir, emb, nil)
	require.NoError(t, err)
	return ix
}

func TestAddAndSearch(t *testing.T) {
	ix := openIndex(t, t.TempDir(), &letterEmbedder{})
	ctx := context.Background()

	assert.Empty(t, ix.Search(ctx, "alpha", 3))

	id, ok := ix.Add(ctx, "alpha")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	id, ok = ix.Add(ctx, "beta")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	assert.Equal(t, []string{"alpha"}, ix.Search(ctx, "alpha", 1))
	assert.Equal(t, []string{"beta", "alpha"}, ix.Search(ctx, "beta", 10))
	assert.Empty(t, ix.Search(ctx, "alpha", 0))
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 26, ix.Dim())
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	ix := openIndex(t, t.TempDir(), &letterEmbedder{})
	ctx := context.Background()
	for _, s := range []string{"ab", "ba", "zz"} {
		_, ok := ix.Add(ctx, s)
		require.True(t, ok)
	}
	assert.Equal(t, []string{"ab", "ba"}, ix.Search(ctx, "ab", 2))
}

func TestReloadReturnsSameResults(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := openIndex(t, dir, &letterEmbedder{})
	for _, s := range []string{"alpha", "beta", "gamma delta"} {
		_, ok := first.Add(ctx, s)
		require.True(t, ok)
	}
	want := first.Search(ctx, "alphabet", 3)

	second := openIndex(t, dir, &letterEmbedder{})
	assert.Equal(t, 3, second.Len())
	assert.Equal(t, want, second.Search(ctx, "alphabet", 3))

	id, ok := second.Add(ctx, "epsilon")
	require.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestAddFailuresAreNoOps(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	emb := &letterEmbedder{}
	ix := openIndex(t, dir, emb)

	_, ok := ix.Add(ctx, "alpha")
	require.True(t, ok)

	emb.fail = true
	id, ok := ix.Add(ctx, "beta")
	assert.False(t, ok)
	assert.Equal(t, -1, id)
	assert.Empty(t, ix.Search(ctx, "alpha", 1))
	emb.fail = false

	emb.dim = 3
	_, ok = ix.Add(ctx, "abc")
	assert.False(t, ok)
	assert.Empty(t, ix.Search(ctx, "alpha", 1))
	emb.dim = 0

	assert.Equal(t, 1, ix.Len())
}

func TestAddRollsBackWhenPersistenceFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()
	ix := openIndex(t, dir, &letterEmbedder{})

	_, ok := ix.Add(ctx, "alpha")
	require.True(t, ok)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))

	_, ok = ix.Add(ctx, "beta")
	assert.False(t, ok)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, []string{"alpha"}, ix.Search(ctx, "beta", 5))
}

func TestOpenDetectsCorruption(t *testing.T) {
	ctx := context.Background()

	t.Run("only index", func(t *testing.T) {
		dir := t.TempDir()
		ix := openIndex(t, dir, &letterEmbedder{})
		_, ok := ix.Add(ctx, "alpha")
		require.True(t, ok)
		require.NoError(t, os.Remove(filepath.Join(dir, mappingFile)))

		_, err := Open(dir, &letterEmbedder{}, nil)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("only mapping", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, mappingFile), []byte(`{"next_id":0,"docs":{}}`), 0o644))
		_, err := Open(dir, &letterEmbedder{}, nil)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("count mismatch", func(t *testing.T) {
		dir := t.TempDir()
		ix := openIndex(t, dir, &letterEmbedder{})
		for _, s := range []string{"alpha", "beta"} {
			_, ok := ix.Add(ctx, s)
			require.True(t, ok)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, mappingFile),
			[]byte(`{"next_id":1,"docs":{"0":"alpha"}}`), 0o644))

		_, err := Open(dir, &letterEmbedder{}, nil)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("bad magic", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte("NOPE0000000000000000"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, mappingFile), []byte(`{"next_id":0,"docs":{}}`), 0o644))
		_, err := Open(dir, &letterEmbedder{}, nil)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ix := openIndex(t, dir, &letterEmbedder{})
	_, ok := ix.Add(ctx, "alpha")
	require.True(t, ok)

	require.NoError(t, ix.Reset())
	assert.Zero(t, ix.Len())
	assert.Empty(t, ix.Search(ctx, "alpha", 1))
	assert.NoFileExists(t, filepath.Join(dir, indexFile))
	assert.NoFileExists(t, filepath.Join(dir, mappingFile))

	// a different dimension is accepted after a reset
	ix.emb = &letterEmbedder{dim: 4}
	id, ok := ix.Add(ctx, "abcd")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, 4, ix.Dim())
}

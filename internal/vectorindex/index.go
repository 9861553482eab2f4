// Package vectorindex is a flat, exact L2 nearest-neighbour index over text
// embeddings, persisted as two files that are always written together.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/utils"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index holds every entry in memory. Entry ids are dense, starting at 0.
// Failures in Add and Search are logged and degrade to no-ops; the index
// enriches other workflows and must not abort them.
type Index struct {
	mu      sync.Mutex
	dir     string
	emb     Embedder
	logger  *zap.Logger
	dim     int
	vectors [][]float32
	docs    []string
}

// Open loads the index stored in dir, creating dir if needed. A directory
// with neither artifact yields an empty index; one artifact without the
// other, or artifacts that disagree, is ErrCorruptIndex.
func Open(dir string, emb Embedder, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Index{dir: dir, emb: emb, logger: logger}

	st, err := loadState(dir)
	if err != nil {
		return nil, err
	}
	ix.dim, ix.vectors, ix.docs = st.dim, st.vectors, st.docs
	logger.Info("vector index loaded", zap.String("dir", dir), zap.Int("entries", len(ix.docs)))
	return ix, nil
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.docs)
}

// Dim returns the embedding dimension, or 0 while the index is empty.
func (ix *Index) Dim() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.dim
}

// Add embeds text, appends it and persists the index before returning. On
// any failure the index is left as it was and ok is false.
func (ix *Index) Add(ctx context.Context, text string) (id int, ok bool) {
	vec, err := ix.emb.Embed(ctx, text)
	if err != nil {
		ix.logger.Warn("vector add skipped: embedding failed", zap.Error(err))
		return -1, false
	}
	if len(vec) == 0 {
		ix.logger.Warn("vector add skipped: empty embedding")
		return -1, false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim != 0 && len(vec) != ix.dim {
		ix.logger.Warn("vector add skipped: dimension mismatch",
			zap.Int("want", ix.dim), zap.Int("got", len(vec)))
		return -1, false
	}

	prevDim := ix.dim
	id = len(ix.docs)
	ix.vectors = append(ix.vectors, append([]float32(nil), vec...))
	ix.docs = append(ix.docs, text)
	ix.dim = len(vec)

	if err := ix.persist(); err != nil {
		ix.vectors = ix.vectors[:id]
		ix.docs = ix.docs[:id]
		ix.dim = prevDim
		ix.logger.Error("vector add rolled back: persistence failed", zap.Error(err))
		if rerr := ix.persist(); rerr != nil {
			ix.logger.Error("failed to restore previous index on disk", zap.Error(rerr))
		}
		return -1, false
	}

	ix.logger.Debug("vector entry added", zap.Int("id", id), zap.Int("dim", ix.dim))
	return id, true
}

type scored struct {
	id   int
	dist float32
}

// Search returns up to k stored texts nearest to query, closest first.
// Ties are broken by insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) []string {
	if k <= 0 || ix.Len() == 0 {
		return []string{}
	}

	q, err := ix.emb.Embed(ctx, query)
	if err != nil {
		ix.logger.Warn("vector search failed: embedding failed", zap.Error(err))
		return []string{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	results := make([]scored, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		d, err := utils.SquaredL2Distance(q, v)
		if err != nil {
			ix.logger.Warn("vector search failed", zap.Error(err),
				zap.Int("want", ix.dim), zap.Int("got", len(q)))
			return []string{}
		}
		results = append(results, scored{id: id, dist: d})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].dist < results[j].dist })

	if k > len(results) {
		k = len(results)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ix.docs[results[i].id]
	}
	return out
}

// Reset drops every entry and deletes both artifacts.
func (ix *Index) Reset() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := removeState(ix.dir); err != nil {
		return fmt.Errorf("failed to reset vector index: %w", err)
	}
	ix.dim = 0
	ix.vectors = nil
	ix.docs = nil
	ix.logger.Info("vector index reset", zap.String("dir", ix.dir))
	return nil
}

func (ix *Index) persist() error {
	return saveState(ix.dir, state{dim: ix.dim, vectors: ix.vectors, docs: ix.docs})
}

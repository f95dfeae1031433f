package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex implements SearchIndex with an HNSW graph over chunk
// embeddings. Queries are embedded with the same Embedder as documents.
type VectorIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder Embedder
	dims     int
	path     string

	// Graph keys are never reused: coder/hnsw misbehaves when the last
	// node is deleted, so removal only drops the mapping.
	idMap   map[int64]uint64
	keyMap  map[uint64]int64
	nextKey uint64

	closed bool
}

var (
	_ SearchIndex = (*VectorIndex)(nil)
	_ Persister   = (*VectorIndex)(nil)
)

type vectorMetadata struct {
	IDMap      map[int64]uint64
	NextKey    uint64
	Dimensions int
	Model      string
}

// NewVectorIndex creates a vector index persisted at path, loading the
// existing graph when present. An empty path keeps the index in memory.
// A stored index built with different dimensions is rejected.
func NewVectorIndex(path string, emb Embedder) (*VectorIndex, error) {
	v := &VectorIndex{
		graph:    newGraph(),
		embedder: emb,
		dims:     emb.Dimensions(),
		path:     path,
		idMap:    make(map[int64]uint64),
		keyMap:   make(map[uint64]int64),
	}
	if path == "" {
		return v, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return v, nil
	}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// Name implements SearchIndex.
func (v *VectorIndex) Name() string { return "vector" }

// Index embeds and adds documents. Re-indexing an id replaces its vector.
func (v *VectorIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}

	for _, vec := range vectors {
		if len(vec) != v.dims {
			return ErrDimensionMismatch{Expected: v.dims, Got: len(vec)}
		}
	}

	for i, doc := range docs {
		if old, ok := v.idMap[doc.ID]; ok {
			delete(v.keyMap, old)
		}
		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)
		v.graph.Add(hnsw.MakeNode(key, vec))

		v.idMap[doc.ID] = key
		v.keyMap[key] = doc.ID
	}
	return nil
}

// Search embeds the query and returns the k nearest chunks.
func (v *VectorIndex) Search(ctx context.Context, collection, query string, k int) ([]Hit, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	qvec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(qvec) != v.dims {
		return nil, ErrDimensionMismatch{Expected: v.dims, Got: len(qvec)}
	}
	if len(v.idMap) == 0 {
		return []Hit{}, nil
	}

	q := make([]float32, len(qvec))
	copy(q, qvec)
	normalizeVectorInPlace(q)

	// Oversample by the number of orphaned nodes so lazily deleted
	// entries do not crowd out live ones.
	want := k + (v.graph.Len() - len(v.idMap))
	nodes := v.graph.Search(q, want)

	hits := make([]Hit, 0, k)
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := v.graph.Distance(q, node.Value)
		hits = append(hits, Hit{ID: id, Score: float64(distanceToScore(dist))})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// IndexedIDs implements SearchIndex.
func (v *VectorIndex) IndexedIDs(ctx context.Context) (map[int64]struct{}, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, fmt.Errorf("index is closed")
	}
	ids := make(map[int64]struct{}, len(v.idMap))
	for id := range v.idMap {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Delete drops the id mappings. Graph nodes stay as orphans.
func (v *VectorIndex) Delete(ctx context.Context, ids []int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}
	for _, id := range ids {
		if key, ok := v.idMap[id]; ok {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
	return nil
}

// Orphans returns the number of lazily deleted graph nodes.
func (v *VectorIndex) Orphans() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return 0
	}
	return v.graph.Len() - len(v.idMap)
}

// Save writes the graph and its id mappings next to each other using
// temp files and renames. It is a no-op for in-memory indexes.
func (v *VectorIndex) Save() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return fmt.Errorf("index is closed")
	}
	if v.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := v.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := v.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return v.saveMetadata(v.path + ".meta")
}

func (v *VectorIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := vectorMetadata{
		IDMap:      v.idMap,
		NextKey:    v.nextKey,
		Dimensions: v.dims,
		Model:      v.embedder.ModelName(),
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (v *VectorIndex) load() error {
	mf, err := os.Open(v.path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer mf.Close()

	var meta vectorMetadata
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}
	if meta.Dimensions != v.dims {
		return ErrDimensionMismatch{Expected: v.dims, Got: meta.Dimensions}
	}

	gf, err := os.Open(v.path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer gf.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(gf)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	v.idMap = meta.IDMap
	if v.idMap == nil {
		v.idMap = make(map[int64]uint64)
	}
	v.nextKey = meta.NextKey
	v.keyMap = make(map[uint64]int64, len(v.idMap))
	for id, key := range v.idMap {
		v.keyMap[key] = id
	}

	slog.Debug("vector_index_loaded",
		slog.String("path", v.path),
		slog.Int("entries", len(v.idMap)),
		slog.String("model", meta.Model))
	return nil
}

// Close saves a file-backed index and releases the graph.
func (v *VectorIndex) Close() error {
	v.mu.RLock()
	closed := v.closed
	v.mu.RUnlock()
	if closed {
		return nil
	}
	if err := v.Save(); err != nil {
		slog.Warn("vector_index_save_failed", slog.String("error", err.Error()))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.graph = nil
	return nil
}

func normalizeVectorInPlace(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// distanceToScore maps cosine distance (0 to 2) onto a 0 to 1 similarity.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend selects which SearchIndex serves queries.
type Backend string

const (
	// BackendFTS uses the chunks_fts table inside the manual database (default).
	BackendFTS Backend = "fts"

	// BackendBleve uses an on-disk bleve index under the index directory.
	BackendBleve Backend = "bleve"

	// BackendVector uses an HNSW graph over chunk embeddings.
	BackendVector Backend = "vector"

	// BackendHybrid fuses the FTS and vector indexes.
	BackendHybrid Backend = "hybrid"
)

// ValidBackends lists the accepted backend names.
var ValidBackends = []Backend{BackendFTS, BackendBleve, BackendVector, BackendHybrid}

// ParseBackend validates a backend name. Empty selects BackendFTS.
func ParseBackend(s string) (Backend, error) {
	if s == "" {
		return BackendFTS, nil
	}
	for _, b := range ValidBackends {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown search backend: %s (valid options: fts, bleve, vector, hybrid)", s)
}

// NeedsEmbedder reports whether the backend requires an Embedder.
func (b Backend) NeedsEmbedder() bool {
	return b == BackendVector || b == BackendHybrid
}

// BlevePath returns the bleve index directory under indexDir.
func BlevePath(indexDir string) string {
	return filepath.Join(indexDir, "chunks.bleve")
}

// VectorPath returns the HNSW graph file under indexDir.
func VectorPath(indexDir string) string {
	return filepath.Join(indexDir, "chunks.hnsw")
}

// OpenIndexes opens the member indexes a backend needs, in a stable
// order: FTS first, then bleve, then vector. indexDir may be empty for
// in-memory bleve and vector indexes. The caller closes every index.
func OpenIndexes(st *SQLiteStore, backend Backend, indexDir string, emb Embedder) ([]SearchIndex, error) {
	var out []SearchIndex
	closeAll := func() {
		for _, idx := range out {
			_ = idx.Close()
		}
	}

	if backend == BackendFTS || backend == BackendHybrid {
		out = append(out, NewFTSIndex(st, nil))
	}

	if backend == BackendBleve {
		path := ""
		if indexDir != "" {
			path = BlevePath(indexDir)
		}
		idx, err := NewBleveIndex(path)
		if err != nil {
			closeAll()
			return nil, err
		}
		out = append(out, idx)
	}

	if backend.NeedsEmbedder() {
		if emb == nil {
			closeAll()
			return nil, fmt.Errorf("search backend %s requires an embedder", backend)
		}
		path := ""
		if indexDir != "" {
			path = VectorPath(indexDir)
		}
		idx, err := NewVectorIndex(path, emb)
		if err != nil {
			closeAll()
			return nil, err
		}
		out = append(out, idx)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("unknown search backend: %s", backend)
	}
	return out, nil
}

// IndexExists reports whether a file-backed index is already on disk.
func IndexExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

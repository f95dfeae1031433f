package index

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyMissing indicates a chunk with content that has no index entry.
	InconsistencyMissing InconsistencyType = iota
	// InconsistencyOrphan indicates an index entry whose chunk no longer exists.
	InconsistencyOrphan
)

// String returns a short label for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissing:
		return "missing"
	case InconsistencyOrphan:
		return "orphan"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected mismatch between the chunk table and an index.
type Inconsistency struct {
	Type    InconsistencyType
	Index   string
	ChunkID int64
}

// IndexReport summarizes one index.
type IndexReport struct {
	Indexed int `json:"indexed"`
	Missing int `json:"missing"`
	Orphans int `json:"orphans"`
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunks with content.
	Checked         int
	Reports         map[string]IndexReport
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker compares every managed index against the chunk table,
// which is the source of truth.
type ConsistencyChecker struct {
	source ChunkSource
	sync   *Synchronizer
}

// NewConsistencyChecker creates a checker over the synchronizer's indexes.
func NewConsistencyChecker(source ChunkSource, sync *Synchronizer) *ConsistencyChecker {
	return &ConsistencyChecker{source: source, sync: sync}
}

// Check lists missing and orphaned entries per index.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	ids, err := c.source.ChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	chunkSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		chunkSet[id] = struct{}{}
	}

	res := &CheckResult{
		Checked: len(ids),
		Reports: make(map[string]IndexReport),
	}
	for _, idx := range c.sync.Indexes() {
		indexed, err := idx.IndexedIDs(ctx)
		if err != nil {
			return nil, err
		}
		report := IndexReport{Indexed: len(indexed)}

		for _, id := range ids {
			if _, ok := indexed[id]; !ok {
				report.Missing++
				res.Inconsistencies = append(res.Inconsistencies,
					Inconsistency{Type: InconsistencyMissing, Index: idx.Name(), ChunkID: id})
			}
		}
		orphans := make([]int64, 0)
		for id := range indexed {
			if _, ok := chunkSet[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
		for _, id := range orphans {
			res.Inconsistencies = append(res.Inconsistencies,
				Inconsistency{Type: InconsistencyOrphan, Index: idx.Name(), ChunkID: id})
		}
		report.Orphans = len(orphans)
		res.Reports[idx.Name()] = report
	}

	res.Duration = time.Since(start)
	if !res.Consistent() {
		slog.Debug("index_inconsistent",
			slog.Int("chunks", res.Checked),
			slog.Int("issues", len(res.Inconsistencies)))
	}
	return res, nil
}

// Repair removes orphaned entries with Forget and adds missing ones with
// Sync.
func (c *ConsistencyChecker) Repair(ctx context.Context, result *CheckResult) error {
	seen := make(map[int64]struct{})
	var orphans []int64
	missing := 0
	for _, issue := range result.Inconsistencies {
		switch issue.Type {
		case InconsistencyOrphan:
			if _, ok := seen[issue.ChunkID]; !ok {
				seen[issue.ChunkID] = struct{}{}
				orphans = append(orphans, issue.ChunkID)
			}
		case InconsistencyMissing:
			missing++
		}
	}

	if len(orphans) > 0 {
		if err := c.sync.Forget(ctx, orphans); err != nil {
			return err
		}
		slog.Info("orphan_entries_removed", slog.Int("count", len(orphans)))
	}
	if missing > 0 {
		if _, err := c.sync.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

package search

import (
	"sort"

	"github.com/Aman-CERP/mindual/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// FusedHit is one chunk after fusion.
type FusedHit struct {
	ID       int64
	RRFScore float64 // normalized so the best hit is 1.0
	Ranks    []int   // 1-based rank per input list, 0 when absent
	InAll    bool    // present in every input list
}

// RRFFusion combines ranked hit lists with Reciprocal Rank Fusion:
//
//	score(d) = Σ weight_i / (k + rank_i)
//
// A chunk missing from a list is scored at rank max(len)+1 for that list.
type RRFFusion struct {
	K int
}

// NewRRFFusion returns a fusion with smoothing constant k. k <= 0 uses 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges lists. weights may be nil for equal weights.
//
// Ties are broken by presence in every list, then by the best single rank,
// then by smaller chunk id, so output is deterministic.
func (f *RRFFusion) Fuse(lists [][]store.Hit, weights []float64) []FusedHit {
	total := 0
	longest := 0
	for _, l := range lists {
		total += len(l)
		longest = max(longest, len(l))
	}
	if total == 0 {
		return []FusedHit{}
	}

	weight := func(i int) float64 {
		if i < len(weights) {
			return weights[i]
		}
		return 1.0
	}

	byID := make(map[int64]*FusedHit, total)
	for li, l := range lists {
		for rank, h := range l {
			fh, ok := byID[h.ID]
			if !ok {
				fh = &FusedHit{ID: h.ID, Ranks: make([]int, len(lists))}
				byID[h.ID] = fh
			}
			if fh.Ranks[li] != 0 {
				continue
			}
			fh.Ranks[li] = rank + 1
			fh.RRFScore += weight(li) / float64(f.K+rank+1)
		}
	}

	missingRank := longest + 1
	out := make([]FusedHit, 0, len(byID))
	for _, fh := range byID {
		fh.InAll = true
		for li, r := range fh.Ranks {
			if r == 0 {
				fh.InAll = false
				fh.RRFScore += weight(li) / float64(f.K+missingRank)
			}
		}
		out = append(out, *fh)
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	if top := out[0].RRFScore; top > 0 {
		for i := range out {
			out[i].RRFScore /= top
		}
	}
	return out
}

func less(a, b FusedHit) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InAll != b.InAll {
		return a.InAll
	}
	if ba, bb := bestRank(a.Ranks), bestRank(b.Ranks); ba != bb {
		return ba < bb
	}
	return a.ID < b.ID
}

func bestRank(ranks []int) int {
	best := 0
	for _, r := range ranks {
		if r > 0 && (best == 0 || r < best) {
			best = r
		}
	}
	return best
}

// Package vector holds the distance maths shared by the catalog index
// adapters. Both adapters search by brute force: catalog collections are
// thousands of titles, not millions, and exact results keep hard/soft
// classification deterministic.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// CosineDistance returns 1 - cosine similarity, in [0, 2].
// A zero vector is treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		// Rounding can push identical vectors slightly below zero.
		return 0
	}
	return d
}

// CheckDimensions returns an error if any record's vector length differs
// from want, or from the first record when want is 0. It returns the
// dimension the records agree on.
func CheckDimensions(want int, records []driven.IndexRecord) (int, error) {
	for _, r := range records {
		if len(r.Vector) == 0 {
			return want, fmt.Errorf("%w: entry %d has no vector", domain.ErrInvalidInput, r.Entry.ID)
		}
		if want == 0 {
			want = len(r.Vector)
			continue
		}
		if len(r.Vector) != want {
			return want, fmt.Errorf("%w: entry %d has %d dimensions, collection has %d",
				domain.ErrInvalidInput, r.Entry.ID, len(r.Vector), want)
		}
	}
	return want, nil
}

// TopK sorts hits by ascending distance, ties by ascending id, and keeps k.
func TopK(hits []driven.VectorHit, k int) []driven.VectorHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// CloneEntry deep-copies an entry so callers cannot alias stored state.
func CloneEntry(e domain.CatalogEntry) domain.CatalogEntry {
	if e.GroupID != nil {
		g := *e.GroupID
		e.GroupID = &g
	}
	return e
}

// CloneVector copies a vector.
func CloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

package rotation

import (
	"context"
	"sort"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
)

// Index is an in-memory Store snapshot, built once for a bulk recompute so
// every lookup of the batch avoids a database round trip.
type Index struct {
	byCode       map[string]*domain.ProductRotation
	byNormalized map[string]*domain.ProductRotation
	candidates   []*domain.ProductRotation
}

// NewIndex builds an index over rotations. Candidates are ordered by
// normalized code so scans are deterministic.
func NewIndex(rotations []*domain.ProductRotation) *Index {
	idx := &Index{
		byCode:       make(map[string]*domain.ProductRotation, len(rotations)),
		byNormalized: make(map[string]*domain.ProductRotation, len(rotations)),
		candidates:   make([]*domain.ProductRotation, 0, len(rotations)),
	}

	for _, r := range rotations {
		if r == nil {
			continue
		}
		if _, ok := idx.byCode[r.Code]; !ok {
			idx.byCode[r.Code] = r
		}
		key := candidateKey(r)
		if _, ok := idx.byNormalized[key]; !ok {
			idx.byNormalized[key] = r
		}
		idx.candidates = append(idx.candidates, r)
	}

	sort.SliceStable(idx.candidates, func(i, j int) bool {
		return candidateKey(idx.candidates[i]) < candidateKey(idx.candidates[j])
	})

	return idx
}

// Len returns the number of indexed rotations
func (idx *Index) Len() int {
	return len(idx.candidates)
}

// FindByCode implements Store
func (idx *Index) FindByCode(_ context.Context, code string) (*domain.ProductRotation, error) {
	return idx.byCode[code], nil
}

// FindByNormalizedCode implements Store
func (idx *Index) FindByNormalizedCode(_ context.Context, normalizedCode string) (*domain.ProductRotation, error) {
	return idx.byNormalized[normalizedCode], nil
}

// Candidates implements Store
func (idx *Index) Candidates(_ context.Context) ([]*domain.ProductRotation, error) {
	return idx.candidates, nil
}

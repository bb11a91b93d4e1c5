package semantic

import (
	"context"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
)

// ExportStats summarizes one Export run.
type ExportStats struct {
	Dims    int
	Points  int
	Skipped int
}

// Records converts every indexed item into a VectorRecord keyed by item id.
// Items with an all-zero vector or a negative id are skipped.
func Records(ix *catalog.Index) ([]VectorRecord, int) {
	records := make([]VectorRecord, 0, ix.Len())
	skipped := 0
	for i := 0; i < ix.Len(); i++ {
		it := ix.Item(i)
		vec := ix.Vector(i)
		if it.ID < 0 || isZero(vec) {
			skipped++
			continue
		}
		payload := map[string]any{
			"recipe_name": it.RecipeName,
			"category_id": it.CategoryID,
			"price":       it.Price,
			"features":    it.Features,
		}
		if it.CategoryName != nil {
			payload["category_name"] = *it.CategoryName
		}
		records = append(records, VectorRecord{ID: uint64(it.ID), Vector: vec, Payload: payload})
	}
	return records, skipped
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Export writes ix into the collection, sizing it to the vocabulary.
func (v *VectorStore) Export(ctx context.Context, ix *catalog.Index, recreate bool) (ExportStats, error) {
	dims := len(ix.Vocabulary())
	stats := ExportStats{Dims: dims}
	if err := v.EnsureCollection(ctx, dims, recreate); err != nil {
		return stats, err
	}
	records, skipped := Records(ix)
	stats.Skipped = skipped
	if err := v.Upsert(ctx, records); err != nil {
		return stats, err
	}
	stats.Points = len(records)
	return stats, nil
}

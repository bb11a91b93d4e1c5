// Package catalog owns the in-memory menu catalog: it loads rows, fits a
// TF-IDF term space over each item's name and ingredients, and precomputes
// the full pairwise cosine similarity matrix. An Index is immutable after
// Build and safe for any number of concurrent readers.
package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/pkg/fn"
)

// Index is the built catalog. Never mutate the slices it hands out.
type Index struct {
	source  string
	items   []domain.MenuItem
	byName  map[string]int
	model   *tfidfModel
	vectors []sparseVec
	sim     *simMatrix
	builtAt time.Time
}

// Scored pairs an item with its cosine similarity to a query item.
type Scored struct {
	Item  domain.MenuItem
	Score float64
}

// Load reads src and builds an Index from it.
func Load(ctx context.Context, src Source) (*Index, error) {
	items, err := src.Load(ctx)
	if err != nil {
		var le *domain.CatalogLoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, domain.NewCatalogLoadError(src.Name(), 0, err)
	}
	return build(src.Name(), items)
}

// Build indexes items in the given order.
func Build(items []domain.MenuItem) (*Index, error) {
	return build("items", items)
}

func build(source string, rows []domain.MenuItem) (*Index, error) {
	if len(rows) == 0 {
		return nil, domain.NewCatalogLoadError(source, 0, errors.New("catalog is empty"))
	}

	items := make([]domain.MenuItem, len(rows))
	copy(items, rows)

	byName := make(map[string]int, len(items))
	docs := make([]string, len(items))
	for i := range items {
		it := &items[i]
		it.CategoryName = nil
		if name, ok := domain.CategoryName(it.CategoryID); ok {
			it.CategoryName = &name
		}
		it.Features = strings.Join([]string{it.RecipeName, it.CuisinePath, it.CleanedIngredients, it.Ingredients}, " ")

		// First occurrence wins when recipe names repeat.
		key := lookupKey(it.RecipeName)
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}

		// Vectorized text is name + ingredients only, not Features.
		docs[i] = it.RecipeName + " " + it.Ingredients
	}

	model, vectors, err := fitTransform(docs)
	if err != nil {
		return nil, domain.NewCatalogLoadError(source, 0, err)
	}

	return &Index{
		source:  source,
		items:   items,
		byName:  byName,
		model:   model,
		vectors: vectors,
		sim:     newSimMatrix(vectors),
		builtAt: time.Now(),
	}, nil
}

func lookupKey(name string) string { return norm.NFC.String(name) }

// Current lets a fixed Index stand in wherever a Holder is accepted.
func (ix *Index) Current() *Index { return ix }

// Source names where the index was loaded from.
func (ix *Index) Source() string { return ix.source }

// BuiltAt is when the index finished building.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Len is the catalog size.
func (ix *Index) Len() int { return len(ix.items) }

// Item returns the i-th row in load order.
func (ix *Index) Item(i int) domain.MenuItem { return ix.items[i] }

// Items returns a copy of all rows in load order.
func (ix *Index) Items() []domain.MenuItem {
	out := make([]domain.MenuItem, len(ix.items))
	copy(out, ix.items)
	return out
}

// Lookup resolves a recipe name to its row, preferring the first occurrence.
func (ix *Index) Lookup(name string) (int, bool) {
	i, ok := ix.byName[lookupKey(name)]
	return i, ok
}

// Similarity is the cosine similarity between rows i and j.
func (ix *Index) Similarity(i, j int) float64 { return ix.sim.at(i, j) }

// Vocabulary returns the fitted terms in column order.
func (ix *Index) Vocabulary() []string {
	out := make([]string, len(ix.model.vocab))
	copy(out, ix.model.vocab)
	return out
}

// Vector returns row i as a dense vector over Vocabulary.
func (ix *Index) Vector(i int) []float32 {
	dense := make([]float32, len(ix.model.vocab))
	v := ix.vectors[i]
	for k, col := range v.idx {
		dense[col] = float32(v.val[k])
	}
	return dense
}

// SimilarScored returns up to k items most similar to name, best first, ties
// kept in catalog order. The item itself is never included.
func (ix *Index) SimilarScored(name string, k int) ([]Scored, error) {
	self, ok := ix.Lookup(name)
	if !ok {
		return nil, &domain.ItemNotFoundError{Name: name}
	}
	if k <= 0 {
		return []Scored{}, nil
	}

	row := ix.sim.row(self)
	order := make([]int, 0, len(row)-1)
	for j := range row {
		if j != self {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })
	if len(order) > k {
		order = order[:k]
	}

	out := make([]Scored, len(order))
	for n, j := range order {
		out[n] = Scored{Item: ix.items[j], Score: row[j]}
	}
	return out, nil
}

// SimilarItems is SimilarScored without the scores.
func (ix *Index) SimilarItems(name string, k int) ([]domain.MenuItem, error) {
	scored, err := ix.SimilarScored(name, k)
	if err != nil {
		return nil, err
	}
	return fn.Map(scored, func(s Scored) domain.MenuItem { return s.Item }), nil
}

// ItemsByCategories returns up to limit items whose category is one of
// categories, in catalog order. ImgSrc is always set on the returned copies.
func (ix *Index) ItemsByCategories(categories []string, limit int) []domain.MenuItem {
	want := fn.Set(categories)
	matched := fn.FilterN(ix.items, limit, func(it domain.MenuItem) bool {
		if it.CategoryName == nil {
			return false
		}
		_, ok := want[*it.CategoryName]
		return ok
	})
	for i := range matched {
		img := matched[i].Image()
		matched[i].ImgSrc = &img
	}
	return matched
}

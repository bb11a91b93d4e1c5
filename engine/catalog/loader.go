package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/yangon-eats/menu-recommender/engine/domain"
)

// Source yields catalog rows. Implementations return a *domain.CatalogLoadError
// when the data is missing or unreadable.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]domain.MenuItem, error)
}

// Column names read from the catalog file.
const (
	colID                 = "id"
	colRecipeName         = "recipe_name"
	colIngredients        = "ingredients"
	colCleanedIngredients = "cleaned_ingredients"
	colCuisinePath        = "cuisine_path"
	colCategoryID         = "category_id"
	colPrice              = "price"
	colImgSrc             = "img_src"
)

var requiredColumns = []string{colRecipeName, colIngredients, colCategoryID, colPrice}

// Cell values read as missing, matching the usual dataframe NA markers.
var nullValues = toSet(
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a",
	"nan", "null",
)

func isNull(s string) bool {
	_, ok := nullValues[s]
	return ok
}

// CSVFile loads the catalog from a comma-separated file with a header row.
type CSVFile struct {
	Path string
}

// Name implements Source.
func (f CSVFile) Name() string { return f.Path }

// Load implements Source.
func (f CSVFile) Load(ctx context.Context) ([]domain.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCatalogLoadError(f.Path, 0, err)
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, domain.NewCatalogLoadError(f.Path, 0, err)
	}
	defer fh.Close()
	return ReadCSV(fh, f.Path)
}

// ReadCSV parses catalog rows from r. name labels errors. Missing text cells
// become empty strings; a missing img_src stays nil. When there is no id
// column the 0-based row position is used.
func ReadCSV(r io.Reader, name string) ([]domain.MenuItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.NewCatalogLoadError(name, 0, errors.New("no header row"))
	}
	if err != nil {
		return nil, domain.NewCatalogLoadError(name, 0, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, domain.NewCatalogLoadError(name, 0, fmt.Errorf("missing column %q", c))
		}
	}

	var items []domain.MenuItem
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewCatalogLoadError(name, row, err)
		}
		if len(rec) > len(header) {
			return nil, domain.NewCatalogLoadError(name, row,
				fmt.Errorf("expected %d fields, saw %d", len(header), len(rec)))
		}
		item, err := parseRow(rec, cols, row-1)
		if err != nil {
			return nil, domain.NewCatalogLoadError(name, row, err)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, domain.NewCatalogLoadError(name, 0, errors.New("catalog is empty"))
	}
	return items, nil
}

func parseRow(rec []string, cols map[string]int, pos int) (domain.MenuItem, error) {
	cell := func(col string) (string, bool) {
		i, ok := cols[col]
		if !ok || i >= len(rec) || isNull(rec[i]) {
			return "", false
		}
		return rec[i], true
	}
	text := func(col string) string {
		s, _ := cell(col)
		return norm.NFC.String(s)
	}

	item := domain.MenuItem{
		ID:                 pos,
		RecipeName:         text(colRecipeName),
		Ingredients:        text(colIngredients),
		CleanedIngredients: text(colCleanedIngredients),
		CuisinePath:        text(colCuisinePath),
	}

	if s, ok := cell(colID); ok {
		id, err := parseInt(s)
		if err != nil {
			return item, fmt.Errorf("id: %w", err)
		}
		item.ID = id
	}
	if s, ok := cell(colCategoryID); ok {
		id, err := parseInt(s)
		if err != nil {
			return item, fmt.Errorf("category_id: %w", err)
		}
		item.CategoryID = id
	}
	if s, ok := cell(colPrice); ok {
		p, err := parsePrice(s)
		if err != nil {
			return item, fmt.Errorf("price: %w", err)
		}
		item.Price = p
	}
	if s, ok := cell(colImgSrc); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			item.ImgSrc = &s
		}
	}
	return item, nil
}

// parseInt accepts integral floats such as "5.0", which appear when a numeric
// column had blanks upstream.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(p, 0) || math.IsNaN(p) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return p, nil
}

// StaticSource serves a fixed slice of items. It is used by tests and tools
// that already hold rows in memory.
type StaticSource struct {
	Label string
	Items []domain.MenuItem
}

// Name implements Source.
func (s StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]domain.MenuItem, error) {
	if len(s.Items) == 0 {
		return nil, domain.NewCatalogLoadError(s.Name(), 0, errors.New("catalog is empty"))
	}
	out := make([]domain.MenuItem, len(s.Items))
	copy(out, s.Items)
	return out, nil
}

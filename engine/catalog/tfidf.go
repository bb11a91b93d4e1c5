package catalog

import (
	"errors"
	"math"
	"sort"
)

var errEmptyVocabulary = errors.New("empty vocabulary; documents only contain stop words")

// sparseVec is an L2-normalized TF-IDF row. idx is strictly increasing.
type sparseVec struct {
	idx []int
	val []float64
}

func (v sparseVec) isZero() bool { return len(v.idx) == 0 }

// dot is the inner product of two sparse rows.
func (v sparseVec) dot(o sparseVec) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.idx) && j < len(o.idx) {
		switch {
		case v.idx[i] == o.idx[j]:
			sum += v.val[i] * o.val[j]
			i++
			j++
		case v.idx[i] < o.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// tfidfModel is a fitted term space: raw term counts weighted by a smoothed
// inverse document frequency, idf(t) = ln((1+n)/(1+df(t))) + 1, followed by
// L2 normalization of each document row.
type tfidfModel struct {
	vocab []string       // sorted terms
	terms map[string]int // term -> column
	idf   []float64
}

// fitTransform fits the model over docs and returns one row per doc.
func fitTransform(docs []string) (*tfidfModel, []sparseVec, error) {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		toks := Tokenize(d)
		tokenized[i] = toks
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return nil, nil, errEmptyVocabulary
	}

	m := &tfidfModel{
		vocab: make([]string, 0, len(df)),
		terms: make(map[string]int, len(df)),
	}
	for t := range df {
		m.vocab = append(m.vocab, t)
	}
	sort.Strings(m.vocab)
	n := float64(len(docs))
	m.idf = make([]float64, len(m.vocab))
	for col, t := range m.vocab {
		m.terms[t] = col
		m.idf[col] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	rows := make([]sparseVec, len(docs))
	for i, toks := range tokenized {
		rows[i] = m.vectorize(toks)
	}
	return m, rows, nil
}

// vectorize weights tokens already produced by Tokenize. Unknown terms are ignored.
func (m *tfidfModel) vectorize(toks []string) sparseVec {
	counts := make(map[int]float64)
	for _, t := range toks {
		if col, ok := m.terms[t]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return sparseVec{}
	}

	v := sparseVec{idx: make([]int, 0, len(counts))}
	for col := range counts {
		v.idx = append(v.idx, col)
	}
	sort.Ints(v.idx)
	v.val = make([]float64, len(v.idx))
	var norm float64
	for k, col := range v.idx {
		w := counts[col] * m.idf[col]
		v.val[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for k := range v.val {
		v.val[k] /= norm
	}
	return v
}

package catalog

import (
	"runtime"

	"github.com/yangon-eats/menu-recommender/pkg/fn"
)

// simMatrix is a dense, symmetric n×n cosine similarity matrix stored
// row-major. Only the upper triangle is computed; the lower is mirrored so
// sim(i,j) == sim(j,i) exactly.
type simMatrix struct {
	n    int
	data []float64
}

func newSimMatrix(rows []sparseVec) *simMatrix {
	n := len(rows)
	m := &simMatrix{n: n, data: make([]float64, n*n)}

	// Row i owns cells (i,j) and (j,i) for j >= i, so workers never overlap.
	fn.ParFor(n, runtime.GOMAXPROCS(0), func(i int) {
		if rows[i].isZero() {
			return
		}
		m.data[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			s := clampUnit(rows[i].dot(rows[j]))
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	})
	return m
}

func (m *simMatrix) at(i, j int) float64 { return m.data[i*m.n+j] }

func (m *simMatrix) row(i int) []float64 { return m.data[i*m.n : (i+1)*m.n] }

// clampUnit absorbs floating-point overshoot past the cosine bounds.
func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

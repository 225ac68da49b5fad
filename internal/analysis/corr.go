package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Values  [][]float64 `json:"values" yaml:"values"` // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A string  `json:"a" yaml:"a"`
	B string  `json:"b" yaml:"b"`
	R float64 `json:"r" yaml:"r"`
}

// Correlate computes Pearson correlations among numeric columns over
// pairwise-complete rows. rows restricts the scan; nil means every row.
// Undefined coefficients (fewer than two shared rows, or a constant series)
// are reported as 0.
func Correlate(cols []*dataset.Column, rows []int) *CorrMatrix {
	n := len(cols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			r, _ := pearson(cols[a], cols[b], rows)
			m.Values[a][b] = r
			m.Values[b][a] = r
		}
	}
	return m
}

// TopPairs lists the off-diagonal pairs ordered by |r| descending.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	for i := 0; i < len(m.Columns); i++ {
		for j := i + 1; j < len(m.Columns); j++ {
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sortPairs(pairs)
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// definedPairs keeps only pairs whose coefficient is defined over rows.
func definedPairs(cols []*dataset.Column, rows []int, limit int) []PairCorr {
	var pairs []PairCorr
	for a := 0; a < len(cols); a++ {
		for b := a + 1; b < len(cols); b++ {
			if r, ok := pearson(cols[a], cols[b], rows); ok {
				pairs = append(pairs, PairCorr{A: cols[a].Name, B: cols[b].Name, R: r})
			}
		}
	}
	sortPairs(pairs)
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func sortPairs(pairs []PairCorr) {
	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
}

func pearson(a, b *dataset.Column, rows []int) (float64, bool) {
	var xs, ys []float64
	visit := func(i int) {
		if a.Missing[i] || b.Missing[i] {
			return
		}
		xs = append(xs, a.Num[i])
		ys = append(ys, b.Num[i])
	}
	if rows == nil {
		for i := 0; i < a.Len(); i++ {
			visit(i)
		}
	} else {
		for _, i := range rows {
			visit(i)
		}
	}
	if len(xs) < 2 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

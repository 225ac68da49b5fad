package analysis

import (
	"math"
	"math/bits"
	"sort"
)

// welford accumulates count, extrema, mean and squared deviations in one pass.
type welford struct {
	n        int
	mean, m2 float64
	min, max float64
}

func newWelford() welford {
	return welford{min: math.Inf(1), max: math.Inf(-1)}
}

func (w *welford) add(x float64) {
	w.n++
	if x < w.min {
		w.min = x
	}
	if x > w.max {
		w.max = x
	}
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// std is the sample standard deviation; undefined below two observations.
func (w *welford) std() *float64 {
	if w.n < 2 {
		return nil
	}
	s := math.Sqrt(w.m2 / float64(w.n-1))
	return &s
}

// quantiles returns linearly interpolated quantiles (position q·(n−1)) of vals
// without reordering vals. Each quantile costs one expected-linear selection.
func quantiles(vals []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	if len(vals) == 0 {
		return out
	}
	buf := append([]float64(nil), vals...)
	last := len(buf) - 1
	for i, q := range qs {
		if q <= 0 {
			q = 0
		} else if q >= 1 {
			q = 1
		}
		pos := q * float64(last)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		a := selectKth(buf, lo)
		if lo == hi {
			out[i] = a
			continue
		}
		// After selection every element right of lo is >= buf[lo].
		b := buf[lo+1]
		for _, v := range buf[lo+2:] {
			if v < b {
				b = v
			}
		}
		w := pos - float64(lo)
		out[i] = a*(1-w) + b*w
	}
	return out
}

// selectKth partially orders a so that a[k] holds the k-th smallest value and
// returns it. It falls back to sorting the remaining window when partitioning
// degenerates.
func selectKth(a []float64, k int) float64 {
	lo, hi := 0, len(a)-1
	budget := 2 * bits.Len(uint(len(a)))
	for lo < hi {
		if budget == 0 {
			sort.Float64s(a[lo : hi+1])
			return a[k]
		}
		budget--
		p := partition(a, lo, hi)
		switch {
		case k == p:
			return a[k]
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
	return a[k]
}

// partition uses a median-of-three pivot moved to a[hi].
func partition(a []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if a[mid] < a[lo] {
		a[mid], a[lo] = a[lo], a[mid]
	}
	if a[hi] < a[lo] {
		a[hi], a[lo] = a[lo], a[hi]
	}
	if a[mid] < a[hi] {
		a[mid], a[hi] = a[hi], a[mid]
	}
	pivot := a[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j] < pivot {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	median = quantiles(vals, 0.5)[0]
	dev := make([]float64, len(vals))
	for i, v := range vals {
		dev[i] = math.Abs(v - median)
	}
	mad = quantiles(dev, 0.5)[0]
	return
}

// robustOutliers counts values whose robust z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

// Quantiles returns linearly interpolated quantiles of vals; vals is not modified.
func Quantiles(vals []float64, qs ...float64) []float64 { return quantiles(vals, qs...) }

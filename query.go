package tdigest

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// CDF estimates the fraction of the total weight at or below x. ok is
// false when the digest is empty. A NaN x yields NaN.
//
// Below the first mean the result is 0 and above the last mean it is 1.
// In between, each centroid places half of its weight on either side of
// its mean, so CDF at the first mean is w_first/(2N) and at the last mean
// (N - w_last/2)/N. A digest with a single centroid answers 1 at its mean.
func (td *TDigest) CDF(x float64) (float64, bool) {
	if td.centroids.Size() == 0 {
		return 0, false
	}
	return td.cdf(x), true
}

// CDFs evaluates CDF for every x independently. ok is false when the
// digest is empty, in which case no values are returned.
func (td *TDigest) CDFs(xs []float64) ([]float64, bool) {
	if td.centroids.Size() == 0 {
		return nil, false
	}
	ret := make([]float64, len(xs))
	for i, x := range xs {
		ret[i] = td.cdf(x)
	}
	return ret, true
}

// Each centroid of weight w is treated as w/2 of mass on either side of
// its mean; the cumulative curve is linear between consecutive means.
func (td *TDigest) cdf(x float64) float64 {
	vec := td.centroids.vec
	n := len(vec)
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case x < vec[0].Mean:
		return 0
	case x > vec[n-1].Mean || n == 1:
		return 1
	}

	// vec[l].Mean <= x <= vec[l+1].Mean, 0 <= l <= n-2
	l := sort.Search(n, func(i int) bool { return vec[i].Mean > x }) - 1
	if l == n-1 {
		l--
	}
	left, right := vec[l], vec[l+1]

	before := float64(td.centroids.cumulativeWeightBefore(l))
	lo := before + float64(left.Weight)/2
	hi := before + float64(left.Weight) + float64(right.Weight)/2

	cum := lo + (hi-lo)*fraction(x, left.Mean, right.Mean)
	return clamp(cum/float64(td.centroids.total), 0, 1)
}

// Quantile estimates the value below which a fraction q of the total
// weight lies. It fails with ErrInvalidQuantile unless q is in [0, 1];
// ok is false when the digest is empty.
func (td *TDigest) Quantile(q float64) (float64, bool, error) {
	if err := validateQuantile(q); err != nil {
		return 0, false, err
	}
	if td.centroids.Size() == 0 {
		return 0, false, nil
	}
	return td.quantile(q), true, nil
}

// Quantiles evaluates Quantile for every q independently. All quantiles
// are validated before any is computed.
func (td *TDigest) Quantiles(qs []float64) ([]float64, bool, error) {
	for i, q := range qs {
		if err := validateQuantile(q); err != nil {
			return nil, false, errors.Wrapf(err, "quantile %d", i)
		}
	}
	if td.centroids.Size() == 0 {
		return nil, false, nil
	}
	ret := make([]float64, len(qs))
	for i, q := range qs {
		ret[i] = td.quantile(q)
	}
	return ret, true, nil
}

func validateQuantile(q float64) error {
	if !(q >= 0 && q <= 1) {
		return errors.Wrapf(ErrInvalidQuantile, "got %v", q)
	}
	return nil
}

// quantile inverts cdf using the same half weight convention.
func (td *TDigest) quantile(q float64) float64 {
	vec := td.centroids.vec
	n := len(vec)
	if q == 0 || n == 1 {
		return vec[0].Mean
	}
	if q == 1 {
		return vec[n-1].Mean
	}

	target := q * float64(td.centroids.total)
	before := 0.0
	for i := 0; i+1 < n; i++ {
		left, right := vec[i], vec[i+1]
		lo := before + float64(left.Weight)/2
		hi := before + float64(left.Weight) + float64(right.Weight)/2
		if target <= lo {
			return left.Mean
		}
		if target <= hi {
			return lerp(left.Mean, right.Mean, (target-lo)/(hi-lo))
		}
		before += float64(left.Weight)
	}
	return vec[n-1].Mean
}

// fraction returns the position of x within [lo, hi] as a value in [0, 1].
// The halved form is used when hi - lo overflows.
func fraction(x, lo, hi float64) float64 {
	d, t := hi-lo, x-lo
	if math.IsInf(d, 0) {
		d, t = hi/2-lo/2, x/2-lo/2
	}
	if !(d > 0) {
		return 0
	}
	return clamp(t/d, 0, 1)
}

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

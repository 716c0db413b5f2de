package tdigest

import "math"

// scale maps quantile positions to slot indices. Its slope is smallest
// around the median and grows without bound towards both tails.
type scale float64

// k computes (compression / 2π) · asin(2q - 1).
func (s scale) k(q float64) float64 {
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	return float64(s) / (2 * math.Pi) * math.Asin(2*q-1)
}

// admits reports whether a centroid that starts after cumulative weight
// `before` may hold `weight` without spanning more than one slot.
func (s scale) admits(before, weight uint64, norm float64) bool {
	if norm <= 0 {
		return false
	}
	q0 := float64(before) / norm
	q1 := float64(before+weight) / norm
	return s.k(q1)-s.k(q0) <= 1
}
